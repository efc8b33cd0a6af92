package tasklet

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/parking-pipeline/internal/domain/entity"
)

func TestInitParkingSchema_DropsThenCreates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(entity.DropTableSQL())).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(entity.CreateTableSQL())).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, initParkingSchema(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitParkingSchema_DropFailureStopsBeforeCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(entity.DropTableSQL())).WillReturnError(errors.New("permission denied"))

	err = initParkingSchema(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to drop parking_data")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitParkingSchema_CreateFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(entity.DropTableSQL())).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(entity.CreateTableSQL())).WillReturnError(errors.New("out of disk"))

	err = initParkingSchema(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create parking_data")
}
