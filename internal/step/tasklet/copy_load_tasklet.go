package tasklet

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"

	"github.com/tigerroll/surfin/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/surfin/pkg/batch/adapter/database/config"
	port "github.com/tigerroll/surfin/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin/pkg/batch/core/domain/model"
	configbinder "github.com/tigerroll/surfin/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/surfin/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin/pkg/batch/support/util/logger"

	"github.com/tigerroll/parking-pipeline/internal/domain/entity"
	"github.com/tigerroll/parking-pipeline/internal/domain/table"
)

const moduleCopyLoadTasklet = "copy_load_tasklet"

// CopyLoadTaskletConfig is a struct used to bind properties passed from JSL.
type CopyLoadTaskletConfig struct {
	OutputDir          string `yaml:"outputDir"`
	FileName           string `yaml:"fileName,omitempty"`
	TargetResourceName string `yaml:"targetResourceName,omitempty"`
	AuditTable         string `yaml:"auditTable,omitempty"`
}

// CopyLoadTasklet replays the cumulative CSV into the freshly recreated
// parking_data table with the PostgreSQL COPY protocol (pgx CopyFrom).
// The flow routes both success and failure of the store split into this
// step, so the load runs whenever a CSV exists, regardless of what the
// snapshot branches did.
type CopyLoadTasklet struct {
	config           *CopyLoadTaskletConfig
	dbResolver       database.DBConnectionResolver
	executionContext model.ExecutionContext
}

// NewCopyLoadTasklet creates a new instance of CopyLoadTasklet.
func NewCopyLoadTasklet(dbResolver database.DBConnectionResolver, properties map[string]interface{}) (*CopyLoadTasklet, error) {
	taskletCfg := &CopyLoadTaskletConfig{
		FileName:           DefaultCSVFileName,
		TargetResourceName: "parking",
		AuditTable:         "parking_load_audit",
	}

	if err := configbinder.BindProperties(properties, taskletCfg); err != nil {
		return nil, exception.NewBatchError(moduleCopyLoadTasklet, "Failed to bind properties", err, false, false)
	}

	// JSL properties may carry environment variable references.
	taskletCfg.OutputDir = os.ExpandEnv(taskletCfg.OutputDir)
	if taskletCfg.OutputDir == "" {
		return nil, fmt.Errorf("outputDir property is required for CopyLoadTasklet")
	}

	return &CopyLoadTasklet{
		config:           taskletCfg,
		dbResolver:       dbResolver,
		executionContext: model.NewExecutionContext(),
	}, nil
}

// Open prepares the tasklet for execution.
func (t *CopyLoadTasklet) Open(ctx context.Context, stepExecution *model.StepExecution) error {
	return nil
}

// Execute bulk loads the CSV file into the landing table.
func (t *CopyLoadTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	select {
	case <-ctx.Done():
		return model.ExitStatusFailed, ctx.Err()
	default:
	}

	path := filepath.Join(t.config.OutputDir, t.config.FileName)
	rows, err := loadCSVRows(path, entity.Columns)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(moduleCopyLoadTasklet,
			fmt.Sprintf("failed to read CSV file %s", path), err, false, false)
	}

	dbConn, err := t.dbResolver.ResolveDBConnection(ctx, t.config.TargetResourceName)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(moduleCopyLoadTasklet,
			fmt.Sprintf("failed to resolve database connection '%s'", t.config.TargetResourceName), err, false, true)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Warnf("CopyLoadTasklet: failed to close database connection '%s': %v", t.config.TargetResourceName, err)
		}
	}()

	dsn := buildPostgresDSN(dbConn.Config())
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(moduleCopyLoadTasklet, "failed to open COPY connection", err, false, true)
	}
	defer func() {
		if err := conn.Close(ctx); err != nil {
			logger.Warnf("CopyLoadTasklet: failed to close COPY connection: %v", err)
		}
	}()

	tableName := entity.ParkingTransaction{}.TableName()
	copied, err := conn.CopyFrom(ctx, pgx.Identifier{tableName}, entity.Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(moduleCopyLoadTasklet,
			fmt.Sprintf("COPY into %s failed", tableName), err, false, true)
	}

	if err := t.recordAudit(ctx, conn, stepExecution, copied); err != nil {
		logger.Warnf("CopyLoadTasklet: failed to record load audit row: %v", err)
	}

	logger.Infof("CopyLoadTasklet: Loaded %d rows from %s into %s.", copied, path, tableName)
	return model.ExitStatusCompleted, nil
}

// recordAudit notes the load in the audit table created by the application
// migration. Audit failures are logged, not fatal.
func (t *CopyLoadTasklet) recordAudit(ctx context.Context, conn *pgx.Conn, stepExecution *model.StepExecution, rowCount int64) error {
	jobExecutionID := ""
	if stepExecution != nil && stepExecution.JobExecution != nil {
		jobExecutionID = stepExecution.JobExecution.ID
	}
	query := fmt.Sprintf("INSERT INTO %s (job_execution_id, row_count, loaded_at) VALUES ($1, $2, NOW())", t.config.AuditTable)
	_, err := conn.Exec(ctx, query, jobExecutionID, rowCount)
	return err
}

// loadCSVRows reads the CSV file, drops the header row when it matches the
// destination columns, and converts records to COPY rows. Records whose
// width disagrees with the destination table are collected and reported
// together.
func loadCSVRows(path string, columns []string) ([][]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) > 0 && table.HeaderMatches(records[0], columns) {
		records = records[1:]
	}

	var errs *multierror.Error
	rows := make([][]interface{}, 0, len(records))
	for i, record := range records {
		if len(record) != len(columns) {
			errs = multierror.Append(errs, fmt.Errorf("record %d has %d fields, expected %d", i+1, len(record), len(columns)))
			continue
		}
		row := make([]interface{}, len(record))
		for j, v := range record {
			row[j] = v
		}
		rows = append(rows, row)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return rows, nil
}

// buildPostgresDSN renders the resolved database configuration as a pgx URL.
func buildPostgresDSN(cfg dbconfig.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	if cfg.Sslmode != "" {
		q.Set("sslmode", cfg.Sslmode)
	}
	if cfg.Schema != "" {
		q.Set("search_path", cfg.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Close releases any resources held by the Tasklet.
func (t *CopyLoadTasklet) Close(ctx context.Context, stepExecution *model.StepExecution) error {
	return nil
}

// SetExecutionContext sets the ExecutionContext for the Tasklet.
func (t *CopyLoadTasklet) SetExecutionContext(ec model.ExecutionContext) {
	t.executionContext = ec
}

// GetExecutionContext retrieves the current ExecutionContext of the Tasklet.
func (t *CopyLoadTasklet) GetExecutionContext() model.ExecutionContext {
	return t.executionContext
}

var _ port.Tasklet = (*CopyLoadTasklet)(nil)
