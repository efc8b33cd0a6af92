package entity

import (
	"strings"
	"testing"
)

func TestParkingTransaction_TableName(t *testing.T) {
	expected := "parking_data"
	actual := ParkingTransaction{}.TableName()

	if actual != expected {
		t.Errorf("TableName() returned %s, expected %s", actual, expected)
	}
}

func TestDropTableSQL(t *testing.T) {
	expected := "DROP TABLE IF EXISTS parking_data"
	actual := DropTableSQL()

	if actual != expected {
		t.Errorf("DropTableSQL() returned %s, expected %s", actual, expected)
	}
}

func TestCreateTableSQL_DeclaresEveryColumnAsText(t *testing.T) {
	ddl := CreateTableSQL()

	if !strings.HasPrefix(ddl, "CREATE TABLE parking_data (") {
		t.Errorf("CreateTableSQL() does not target parking_data: %s", ddl)
	}
	for _, col := range Columns {
		def := `"` + col + `" TEXT NOT NULL`
		if !strings.Contains(ddl, def) {
			t.Errorf("CreateTableSQL() is missing column definition %s", def)
		}
	}
	if got := strings.Count(ddl, "TEXT NOT NULL"); got != len(Columns) {
		t.Errorf("CreateTableSQL() declares %d columns, expected %d", got, len(Columns))
	}
}
