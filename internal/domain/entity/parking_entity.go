// Package entity defines the persistent shape of parking transaction data.
package entity

import (
	"fmt"
	"strings"
)

// KeyColumn is the API field used to index transformed rows.
const KeyColumn = "parkingTransactionKey"

// Columns is the destination schema of the parking_data landing table, in
// table order. Every column is TEXT NOT NULL; typing the landing data is
// deliberately deferred to downstream consumers.
var Columns = []string{
	"startDtm",
	"endDtm",
	"transactionAmt",
	"paymentTypeName",
	"transactionStatusCode",
	"maxHoursCnt",
	"meterTypeDsc",
	"dollarPerHourRate",
	"activeStatusInd",
	"metroAreaName",
}

// DroppedColumns lists the location and meter metadata fields removed
// during transformation before rows reach the landing table.
var DroppedColumns = []string{
	"transactionSourceCode",
	"meterId",
	"zoneNbr",
	"meterManufacturerName",
	"blockNbr",
	"sourceStreetDisplayName",
	"sideDirectionName",
	"latitudeCrd",
	"longitudeCrd",
	"statePlaneXCrd",
	"statePlaneYCrd",
	"handicapInd",
	"timeRestrictionDsc",
	"zoneSpaceCnt",
}

// ParkingTransaction mirrors one row of parking_data. The archive export
// reads rows through this struct; gorm tags map columns, parquet tags
// drive the Parquet schema.
type ParkingTransaction struct {
	StartDtm              string `gorm:"column:startDtm" parquet:"startDtm"`
	EndDtm                string `gorm:"column:endDtm" parquet:"endDtm"`
	TransactionAmt        string `gorm:"column:transactionAmt" parquet:"transactionAmt"`
	PaymentTypeName       string `gorm:"column:paymentTypeName" parquet:"paymentTypeName"`
	TransactionStatusCode string `gorm:"column:transactionStatusCode" parquet:"transactionStatusCode"`
	MaxHoursCnt           string `gorm:"column:maxHoursCnt" parquet:"maxHoursCnt"`
	MeterTypeDsc          string `gorm:"column:meterTypeDsc" parquet:"meterTypeDsc"`
	DollarPerHourRate     string `gorm:"column:dollarPerHourRate" parquet:"dollarPerHourRate"`
	ActiveStatusInd       string `gorm:"column:activeStatusInd" parquet:"activeStatusInd"`
	MetroAreaName         string `gorm:"column:metroAreaName" parquet:"metroAreaName"`
}

// TableName specifies the table name for ParkingTransaction.
func (ParkingTransaction) TableName() string {
	return "parking_data"
}

// DropTableSQL returns the statement that discards the previous landing table.
func DropTableSQL() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", ParkingTransaction{}.TableName())
}

// CreateTableSQL returns the DDL for the landing table. Column identifiers
// are quoted to preserve the API's camelCase names in PostgreSQL.
func CreateTableSQL() string {
	defs := make([]string, 0, len(Columns))
	for _, col := range Columns {
		defs = append(defs, fmt.Sprintf("%q TEXT NOT NULL", col))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", ParkingTransaction{}.TableName(), strings.Join(defs, ", "))
}
