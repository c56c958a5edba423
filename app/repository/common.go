package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func isDuplicateEntryError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

func nullableStringValue(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableUint64Value(v *uint64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt32Value(v *int32) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func int32PtrFromNull(v sql.NullInt32) *int32 {
	if !v.Valid {
		return nil
	}
	n := v.Int32
	return &n
}

func uint64PtrFromNull(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	n := uint64(v.Int64)
	return &n
}

// Amounts are stored as DECIMAL(18,2) columns and travel as strings so the
// driver never routes them through float64.
func decimalValue(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func decimalFromString(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func serializeProperties(properties map[string]string) (string, error) {
	if properties == nil {
		properties = map[string]string{}
	}
	payload, err := json.Marshal(properties)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func parseProperties(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}
	var properties map[string]string
	if err := json.Unmarshal([]byte(raw), &properties); err != nil {
		return nil, err
	}
	if properties == nil {
		properties = map[string]string{}
	}
	return properties, nil
}
