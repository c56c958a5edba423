package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-gateways/app/entity"
)

type CallbackRecordRepository struct {
	db DBTX
}

func NewCallbackRecordRepository(db DBTX) *CallbackRecordRepository {
	return &CallbackRecordRepository{db: db}
}

func (r *CallbackRecordRepository) Create(ctx context.Context, record *entity.CallbackRecord) error {
	query := `
		INSERT INTO callback_records (
			order_id, gateway, cart_number, correlation_id, signature, payload_json, status, error, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableUint64Value(record.OrderID),
		record.Gateway,
		record.CartNumber,
		record.CorrelationID,
		record.Signature,
		record.PayloadJSON,
		record.Status,
		nullableStringValue(record.Error),
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	record.ID = uint64(id)

	return nil
}

func (r *CallbackRecordRepository) ListByOrderID(ctx context.Context, orderID uint64, limit int32) ([]*entity.CallbackRecord, error) {
	query := `
		SELECT id, order_id, gateway, cart_number, correlation_id, signature, payload_json, status, error, created_at, updated_at
		FROM callback_records
		WHERE order_id = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, orderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*entity.CallbackRecord, 0)
	for rows.Next() {
		var record entity.CallbackRecord
		var recordOrderID sql.NullInt64
		var recordError sql.NullString
		if err := rows.Scan(
			&record.ID,
			&recordOrderID,
			&record.Gateway,
			&record.CartNumber,
			&record.CorrelationID,
			&record.Signature,
			&record.PayloadJSON,
			&record.Status,
			&recordError,
			&record.CreatedAt,
			&record.UpdatedAt,
		); err != nil {
			return nil, err
		}
		record.OrderID = uint64PtrFromNull(recordOrderID)
		record.Error = stringPtrFromNull(recordError)
		records = append(records, &record)
	}
	return records, rows.Err()
}
