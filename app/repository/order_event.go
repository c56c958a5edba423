package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-gateways/app/entity"
)

type OrderEventRepository struct {
	db DBTX
}

func NewOrderEventRepository(db DBTX) *OrderEventRepository {
	return &OrderEventRepository{db: db}
}

func (r *OrderEventRepository) Create(ctx context.Context, event *entity.OrderEvent) error {
	query := `
		INSERT INTO order_events (
			order_id, event_type, old_state, new_state, transaction_id, payload_json, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.OrderID,
		event.EventType,
		nullableInt32Value(event.OldState),
		event.NewState,
		nullableStringValue(event.TransactionID),
		nullableStringValue(event.PayloadJSON),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}
