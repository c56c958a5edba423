package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-gateways/app/entity"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
)

type OrderFilter struct {
	Gateway      string
	HasState     bool
	PaymentState int32
	Limit        int32
	Offset       int32
}

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	propertiesJSON, err := serializeProperties(order.Properties)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			cart_number, gateway, amount_total, currency, payment_state,
			transaction_id, card_type, card_mask,
			captured_amount, refunded_amount, properties_json,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		order.CartNumber,
		order.Gateway,
		decimalValue(order.AmountTotal),
		order.Currency,
		order.PaymentState,
		nullableStringValue(order.TransactionID),
		nullableStringValue(order.CardType),
		nullableStringValue(order.CardMask),
		decimalValue(order.CapturedAmount),
		decimalValue(order.RefundedAmount),
		propertiesJSON,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = uint64(id)

	return nil
}

func (r *OrderRepository) Update(ctx context.Context, order *entity.Order) error {
	propertiesJSON, err := serializeProperties(order.Properties)
	if err != nil {
		return err
	}

	query := `
		UPDATE orders
		SET payment_state = ?, transaction_id = ?, card_type = ?, card_mask = ?,
			captured_amount = ?, refunded_amount = ?, properties_json = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		order.PaymentState,
		nullableStringValue(order.TransactionID),
		nullableStringValue(order.CardType),
		nullableStringValue(order.CardMask),
		decimalValue(order.CapturedAmount),
		decimalValue(order.RefundedAmount),
		propertiesJSON,
		order.UpdatedAt,
		order.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint64) (*entity.Order, error) {
	row := r.db.QueryRowContext(ctx, selectOrderQuery+" WHERE id = ?", id)
	return scanOrder(row)
}

func (r *OrderRepository) FindByCartNumber(ctx context.Context, cartNumber string) (*entity.Order, error) {
	row := r.db.QueryRowContext(ctx, selectOrderQuery+" WHERE cart_number = ?", strings.TrimSpace(cartNumber))
	return scanOrder(row)
}

func (r *OrderRepository) List(ctx context.Context, filter OrderFilter) ([]*entity.Order, error) {
	query := selectOrderQuery + " WHERE 1=1"
	args := make([]interface{}, 0, 4)

	if filter.Gateway != "" {
		query += " AND gateway = ?"
		args = append(args, filter.Gateway)
	}
	if filter.HasState {
		query += " AND payment_state = ?"
		args = append(args, filter.PaymentState)
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*entity.Order, 0)
	for rows.Next() {
		order, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

const selectOrderQuery = `
	SELECT id, cart_number, gateway, amount_total, currency, payment_state,
		transaction_id, card_type, card_mask,
		captured_amount, refunded_amount, properties_json,
		created_at, updated_at
	FROM orders
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row *sql.Row) (*entity.Order, error) {
	order, err := scanOrderRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return order, err
}

func scanOrderRow(row rowScanner) (*entity.Order, error) {
	var order entity.Order
	var amountTotal, capturedAmount, refundedAmount, propertiesJSON string
	var transactionID, cardType, cardMask sql.NullString

	err := row.Scan(
		&order.ID,
		&order.CartNumber,
		&order.Gateway,
		&amountTotal,
		&order.Currency,
		&order.PaymentState,
		&transactionID,
		&cardType,
		&cardMask,
		&capturedAmount,
		&refundedAmount,
		&propertiesJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if order.AmountTotal, err = decimalFromString(amountTotal); err != nil {
		return nil, err
	}
	if order.CapturedAmount, err = decimalFromString(capturedAmount); err != nil {
		return nil, err
	}
	if order.RefundedAmount, err = decimalFromString(refundedAmount); err != nil {
		return nil, err
	}
	if order.Properties, err = parseProperties(propertiesJSON); err != nil {
		return nil, err
	}
	order.TransactionID = stringPtrFromNull(transactionID)
	order.CardType = stringPtrFromNull(cardType)
	order.CardMask = stringPtrFromNull(cardMask)

	return &order, nil
}
