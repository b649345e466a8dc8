package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/ecomarket/internal/domain/order"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

var _ domain.Repository = (*OrderRepository)(nil)

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, product_id, product_title, buyer_id, seller_id, quantity, unit_price::text, total_price::text,
	payment_reference, payment_intent, status, failure_reason, expires_at, created_at, updated_at, completed_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                domain.Order
		unitPrice, total string
		ref              *string
		completedAt      *time.Time
	)
	err := row.Scan(&o.ID, &o.ProductID, &o.ProductTitle, &o.BuyerID, &o.SellerID, &o.Quantity, &unitPrice, &total,
		&ref, &o.PaymentIntent, &o.Status, &o.FailureReason, &o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if o.UnitPriceAtPurchase, err = decimal.NewFromString(unitPrice); err != nil {
		return nil, fmt.Errorf("postgres: order %s unit price: %w", o.ID, err)
	}
	if o.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("postgres: order %s total: %w", o.ID, err)
	}
	if ref != nil {
		o.ExternalPaymentReference = *ref
	}
	o.ExpiresAt = o.ExpiresAt.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	o.CompletedAt = fromNull(completedAt)
	return &o, nil
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("postgres: order id is required")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO orders (id, product_id, product_title, buyer_id, seller_id, quantity, unit_price, total_price,
			payment_reference, payment_intent, status, failure_reason, expires_at, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10, $11, $12, $13, $14, $15, $16)`,
		o.ID, o.ProductID, o.ProductTitle, o.BuyerID, o.SellerID, o.Quantity,
		o.UnitPriceAtPurchase.String(), o.TotalPrice.String(),
		nullString(o.ExternalPaymentReference), o.PaymentIntent, string(o.Status), o.FailureReason,
		o.ExpiresAt, o.CreatedAt, o.UpdatedAt, nullTime(o.CompletedAt),
	)
	if isCode(err, pgUniqueViolation) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("postgres: insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get order: %w", err)
	}
	return o, nil
}

// Update persists the mutable order fields. The line (product, quantity, prices) never changes.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET payment_reference = $2, payment_intent = $3, status = $4, failure_reason = $5,
			updated_at = $6, completed_at = $7
		WHERE id = $1`,
		o.ID, nullString(o.ExternalPaymentReference), o.PaymentIntent, string(o.Status), o.FailureReason,
		o.UpdatedAt, nullTime(o.CompletedAt),
	)
	if isCode(err, pgUniqueViolation) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("postgres: update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) FindByPaymentReference(ctx context.Context, ref string) (*domain.Order, error) {
	if ref == "" {
		return nil, domain.ErrNotFound
	}
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_reference = $1`, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find order by reference: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) List(ctx context.Context, q domain.Query) ([]*domain.Order, int, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}

	const filter = ` WHERE ($1::text = '' OR buyer_id = $1) AND ($2::text = '' OR seller_id = $2)`
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+filter, q.BuyerID, q.SellerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count orders: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders`+filter+
		` ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`,
		q.BuyerID, q.SellerID, q.Limit, (q.Page-1)*q.Limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0, q.Limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: list orders: %w", err)
	}
	return orders, total, nil
}
