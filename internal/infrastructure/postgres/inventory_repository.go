package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/inventory"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/product"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// InventoryRepository keeps products and reservations in one database so every ledger change
// and its stock counter update commit together.
type InventoryRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var (
	_ product.Repository = (*InventoryRepository)(nil)
	_ inventory.Ledger   = (*InventoryRepository)(nil)
)

func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

const productColumns = `id, owner_id, title, description, price::text, quantity, reserved, unit,
	category, condition, images, city, region, status, created_at, updated_at`

func scanProduct(row pgx.Row) (*product.Product, error) {
	var (
		p     product.Product
		price string
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &price, &p.Quantity, &p.Reserved, &p.Unit,
		&p.Category, &p.Condition, &p.Images, &p.Location.City, &p.Location.Region, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("postgres: product %s price: %w", p.ID, err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (r *InventoryRepository) Get(ctx context.Context, id string) (*product.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, product.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get product: %w", err)
	}
	return p, nil
}

func (r *InventoryRepository) List(ctx context.Context, f product.Filter) (product.Page, error) {
	f = f.Normalize()

	where := make([]string, 0, 6)
	args := make([]any, 0, 8)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.OwnerID != "" {
		where = append(where, "owner_id = "+arg(f.OwnerID))
	} else {
		where = append(where, "status = "+arg(string(product.StatusAvailable)))
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(string(f.Category)))
	}
	if f.Search != "" {
		p := arg("%" + escapeLike(f.Search) + "%")
		where = append(where, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
	}
	if f.MinPrice != nil {
		where = append(where, "price >= "+arg(f.MinPrice.String())+"::numeric")
	}
	if f.MaxPrice != nil {
		where = append(where, "price <= "+arg(f.MaxPrice.String())+"::numeric")
	}
	if f.City != "" {
		where = append(where, "city ILIKE "+arg("%"+escapeLike(f.City)+"%"))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+clause, args...).Scan(&total); err != nil {
		return product.Page{}, fmt.Errorf("postgres: count products: %w", err)
	}

	query := `SELECT ` + productColumns + ` FROM products` + clause +
		` ORDER BY created_at DESC, id DESC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return product.Page{}, fmt.Errorf("postgres: list products: %w", err)
	}
	defer rows.Close()

	items := make([]*product.Product, 0, f.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return product.Page{}, fmt.Errorf("postgres: scan product: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return product.Page{}, fmt.Errorf("postgres: list products: %w", err)
	}
	return product.Page{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *InventoryRepository) Insert(ctx context.Context, p *product.Product) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("postgres: product id is required")
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO products (id, owner_id, title, description, price, quantity, reserved, unit,
			category, condition, images, city, region, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, 0, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.OwnerID, p.Title, p.Description, p.Price.String(), p.Quantity, p.Unit,
		string(p.Category), string(p.Condition), images, p.Location.City, p.Location.Region,
		string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if isCode(err, pgUniqueViolation) {
		return fmt.Errorf("%w: product %s already exists", product.ErrConflict, p.ID)
	}
	if err != nil {
		return fmt.Errorf("postgres: insert product: %w", err)
	}
	return nil
}

func (r *InventoryRepository) GetForUpdate(ctx context.Context, id string) (*product.Product, error) {
	return r.Get(ctx, id)
}

// Update writes every listing field except reserved, which only the ledger changes. Quantity is only
// written for a restock, guarded by the quantity the caller read.
func (r *InventoryRepository) Update(ctx context.Context, p *product.Product, restock *product.Restock) error {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	var (
		setQuantity    bool
		from, quantity int
	)
	if restock != nil {
		setQuantity, from, quantity = true, restock.From, restock.To
	}
	err := r.pool.QueryRow(ctx, `
		UPDATE products SET title = $2, description = $3, price = $4::numeric, unit = $5,
			category = $6, condition = $7, images = $8, city = $9, region = $10, status = $11, updated_at = $12,
			quantity = CASE WHEN $13::boolean THEN $15::integer ELSE quantity END
		WHERE id = $1 AND (NOT $13::boolean OR quantity = $14::integer)
		RETURNING quantity, reserved`,
		p.ID, p.Title, p.Description, p.Price.String(), p.Unit,
		string(p.Category), string(p.Condition), images, p.Location.City, p.Location.Region,
		string(p.Status), p.UpdatedAt, setQuantity, from, quantity,
	).Scan(&p.Quantity, &p.Reserved)
	if isCode(err, pgCheckViolation) {
		return fmt.Errorf("%w: quantity %d below reserved stock", product.ErrConflict, quantity)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: update product: %w", err)
		}
		if !exists {
			return product.ErrNotFound
		}
		return fmt.Errorf("%w: quantity changed since it was read", product.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("postgres: update product: %w", err)
	}
	return nil
}

func (r *InventoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1 AND reserved = 0`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete product: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var reserved int
	err = r.pool.QueryRow(ctx, `SELECT reserved FROM products WHERE id = $1`, id).Scan(&reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return product.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: delete product: %w", err)
	}
	return fmt.Errorf("%w: %d units reserved", product.ErrConflict, reserved)
}

// Reserve takes stock with a conditional update; concurrent callers serialize on the product row.
func (r *InventoryRepository) Reserve(ctx context.Context, res *inventory.Reservation) error {
	if res == nil || res.OrderID == "" {
		return fmt.Errorf("postgres: order id is required")
	}
	if res.Quantity <= 0 {
		return inventory.ErrInvalidQuantity
	}

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE products SET reserved = reserved + $2
			WHERE id = $1 AND status = $3 AND quantity - reserved >= $2`,
			res.ProductID, res.Quantity, string(product.StatusAvailable),
		)
		if err != nil {
			return fmt.Errorf("postgres: reserve stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var status string
			err := tx.QueryRow(ctx, `SELECT status FROM products WHERE id = $1`, res.ProductID).Scan(&status)
			if errors.Is(err, pgx.ErrNoRows) {
				return product.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("postgres: reserve stock: %w", err)
			}
			if product.Status(status) != product.StatusAvailable {
				return product.ErrNotAvailable
			}
			return inventory.ErrInsufficientStock
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO reservations (order_id, product_id, quantity, status, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			res.OrderID, res.ProductID, res.Quantity, string(inventory.StatusActive), res.ExpiresAt, res.CreatedAt,
		)
		if isCode(err, pgUniqueViolation) {
			return inventory.ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("postgres: insert reservation: %w", err)
		}
		return nil
	})
}

const reservationColumns = `order_id, product_id, quantity, status, expires_at, created_at, settled_at`

func scanReservation(row pgx.Row) (*inventory.Reservation, error) {
	var (
		res     inventory.Reservation
		settled *time.Time
	)
	if err := row.Scan(&res.OrderID, &res.ProductID, &res.Quantity, &res.Status, &res.ExpiresAt, &res.CreatedAt, &settled); err != nil {
		return nil, err
	}
	res.ExpiresAt = res.ExpiresAt.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	res.SettledAt = fromNull(settled)
	return &res, nil
}

// settle locks the reservation row and, when it is still active, applies to together with its
// stock adjustment. A released reservation released again is returned without error.
func (r *InventoryRepository) settle(ctx context.Context, orderID string, to inventory.Status, stock string) (*inventory.Reservation, error) {
	var out *inventory.Reservation
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		res, err := scanReservation(tx.QueryRow(ctx,
			`SELECT `+reservationColumns+` FROM reservations WHERE order_id = $1 FOR UPDATE`, orderID))
		if errors.Is(err, pgx.ErrNoRows) {
			return inventory.ErrReservationNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: load reservation: %w", err)
		}
		out = res

		if !res.Active() {
			if res.Status == inventory.StatusReleased && to == inventory.StatusReleased {
				return nil
			}
			return inventory.ErrAlreadySettled
		}

		if _, err := tx.Exec(ctx, `UPDATE products SET `+stock+` WHERE id = $1`, res.ProductID, res.Quantity); err != nil {
			return fmt.Errorf("postgres: adjust stock: %w", err)
		}
		now := r.now()
		if _, err := tx.Exec(ctx,
			`UPDATE reservations SET status = $2, settled_at = $3 WHERE order_id = $1`,
			orderID, string(to), now,
		); err != nil {
			return fmt.Errorf("postgres: settle reservation: %w", err)
		}
		_ = res.Settle(to, now)
		return nil
	})
	if err != nil && !errors.Is(err, inventory.ErrAlreadySettled) {
		return nil, err
	}
	return out, err
}

func (r *InventoryRepository) Release(ctx context.Context, orderID string) (*inventory.Reservation, error) {
	return r.settle(ctx, orderID, inventory.StatusReleased, `reserved = reserved - $2`)
}

func (r *InventoryRepository) Commit(ctx context.Context, orderID string) (*inventory.Reservation, error) {
	return r.settle(ctx, orderID, inventory.StatusCommitted, `reserved = reserved - $2, quantity = quantity - $2`)
}

func (r *InventoryRepository) Available(ctx context.Context, productID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT quantity - reserved FROM products WHERE id = $1`, productID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, product.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: available stock: %w", err)
	}
	return n, nil
}

func (r *InventoryRepository) Expired(ctx context.Context, now time.Time, limit int) ([]*inventory.Reservation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE status = $1 AND expires_at <= $2
		ORDER BY expires_at
		LIMIT $3`,
		string(inventory.StatusActive), now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: expired reservations: %w", err)
	}
	defer rows.Close()

	due := make([]*inventory.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan reservation: %w", err)
		}
		due = append(due, res)
	}
	return due, rows.Err()
}
