package inventory

import (
	"context"
	"time"
)

// Ledger is the only writer of a product's reserved stock. Every method is atomic per product.
//
// Reserve fails with ErrInsufficientStock when available stock is below the reservation quantity.
// Commit permanently removes the reserved quantity from stock; it succeeds once per reservation and
// afterwards returns the settled reservation together with ErrAlreadySettled.
// Release on a released reservation is a no-op; on a committed one it returns ErrAlreadySettled.
type Ledger interface {
	Reserve(ctx context.Context, r *Reservation) error
	Release(ctx context.Context, orderID string) (*Reservation, error)
	Commit(ctx context.Context, orderID string) (*Reservation, error)
	Available(ctx context.Context, productID string) (int, error)
	Expired(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)
}
