package product

import "context"

// Restock moves the owner-set quantity from From to To. It only applies while the stored quantity
// still equals From.
type Restock struct {
	From int
	To   int
}

// Repository stores listings. Update and Delete never touch Reserved, which belongs to the inventory ledger;
// both fail with ErrConflict when the stored reservations forbid the change.
type Repository interface {
	Get(ctx context.Context, id string) (*Product, error)
	// GetForUpdate reads from the system of record, bypassing any cache.
	GetForUpdate(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, f Filter) (Page, error)
	Insert(ctx context.Context, p *Product) error
	// Update writes the listing fields of p and refreshes p.Quantity and p.Reserved from the store.
	// Quantity is written only for a non-nil restock; a stored quantity other than restock.From
	// yields ErrConflict.
	Update(ctx context.Context, p *Product, restock *Restock) error
	Delete(ctx context.Context, id string) error
}
