package order

import "context"

// Query selects a buyer's or seller's orders, newest first.
type Query struct {
	BuyerID  string
	SellerID string
	Page     int
	Limit    int
}

type Repository interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	FindByPaymentReference(ctx context.Context, ref string) (*Order, error)
	List(ctx context.Context, q Query) ([]*Order, int, error)
}
