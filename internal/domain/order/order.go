package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	// ErrSelfPurchase is returned when the buyer owns the listing.
	ErrSelfPurchase = errors.New("order: buyer cannot purchase own listing")
	// ErrUnknownReference is returned for payment references with no pending or completed order.
	ErrUnknownReference       = errors.New("order: unknown payment reference")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrConflict               = errors.New("order: conflict")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool { return s != StatusPending }

type Order struct {
	ID                       string
	ProductID                string
	ProductTitle             string
	BuyerID                  string
	SellerID                 string
	Quantity                 int
	UnitPriceAtPurchase      decimal.Decimal
	TotalPrice               decimal.Decimal
	ExternalPaymentReference string
	PaymentIntent            string
	Status                   Status
	FailureReason            string
	ExpiresAt                time.Time
	CreatedAt                time.Time
	UpdatedAt                time.Time
	CompletedAt              time.Time
}

// Line is the priced product snapshot an order is created from.
type Line struct {
	ProductID    string
	ProductTitle string
	SellerID     string
	UnitPrice    decimal.Decimal
	Quantity     int
}

func New(id, buyerID string, line Line, now, expiresAt time.Time) (*Order, error) {
	if line.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if buyerID == line.SellerID {
		return nil, ErrSelfPurchase
	}
	return &Order{
		ID:                  id,
		ProductID:           line.ProductID,
		ProductTitle:        line.ProductTitle,
		BuyerID:             buyerID,
		SellerID:            line.SellerID,
		Quantity:            line.Quantity,
		UnitPriceAtPurchase: line.UnitPrice,
		TotalPrice:          line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
		Status:              StatusPending,
		ExpiresAt:           expiresAt,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

func (o *Order) AttachPaymentReference(ref string, now time.Time) {
	o.ExternalPaymentReference = ref
	o.touch(now)
}

// Complete moves a pending order to completed. Completing a completed order is a no-op.
func (o *Order) Complete(paymentIntent string, now time.Time) error {
	next, err := o.state().Complete(o, paymentIntent, now)
	if err != nil {
		return err
	}
	o.apply(next, now)
	return nil
}

// Cancel moves a pending order to cancelled. Cancelling a cancelled order is a no-op.
func (o *Order) Cancel(reason string, now time.Time) error {
	next, err := o.state().Cancel(o, reason)
	if err != nil {
		return err
	}
	o.apply(next, now)
	return nil
}

// Fail moves a pending order to failed. Failing a failed order is a no-op.
func (o *Order) Fail(reason string, now time.Time) error {
	next, err := o.state().Fail(o, reason)
	if err != nil {
		return err
	}
	o.apply(next, now)
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}

func (o *Order) state() OrderState {
	return stateFor(o.Status)
}

func (o *Order) apply(next OrderState, now time.Time) {
	if next.Status() == o.Status {
		return
	}
	o.Status = next.Status()
	o.touch(now)
}

func (o *Order) touch(now time.Time) {
	o.UpdatedAt = now
}
