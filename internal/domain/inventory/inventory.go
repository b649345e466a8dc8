package inventory

import (
	"errors"
	"time"
)

var (
	ErrInsufficientStock   = errors.New("inventory: insufficient stock")
	ErrAlreadySettled      = errors.New("inventory: reservation already settled")
	ErrReservationNotFound = errors.New("inventory: reservation not found")
	ErrInvalidQuantity     = errors.New("inventory: quantity must be greater than zero")
	ErrDuplicate           = errors.New("inventory: reservation already exists")
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCommitted Status = "committed"
	StatusReleased  Status = "released"
)

// Reservation holds stock for one order. Its identity is the order id.
type Reservation struct {
	OrderID   string
	ProductID string
	Quantity  int
	Status    Status
	ExpiresAt time.Time
	CreatedAt time.Time
	SettledAt time.Time
}

func NewReservation(orderID, productID string, quantity int, now time.Time, ttl time.Duration) (*Reservation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return &Reservation{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Status:    StatusActive,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

func (r *Reservation) Active() bool { return r.Status == StatusActive }

// Expired reports whether an active reservation has outlived its expiry.
func (r *Reservation) Expired(now time.Time) bool {
	return r.Active() && !now.Before(r.ExpiresAt)
}

// Settle moves an active reservation to a terminal status. Settling twice fails with ErrAlreadySettled.
func (r *Reservation) Settle(to Status, now time.Time) error {
	if !r.Active() {
		return ErrAlreadySettled
	}
	r.Status = to
	r.SettledAt = now
	return nil
}

func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
