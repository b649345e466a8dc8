package product

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("product: not found")
	ErrNotAvailable = errors.New("product: not available")
	ErrInvalid      = errors.New("product: invalid")
	// ErrConflict reports a mutation that would break 0 <= reserved <= quantity.
	ErrConflict = errors.New("product: conflicts with active reservations")
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusPaused    Status = "paused"
)

func (s Status) Valid() bool {
	return s == StatusAvailable || s == StatusPaused
}

type Category string

const (
	CategoryPlastic    Category = "plastic"
	CategoryPaper      Category = "paper"
	CategoryMetal      Category = "metal"
	CategoryGlass      Category = "glass"
	CategoryElectronic Category = "electronic"
	CategoryTextile    Category = "textile"
	CategoryOrganic    Category = "organic"
	CategoryOther      Category = "other"
)

var categories = map[Category]struct{}{
	CategoryPlastic: {}, CategoryPaper: {}, CategoryMetal: {}, CategoryGlass: {},
	CategoryElectronic: {}, CategoryTextile: {}, CategoryOrganic: {}, CategoryOther: {},
}

func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

type Condition string

const (
	ConditionNew         Condition = "new"
	ConditionUsed        Condition = "used"
	ConditionRefurbished Condition = "refurbished"
	ConditionScrap       Condition = "scrap"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionUsed, ConditionRefurbished, ConditionScrap:
		return true
	}
	return false
}

type Location struct {
	City   string
	Region string
}

// Product is a marketplace listing. Reserved is owned by the inventory ledger; Quantity is total stock.
type Product struct {
	ID          string
	Title       string
	Description string
	Price       decimal.Decimal
	Quantity    int
	Reserved    int
	Unit        string
	Category    Category
	Condition   Condition
	Images      []string
	Location    Location
	OwnerID     string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Draft carries the owner-supplied fields of a new listing.
type Draft struct {
	Title       string
	Description string
	Price       decimal.Decimal
	Quantity    int
	Unit        string
	Category    Category
	Condition   Condition
	Images      []string
	Location    Location
}

// Patch carries an update; nil fields are left unchanged.
type Patch struct {
	Title       *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
	Unit        *string
	Category    *Category
	Condition   *Condition
	Images      []string
	Location    *Location
}

func New(id, ownerID string, d Draft, now time.Time) (*Product, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalid)
	}
	p := &Product{
		ID:          id,
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Price:       d.Price,
		Quantity:    d.Quantity,
		Unit:        d.Unit,
		Category:    d.Category,
		Condition:   d.Condition,
		Images:      append([]string(nil), d.Images...),
		Location:    d.Location,
		OwnerID:     ownerID,
		Status:      StatusAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.Unit == "" {
		p.Unit = "kg"
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Apply mutates the product with the non-nil fields of patch. A quantity below Reserved yields ErrConflict.
func (p *Product) Apply(patch Patch, now time.Time) error {
	next := *p
	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Price != nil {
		next.Price = *patch.Price
	}
	if patch.Quantity != nil {
		next.Quantity = *patch.Quantity
	}
	if patch.Unit != nil {
		next.Unit = *patch.Unit
	}
	if patch.Category != nil {
		next.Category = *patch.Category
	}
	if patch.Condition != nil {
		next.Condition = *patch.Condition
	}
	if patch.Images != nil {
		next.Images = append([]string(nil), patch.Images...)
	}
	if patch.Location != nil {
		next.Location = *patch.Location
	}
	if err := next.validate(); err != nil {
		return err
	}
	if next.Quantity < next.Reserved {
		return fmt.Errorf("%w: quantity %d below reserved %d", ErrConflict, next.Quantity, next.Reserved)
	}
	next.UpdatedAt = now
	*p = next
	return nil
}

func (p *Product) SetStatus(s Status, now time.Time) error {
	if !s.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalid, s)
	}
	p.Status = s
	p.UpdatedAt = now
	return nil
}

// Available is the stock that can still be reserved.
func (p *Product) Available() int {
	return p.Quantity - p.Reserved
}

func (p *Product) Purchasable() bool {
	return p.Status == StatusAvailable
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	c.Images = append([]string(nil), p.Images...)
	return &c
}

func (p *Product) validate() error {
	switch n := utf8.RuneCountInString(p.Title); {
	case n < 3 || n > 120:
		return fmt.Errorf("%w: title must be 3 to 120 characters", ErrInvalid)
	case !p.Price.IsPositive():
		return fmt.Errorf("%w: price must be greater than zero", ErrInvalid)
	case p.Quantity < 0:
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalid)
	case !p.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, p.Category)
	case !p.Condition.Valid():
		return fmt.Errorf("%w: unknown condition %q", ErrInvalid, p.Condition)
	}
	return nil
}
