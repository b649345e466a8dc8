package product

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Filter selects listings. Paused listings are only returned when OwnerID is set.
type Filter struct {
	Category Category
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	City     string
	OwnerID  string
	Page     int
	Limit    int
}

// Normalize clamps paging to its defaults and bounds.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	f.Search = strings.TrimSpace(f.Search)
	f.City = strings.TrimSpace(f.City)
	return f
}

func (f Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Matches reports whether p passes every criterion except paging.
func (f Filter) Matches(p *Product) bool {
	if f.OwnerID != "" {
		if p.OwnerID != f.OwnerID {
			return false
		}
	} else if p.Status != StatusAvailable {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.City != "" && !strings.Contains(strings.ToLower(p.Location.City), strings.ToLower(f.City)) {
		return false
	}
	return true
}

type Page struct {
	Items []*Product
	Total int
	Page  int
	Limit int
}

func (p Page) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}
