package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/inventory"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/product"
)

// InventoryRepository stores products and their reservations behind one mutex, so it serves both as the
// product.Repository and as the inventory.Ledger. Every ledger operation is linearized.
type InventoryRepository struct {
	mu           sync.Mutex
	products     map[string]*product.Product
	reservations map[string]*inventory.Reservation // keyed by order id
	now          func() time.Time
}

var (
	_ product.Repository = (*InventoryRepository)(nil)
	_ inventory.Ledger   = (*InventoryRepository)(nil)
)

func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		products:     make(map[string]*product.Product),
		reservations: make(map[string]*inventory.Reservation),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (r *InventoryRepository) Get(ctx context.Context, id string) (*product.Product, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *InventoryRepository) List(ctx context.Context, f product.Filter) (product.Page, error) {
	_ = ctx
	f = f.Normalize()

	r.mu.Lock()
	matched := make([]*product.Product, 0)
	for _, p := range r.products {
		if f.Matches(p) {
			matched = append(matched, p.Clone())
		}
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return product.Page{
		Items: paginate(matched, f.Page, f.Limit),
		Total: len(matched),
		Page:  f.Page,
		Limit: f.Limit,
	}, nil
}

func (r *InventoryRepository) Insert(ctx context.Context, p *product.Product) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("inventory repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[p.ID]; exists {
		return fmt.Errorf("inventory repository: product %s already exists", p.ID)
	}
	stored := p.Clone()
	stored.Reserved = 0
	r.products[p.ID] = stored
	return nil
}

func (r *InventoryRepository) GetForUpdate(ctx context.Context, id string) (*product.Product, error) {
	return r.Get(ctx, id)
}

func (r *InventoryRepository) Update(ctx context.Context, p *product.Product, restock *product.Restock) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.products[p.ID]
	if !ok {
		return product.ErrNotFound
	}
	quantity := current.Quantity
	if restock != nil {
		if current.Quantity != restock.From {
			return fmt.Errorf("%w: quantity changed from %d to %d", product.ErrConflict, restock.From, current.Quantity)
		}
		if restock.To < current.Reserved {
			return fmt.Errorf("%w: quantity %d below reserved %d", product.ErrConflict, restock.To, current.Reserved)
		}
		quantity = restock.To
	}
	stored := p.Clone()
	stored.Quantity = quantity
	stored.Reserved = current.Reserved
	r.products[p.ID] = stored
	p.Quantity, p.Reserved = quantity, current.Reserved
	return nil
}

func (r *InventoryRepository) Delete(ctx context.Context, id string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.products[id]
	if !ok {
		return product.ErrNotFound
	}
	if current.Reserved > 0 {
		return fmt.Errorf("%w: %d units reserved", product.ErrConflict, current.Reserved)
	}
	delete(r.products, id)
	for orderID, res := range r.reservations {
		if res.ProductID == id {
			delete(r.reservations, orderID)
		}
	}
	return nil
}

func (r *InventoryRepository) Reserve(ctx context.Context, res *inventory.Reservation) error {
	_ = ctx
	if res == nil || res.OrderID == "" {
		return fmt.Errorf("inventory repository: order id is required")
	}
	if res.Quantity <= 0 {
		return inventory.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.reservations[res.OrderID]; exists {
		return inventory.ErrDuplicate
	}
	p, ok := r.products[res.ProductID]
	if !ok {
		return product.ErrNotFound
	}
	if !p.Purchasable() {
		return product.ErrNotAvailable
	}
	if p.Available() < res.Quantity {
		return inventory.ErrInsufficientStock
	}

	p.Reserved += res.Quantity
	stored := res.Clone()
	stored.Status = inventory.StatusActive
	r.reservations[res.OrderID] = stored
	return nil
}

func (r *InventoryRepository) Release(ctx context.Context, orderID string) (*inventory.Reservation, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[orderID]
	if !ok {
		return nil, inventory.ErrReservationNotFound
	}
	switch res.Status {
	case inventory.StatusReleased:
		return res.Clone(), nil
	case inventory.StatusCommitted:
		return res.Clone(), inventory.ErrAlreadySettled
	}

	if p, ok := r.products[res.ProductID]; ok {
		p.Reserved -= res.Quantity
	}
	_ = res.Settle(inventory.StatusReleased, r.now())
	return res.Clone(), nil
}

func (r *InventoryRepository) Commit(ctx context.Context, orderID string) (*inventory.Reservation, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[orderID]
	if !ok {
		return nil, inventory.ErrReservationNotFound
	}
	if !res.Active() {
		return res.Clone(), inventory.ErrAlreadySettled
	}
	p, ok := r.products[res.ProductID]
	if !ok {
		return nil, product.ErrNotFound
	}

	p.Reserved -= res.Quantity
	p.Quantity -= res.Quantity
	_ = res.Settle(inventory.StatusCommitted, r.now())
	return res.Clone(), nil
}

func (r *InventoryRepository) Available(ctx context.Context, productID string) (int, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return 0, product.ErrNotFound
	}
	return p.Available(), nil
}

func (r *InventoryRepository) Expired(ctx context.Context, now time.Time, limit int) ([]*inventory.Reservation, error) {
	_ = ctx

	r.mu.Lock()
	due := make([]*inventory.Reservation, 0)
	for _, res := range r.reservations {
		if res.Expired(now) {
			due = append(due, res.Clone())
		}
	}
	r.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}
