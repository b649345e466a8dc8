package order

import (
	"context"

	"github.com/Zhima-Mochi/ecomarket/internal/application"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/access"
	domain "github.com/Zhima-Mochi/ecomarket/internal/domain/order"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/product"
)

const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

type ListInput struct {
	Role  string
	Page  int
	Limit int
}

type Page struct {
	Items []*domain.Order
	Total int
	Page  int
	Limit int
}

func (p Page) Pages() int {
	return product.Page{Total: p.Total, Limit: p.Limit}.Pages()
}

// Get returns an order visible to actor. Orders the actor may not view are reported as not found.
func (m *Manager) Get(ctx context.Context, actor access.Actor, orderID string) (*domain.Order, error) {
	if !actor.Authenticated() {
		return nil, access.ErrUnauthenticated
	}
	o, err := m.orders.Get(ctx, orderID)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	if !access.Authorize(actor, access.ActionOrderView, access.Resource{BuyerID: o.BuyerID, SellerID: o.SellerID}) {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// List returns the actor's purchases (role buyer) or sales (role seller), newest first.
func (m *Manager) List(ctx context.Context, actor access.Actor, in ListInput) (*Page, error) {
	if !actor.Authenticated() {
		return nil, access.ErrUnauthenticated
	}
	f := product.Filter{Page: in.Page, Limit: in.Limit}.Normalize()
	q := domain.Query{Page: f.Page, Limit: f.Limit}
	switch in.Role {
	case RoleBuyer, "":
		q.BuyerID = actor.UserID
	case RoleSeller:
		q.SellerID = actor.UserID
	default:
		return nil, application.NewValidation("role must be buyer or seller")
	}

	items, total, err := m.orders.List(ctx, q)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return &Page{Items: items, Total: total, Page: q.Page, Limit: q.Limit}, nil
}
