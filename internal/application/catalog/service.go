package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/application"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/access"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/product"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	catalogService   = "catalog"
	useCaseCreate    = "catalog.create"
	useCaseUpdate    = "catalog.update"
	useCaseSetStatus = "catalog.set_status"
	useCaseDelete    = "catalog.delete"
)

type IDGenerator interface {
	NewID() string
}

// Service manages listings. Reads are open to everyone; mutations go through the access policy.
type Service struct {
	repo product.Repository
	ids  IDGenerator
	now  func() time.Time
	inst *application.Instrumentation
}

func NewService(repo product.Repository, ids IDGenerator, tel observability.Observability) *Service {
	return &Service{
		repo: repo,
		ids:  ids,
		now:  func() time.Time { return time.Now().UTC() },
		inst: application.NewInstrumentation(tel, catalogService),
	}
}

type ListInput struct {
	Filter product.Filter
	// Mine lists the actor's own listings, paused ones included.
	Mine bool
}

func (s *Service) List(ctx context.Context, actor access.Actor, in ListInput) (product.Page, error) {
	f := in.Filter
	f.OwnerID = ""
	if in.Mine {
		if !actor.Authenticated() {
			return product.Page{}, access.ErrUnauthenticated
		}
		f.OwnerID = actor.UserID
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return product.Page{}, application.NewValidation("minPrice must not exceed maxPrice")
	}
	if f.Category != "" && !f.Category.Valid() {
		return product.Page{}, application.NewValidation(fmt.Sprintf("unknown category %q", f.Category))
	}
	return s.repo.List(ctx, f.Normalize())
}

func (s *Service) Get(ctx context.Context, id string) (*product.Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, actor access.Actor, d product.Draft) (_ *product.Product, err error) {
	ctx, call := s.inst.Begin(ctx, useCaseCreate, "CreateProduct",
		attribute.String("product.owner_id", actor.UserID),
	)
	defer func() { call.End(err) }()

	if !access.Authorize(actor, access.ActionProductCreate, access.Resource{}) {
		call.Fail("UNAUTHENTICATED")
		return nil, access.ErrUnauthenticated
	}
	p, err := product.New(s.ids.NewID(), actor.UserID, d, s.now())
	if err != nil {
		call.Fail("INVALID_PRODUCT")
		return nil, err
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		call.Fail("REPO_INSERT_FAILED")
		return nil, fmt.Errorf("catalog: insert: %w", err)
	}
	call.Field("product_id", p.ID)
	return p, nil
}

func (s *Service) Update(ctx context.Context, actor access.Actor, id string, patch product.Patch) (_ *product.Product, err error) {
	ctx, call := s.inst.Begin(ctx, useCaseUpdate, "UpdateProduct",
		attribute.String("product.id", id),
	)
	defer func() { call.End(err) }()

	p, err := s.loadForMutation(ctx, actor, access.ActionProductUpdate, id)
	if err != nil {
		call.Fail(statusFor(err))
		return nil, err
	}
	var restock *product.Restock
	if patch.Quantity != nil {
		restock = &product.Restock{From: p.Quantity, To: *patch.Quantity}
	}
	if err := p.Apply(patch, s.now()); err != nil {
		call.Fail(statusFor(err))
		return nil, err
	}
	if err := s.repo.Update(ctx, p, restock); err != nil {
		call.Fail(statusFor(err))
		return nil, err
	}
	return p, nil
}

func (s *Service) SetStatus(ctx context.Context, actor access.Actor, id string, status product.Status) (_ *product.Product, err error) {
	ctx, call := s.inst.Begin(ctx, useCaseSetStatus, "SetProductStatus",
		attribute.String("product.id", id),
		attribute.String("product.status", string(status)),
	)
	defer func() { call.End(err) }()

	p, err := s.loadForMutation(ctx, actor, access.ActionProductUpdate, id)
	if err != nil {
		call.Fail(statusFor(err))
		return nil, err
	}
	if err := p.SetStatus(status, s.now()); err != nil {
		call.Fail(statusFor(err))
		return nil, err
	}
	if err := s.repo.Update(ctx, p, nil); err != nil {
		call.Fail(statusFor(err))
		return nil, err
	}
	return p, nil
}

// Delete removes a listing. Listings with active reservations are refused with product.ErrConflict.
func (s *Service) Delete(ctx context.Context, actor access.Actor, id string) (err error) {
	ctx, call := s.inst.Begin(ctx, useCaseDelete, "DeleteProduct",
		attribute.String("product.id", id),
	)
	defer func() { call.End(err) }()

	p, err := s.loadForMutation(ctx, actor, access.ActionProductDelete, id)
	if err != nil {
		call.Fail(statusFor(err))
		return err
	}
	if p.Reserved > 0 {
		call.Fail("CONFLICT")
		return fmt.Errorf("%w: %d units reserved", product.ErrConflict, p.Reserved)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		call.Fail(statusFor(err))
		return err
	}
	return nil
}

func (s *Service) loadForMutation(ctx context.Context, actor access.Actor, action access.Action, id string) (*product.Product, error) {
	if !actor.Authenticated() {
		return nil, access.ErrUnauthenticated
	}
	p, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.Authorize(actor, action, access.Resource{OwnerID: p.OwnerID}) {
		return nil, access.ErrForbidden
	}
	return p, nil
}

func statusFor(err error) string {
	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		return "UNAUTHENTICATED"
	case errors.Is(err, access.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, product.ErrNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, product.ErrInvalid):
		return "INVALID_PRODUCT"
	case errors.Is(err, product.ErrConflict):
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}
