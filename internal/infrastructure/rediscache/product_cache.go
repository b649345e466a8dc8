// Package rediscache is a read-through Redis cache in front of the product repository.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/ecomarket/internal/domain/outbox"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/product"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/Zhima-Mochi/ecomarket/internal/observability/logctx"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 10 * time.Minute
	cachePeer  = "redis"
)

// ProductCache caches single-product reads. Lists always go to the repository because their
// totals change with every reservation; stock-changing order events evict the affected product.
type ProductCache struct {
	next   product.Repository
	client redis.Cmdable
	ttl    time.Duration
	log    observability.Logger
	calls  observability.Counter
}

var _ product.Repository = (*ProductCache)(nil)

func NewProductCache(next product.Repository, client redis.Cmdable, ttl time.Duration, tel observability.Observability) *ProductCache {
	tel = observability.Or(tel)
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ProductCache{
		next:   next,
		client: client,
		ttl:    ttl,
		log:    tel.Logger().With(observability.F("component", "product_cache")),
		calls:  tel.Metrics().Counter(observability.MExternalRequests),
	}
}

func key(id string) string { return fmt.Sprintf("product:%s", id) }

func (c *ProductCache) Get(ctx context.Context, id string) (*product.Product, error) {
	raw, err := c.client.Get(ctx, key(id)).Bytes()
	switch {
	case err == nil:
		var p product.Product
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			c.record("get", "hit")
			return &p, nil
		}
		c.record("get", "corrupt")
	case errors.Is(err, redis.Nil):
		c.record("get", "miss")
	default:
		c.record("get", "error")
		logctx.FromOr(ctx, c.log).Warn("cache_read_failed", observability.F("product_id", id), observability.Err(err))
	}

	p, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(p); err == nil {
		if err := c.client.Set(ctx, key(id), data, c.ttl).Err(); err != nil {
			c.record("set", "error")
			logctx.FromOr(ctx, c.log).Warn("cache_write_failed", observability.F("product_id", id), observability.Err(err))
		}
	}
	return p, nil
}

func (c *ProductCache) List(ctx context.Context, f product.Filter) (product.Page, error) {
	return c.next.List(ctx, f)
}

func (c *ProductCache) Insert(ctx context.Context, p *product.Product) error {
	return c.next.Insert(ctx, p)
}

func (c *ProductCache) GetForUpdate(ctx context.Context, id string) (*product.Product, error) {
	return c.next.GetForUpdate(ctx, id)
}

func (c *ProductCache) Update(ctx context.Context, p *product.Product, restock *product.Restock) error {
	if err := c.next.Update(ctx, p, restock); err != nil {
		return err
	}
	c.Invalidate(ctx, p.ID)
	return nil
}

func (c *ProductCache) Delete(ctx context.Context, id string) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.Invalidate(ctx, id)
	return nil
}

// Invalidate evicts one product. Failures are logged; the TTL bounds staleness.
func (c *ProductCache) Invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, key(id)).Err(); err != nil {
		c.record("del", "error")
		logctx.FromOr(ctx, c.log).Warn("cache_invalidate_failed", observability.F("product_id", id), observability.Err(err))
		return
	}
	c.record("del", "success")
}

// Subscribe evicts the product of every order lifecycle event, since each one moves its stock.
func (c *ProductCache) Subscribe(bus domoutbox.Subscriber, wrap func(domoutbox.Handler) domoutbox.Handler) {
	domoutbox.SubscribeAll(bus, c.handle, wrap, order.LifecycleEvents...)
}

func (c *ProductCache) handle(ctx context.Context, e domoutbox.Event) error {
	var productID string
	switch ev := e.(type) {
	case order.CreatedEvent:
		productID = ev.ProductID
	case order.CompletedEvent:
		productID = ev.ProductID
	case order.CancelledEvent:
		productID = ev.ProductID
	case order.FailedEvent:
		productID = ev.ProductID
	default:
		return nil
	}
	if productID != "" {
		c.Invalidate(ctx, productID)
	}
	return nil
}

func (c *ProductCache) record(endpoint, outcome string) {
	c.calls.Add(1,
		observability.L("peer", cachePeer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
}
