package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/inventory"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/product"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func seedProduct(t *testing.T, repo *InventoryRepository, id string, qty int) *product.Product {
	t.Helper()
	p, err := product.New(id, "seller", product.Draft{
		Title:     "Copper wire offcuts",
		Price:     decimal.RequireFromString("4.20"),
		Quantity:  qty,
		Category:  product.CategoryMetal,
		Condition: product.ConditionScrap,
	}, t0)
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), p))
	return p
}

func reservation(t *testing.T, orderID, productID string, qty int) *inventory.Reservation {
	t.Helper()
	r, err := inventory.NewReservation(orderID, productID, qty, t0, 30*time.Minute)
	require.NoError(t, err)
	return r
}

func TestReserveCommitRelease(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	seedProduct(t, repo, "p-1", 5)

	require.NoError(t, repo.Reserve(ctx, reservation(t, "o-1", "p-1", 2)))
	avail, err := repo.Available(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 3, avail)

	committed, err := repo.Commit(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, inventory.StatusCommitted, committed.Status)

	again, err := repo.Commit(ctx, "o-1")
	assert.ErrorIs(t, err, inventory.ErrAlreadySettled)
	assert.Equal(t, inventory.StatusCommitted, again.Status)

	p, err := repo.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Quantity)
	assert.Equal(t, 0, p.Reserved)

	_, err = repo.Release(ctx, "o-1")
	assert.ErrorIs(t, err, inventory.ErrAlreadySettled)

	require.NoError(t, repo.Reserve(ctx, reservation(t, "o-2", "p-1", 3)))
	_, err = repo.Release(ctx, "o-2")
	require.NoError(t, err)
	_, err = repo.Release(ctx, "o-2")
	require.NoError(t, err, "releasing twice is a no-op")

	avail, err = repo.Available(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 3, avail)

	_, err = repo.Commit(ctx, "o-2")
	assert.ErrorIs(t, err, inventory.ErrAlreadySettled)
	_, err = repo.Commit(ctx, "missing")
	assert.ErrorIs(t, err, inventory.ErrReservationNotFound)
}

func TestReserveRejectsOversell(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	seedProduct(t, repo, "p-1", 5)

	require.NoError(t, repo.Reserve(ctx, reservation(t, "o-1", "p-1", 3)))
	err := repo.Reserve(ctx, reservation(t, "o-2", "p-1", 3))
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	err = repo.Reserve(ctx, reservation(t, "o-1", "p-1", 1))
	assert.ErrorIs(t, err, inventory.ErrDuplicate)

	err = repo.Reserve(ctx, reservation(t, "o-3", "nope", 1))
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	seedProduct(t, repo, "p-1", 10)

	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Reserve(ctx, reservation(t, fmt.Sprintf("o-%d", i), "p-1", 3))
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, inventory.ErrInsufficientStock):
				short.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(3), ok.Load())
	assert.Equal(t, int32(47), short.Load())
	avail, err := repo.Available(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 1, avail)
}

func TestUpdateAndDeleteRespectReservations(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	seedProduct(t, repo, "p-1", 5)
	require.NoError(t, repo.Reserve(ctx, reservation(t, "o-1", "p-1", 4)))

	p, err := repo.Get(ctx, "p-1")
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Update(ctx, p, &product.Restock{From: 5, To: 3}), product.ErrConflict)
	assert.ErrorIs(t, repo.Update(ctx, p, &product.Restock{From: 6, To: 8}), product.ErrConflict, "stale quantity")

	p.Reserved = 0 // ignored: the ledger owns reserved
	require.NoError(t, repo.Update(ctx, p, &product.Restock{From: 5, To: 8}))
	assert.Equal(t, 8, p.Quantity)
	assert.Equal(t, 4, p.Reserved, "update refreshes the caller's stock counters")
	stored, err := repo.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Reserved)
	assert.Equal(t, 4, stored.Available())

	assert.ErrorIs(t, repo.Delete(ctx, "p-1"), product.ErrConflict)
	_, err = repo.Release(ctx, "o-1")
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "p-1"))
	_, err = repo.Get(ctx, "p-1")
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestUpdateWithoutRestockKeepsStoredQuantity(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	seedProduct(t, repo, "p-1", 40)

	stale, err := repo.Get(ctx, "p-1")
	require.NoError(t, err)

	require.NoError(t, repo.Reserve(ctx, reservation(t, "o-1", "p-1", 30)))
	_, err = repo.Commit(ctx, "o-1")
	require.NoError(t, err)

	stale.Title = "Retitled"
	require.NoError(t, repo.Update(ctx, stale, nil))
	assert.Equal(t, 10, stale.Quantity)

	stored, err := repo.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Retitled", stored.Title)
	assert.Equal(t, 10, stored.Quantity)
	assert.Equal(t, 10, stored.Available())
}

func TestReserveRefusesPausedListing(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	seedProduct(t, repo, "p-1", 5)

	p, err := repo.Get(ctx, "p-1")
	require.NoError(t, err)
	p.Status = product.StatusPaused
	require.NoError(t, repo.Update(ctx, p, nil))

	assert.ErrorIs(t, repo.Reserve(ctx, reservation(t, "o-1", "p-1", 1)), product.ErrNotAvailable)
	avail, err := repo.Available(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 5, avail)
}

func TestExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	seedProduct(t, repo, "p-1", 10)
	require.NoError(t, repo.Reserve(ctx, reservation(t, "o-1", "p-1", 1)))
	require.NoError(t, repo.Reserve(ctx, reservation(t, "o-2", "p-1", 1)))
	_, err := repo.Commit(ctx, "o-2")
	require.NoError(t, err)

	due, err := repo.Expired(ctx, t0.Add(10*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = repo.Expired(ctx, t0.Add(30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "o-1", due[0].OrderID)
}

func TestListFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	for i := 0; i < 12; i++ {
		p, err := product.New(fmt.Sprintf("p-%02d", i), "seller", product.Draft{
			Title:     fmt.Sprintf("Lot %02d", i),
			Price:     decimal.NewFromInt(int64(i + 1)),
			Quantity:  1,
			Category:  product.CategoryPaper,
			Condition: product.ConditionUsed,
		}, t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, repo.Insert(ctx, p))
	}

	page, err := repo.List(ctx, product.Filter{Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 3, page.Pages())
	require.Len(t, page.Items, 5)
	assert.Equal(t, "p-06", page.Items[0].ID, "newest first")

	page, err = repo.List(ctx, product.Filter{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}
