package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/models"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

func TestCounterService_ConcurrentIncrementsConverge(t *testing.T) {
	store := newFakeStore()
	id := seedListing(t, store, models.Listing{Title: "Casa", Price: 1, Type: models.TransactionSale})
	counter := NewCounterService(store)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counter.Increment(context.Background(), id)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), store.listing(t, id).Views)
	assert.Equal(t, 50, store.incCalls)
}

func TestCounterService_DoesNotTouchUpdatedAt(t *testing.T) {
	store := newFakeStore()
	id := seedListing(t, store, models.Listing{Title: "Casa", Price: 1, Type: models.TransactionSale})
	before := store.listing(t, id).UpdatedAt

	NewCounterService(store).Increment(context.Background(), id)

	after := store.listing(t, id)
	assert.Equal(t, int64(1), after.Views)
	assert.Equal(t, before, after.UpdatedAt)
}

func TestCounterService_RetriesWriteConflicts(t *testing.T) {
	store := newFakeStore()
	id := seedListing(t, store, models.Listing{Title: "Casa", Price: 1, Type: models.TransactionSale})
	store.incConflicts = 2

	NewCounterService(store).Increment(context.Background(), id)

	assert.Equal(t, int64(1), store.listing(t, id).Views)
	assert.Equal(t, 3, store.incCalls)
}

func TestCounterService_SwallowsErrors(t *testing.T) {
	store := newFakeStore()
	id := seedListing(t, store, models.Listing{Title: "Casa", Price: 1, Type: models.TransactionSale})
	counter := NewCounterService(store)

	store.incErr = errors.New("network unreachable")
	assert.NotPanics(t, func() { counter.Increment(context.Background(), id) })
	// Ambiguous failures are not retried.
	assert.Equal(t, 1, store.incCalls)

	store.incErr = nil
	assert.NotPanics(t, func() { counter.Increment(context.Background(), utils.NewSixID()) })
	assert.Equal(t, int64(0), store.listing(t, id).Views)
}
