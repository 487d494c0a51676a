package services

import (
	"context"
	"errors"
	"log"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/db"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/models"
)

var errStreamEnded = errors.New("stream ended")

// LiveCollection holds an ordered in-memory snapshot of all listings, replaced wholesale
// whenever the store reports a change. One subscription writes; any number of readers read.
type LiveCollection struct {
	store      db.DocumentStore
	collection string
	order      db.Order

	mu       sync.RWMutex
	snapshot []models.Listing
	loading  bool
	err      error
	active   *Subscription
	onChange []func([]models.Listing)
}

// Subscription is the handle of an open LiveCollection feed.
type Subscription struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Close cancels the feed and waits for it to stop. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed once the feed has stopped, whether by Close or by an error.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// NewLiveCollection creates a collection of listings ordered by creation time, newest first.
func NewLiveCollection(store db.DocumentStore) *LiveCollection {
	return &LiveCollection{
		store:      store,
		collection: db.ListingsCollection,
		order:      db.Order{Key: createdAtField, Descending: true},
		snapshot:   []models.Listing{},
		loading:    true,
	}
}

// Open starts the feed. Opening while another subscription is active is a caller error:
// it is logged and the new subscription takes over; the old one keeps running until closed
// but its updates are ignored.
func (c *LiveCollection) Open(ctx context.Context) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	events, err := c.store.Subscribe(subCtx, c.collection, c.order)
	if err != nil {
		cancel()
		subErr := &SubscriptionError{Collection: c.collection, Err: err}
		c.mu.Lock()
		c.loading = false
		c.err = subErr
		c.mu.Unlock()
		return nil, subErr
	}

	sub := &Subscription{ctx: subCtx, cancel: cancel, done: make(chan struct{})}
	c.mu.Lock()
	if c.active != nil {
		log.Printf("WARNING: live collection %s re-opened without closing the previous subscription", c.collection)
	}
	c.active = sub
	c.mu.Unlock()

	go c.run(sub, events)
	return sub, nil
}

func (c *LiveCollection) run(sub *Subscription, events <-chan db.SnapshotEvent) {
	defer close(sub.done)
	defer func() {
		c.mu.Lock()
		if c.active == sub {
			c.active = nil
		}
		c.mu.Unlock()
	}()

	failed := false
	for ev := range events {
		if ev.Err != nil {
			c.fail(sub, ev.Err)
			failed = true
			continue
		}
		c.replace(sub, c.decode(ev.Records))
	}
	if !failed && sub.ctx.Err() == nil {
		c.fail(sub, errStreamEnded)
	}
}

func (c *LiveCollection) decode(records []bson.Raw) []models.Listing {
	listings := make([]models.Listing, 0, len(records))
	dropped := 0
	for _, raw := range records {
		listing, err := DecodeListing(raw)
		if err != nil || !listing.Complete() {
			dropped++
			continue
		}
		listings = append(listings, *listing)
	}
	if dropped > 0 {
		log.Printf("Live collection %s: dropped %d incomplete records from snapshot", c.collection, dropped)
	}
	return listings
}

func (c *LiveCollection) replace(sub *Subscription, listings []models.Listing) {
	c.mu.Lock()
	if c.active != sub {
		c.mu.Unlock()
		return
	}
	c.snapshot = listings
	c.loading = false
	c.err = nil
	hooks := append([]func([]models.Listing){}, c.onChange...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(listings)
	}
}

// fail keeps the last snapshot and records the error.
func (c *LiveCollection) fail(sub *Subscription, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != sub {
		return
	}
	log.Printf("Live collection %s subscription error: %v", c.collection, err)
	c.loading = false
	c.err = &SubscriptionError{Collection: c.collection, Err: err}
}

// Snapshot returns the current listings. The slice is shared and must not be modified.
func (c *LiveCollection) Snapshot() []models.Listing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Loading reports whether no snapshot and no error has arrived yet.
func (c *LiveCollection) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Err returns the *SubscriptionError that degraded the collection, or nil.
func (c *LiveCollection) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// OnChange registers fn to be called with every new snapshot, outside the lock.
func (c *LiveCollection) OnChange(fn func([]models.Listing)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}
