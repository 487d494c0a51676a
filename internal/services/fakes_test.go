package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/auth"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/db"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/models"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/notify"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

// --- Document store ---

type fakeRecord struct {
	doc bson.M
	seq int
}

type fakeSub struct {
	collection string
	order      db.Order
	ch         chan db.SnapshotEvent
	closed     bool
}

// fakeStore is an in-memory DocumentStore. Subscribers get coalesced full snapshots after every write.
type fakeStore struct {
	mu   sync.Mutex
	data map[string]map[utils.SixID]*fakeRecord
	seq  int
	subs []*fakeSub

	createErr    error
	patchErr     error
	deleteErr    error
	findErr      error
	incErr       error
	incConflicts int
	subscribeErr error
	incCalls     int
	staleCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]map[utils.SixID]*fakeRecord{}}
}

// normalize stores values the way the driver would read them back.
func normalize(fields bson.M) bson.M {
	data, err := bson.Marshal(fields)
	if err != nil {
		panic(err)
	}
	var out bson.M
	if err := bson.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}

func (f *fakeStore) coll(name string) map[utils.SixID]*fakeRecord {
	c, ok := f.data[name]
	if !ok {
		c = map[utils.SixID]*fakeRecord{}
		f.data[name] = c
	}
	return c
}

func (f *fakeStore) CreateRecord(ctx context.Context, collection string, fields bson.M) (utils.SixID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return utils.SixID{}, f.createErr
	}
	id := utils.NewSixID()
	doc := normalize(fields)
	doc["_id"] = id
	f.seq++
	f.coll(collection)[id] = &fakeRecord{doc: normalize(doc), seq: f.seq}
	f.publishLocked(collection)
	return id, nil
}

func (f *fakeStore) PatchRecord(ctx context.Context, collection string, id utils.SixID, fields bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patchErr != nil {
		return f.patchErr
	}
	rec, ok := f.coll(collection)[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	for k, v := range normalize(fields) {
		rec.doc[k] = v
	}
	f.publishLocked(collection)
	return nil
}

func (f *fakeStore) PatchRecordIf(ctx context.Context, collection string, id utils.SixID, expect bson.M, fields bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patchErr != nil {
		return f.patchErr
	}
	rec, ok := f.coll(collection)[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	if !matches(rec.doc, expect) {
		f.staleCalls++
		return db.ErrStaleRecord
	}
	for k, v := range normalize(fields) {
		rec.doc[k] = v
	}
	f.publishLocked(collection)
	return nil
}

func (f *fakeStore) DeleteRecord(ctx context.Context, collection string, id utils.SixID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	c := f.coll(collection)
	if _, ok := c[id]; !ok {
		return mongo.ErrNoDocuments
	}
	delete(c, id)
	f.publishLocked(collection)
	return nil
}

func (f *fakeStore) DeleteRecords(ctx context.Context, collection string, filter bson.M) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	var n int64
	c := f.coll(collection)
	for id, rec := range c {
		if matches(rec.doc, filter) {
			delete(c, id)
			n++
		}
	}
	if n > 0 {
		f.publishLocked(collection)
	}
	return n, nil
}

func (f *fakeStore) FindRecord(ctx context.Context, collection string, id utils.SixID) (bson.Raw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	rec, ok := f.coll(collection)[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return bson.Marshal(rec.doc)
}

func (f *fakeStore) FindRecords(ctx context.Context, collection string, filter bson.M, order db.Order) ([]bson.Raw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.queryLocked(collection, filter, order), nil
}

func (f *fakeStore) queryLocked(collection string, filter bson.M, order db.Order) []bson.Raw {
	var recs []*fakeRecord
	for _, rec := range f.coll(collection) {
		if matches(rec.doc, filter) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	raws := make([]bson.Raw, 0, len(recs))
	for _, rec := range recs {
		raw, err := bson.Marshal(rec.doc)
		if err != nil {
			panic(err)
		}
		raws = append(raws, raw)
	}
	if order.Key != "" {
		sort.SliceStable(raws, func(i, j int) bool {
			a, b := timeOf(raws[i], order.Key), timeOf(raws[j], order.Key)
			if order.Descending {
				return a.After(b)
			}
			return a.Before(b)
		})
	}
	return raws
}

func (f *fakeStore) Subscribe(ctx context.Context, collection string, order db.Order) (<-chan db.SnapshotEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	sub := &fakeSub{collection: collection, order: order, ch: make(chan db.SnapshotEvent, 1)}
	sub.ch <- db.SnapshotEvent{Records: f.queryLocked(collection, nil, order)}
	f.subs = append(f.subs, sub)

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		f.closeSubLocked(sub)
	}()
	return sub.ch, nil
}

func (f *fakeStore) AtomicIncrement(ctx context.Context, collection string, id utils.SixID, field string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incCalls++
	if f.incErr != nil {
		return f.incErr
	}
	if f.incConflicts > 0 {
		f.incConflicts--
		return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 112, Message: "WriteConflict"}}}
	}
	rec, ok := f.coll(collection)[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	var current int64
	switch v := rec.doc[field].(type) {
	case int32:
		current = int64(v)
	case int64:
		current = v
	case float64:
		current = int64(v)
	}
	rec.doc[field] = current + delta
	f.publishLocked(collection)
	return nil
}

// publishLocked replaces any undelivered snapshot with the latest one.
func (f *fakeStore) publishLocked(collection string) {
	for _, sub := range f.subs {
		if sub.closed || sub.collection != collection {
			continue
		}
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- db.SnapshotEvent{Records: f.queryLocked(collection, nil, sub.order)}
	}
}

func (f *fakeStore) closeSubLocked(sub *fakeSub) {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
}

// breakSubscription ends the i-th subscription with err, as a dropped connection would.
func (f *fakeStore) breakSubscription(i int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := f.subs[i]
	if sub.closed {
		return
	}
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- db.SnapshotEvent{Err: err}
	f.closeSubLocked(sub)
}

func (f *fakeStore) count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.coll(collection))
}

func (f *fakeStore) listing(t *testing.T, id utils.SixID) *models.Listing {
	t.Helper()
	raw, err := f.FindRecord(context.Background(), db.ListingsCollection, id)
	require.NoError(t, err)
	listing, err := DecodeListing(raw)
	require.NoError(t, err)
	return listing
}

func matches(doc bson.M, filter bson.M) bool {
	for k, want := range filter {
		a, errA := bson.Marshal(bson.M{"v": doc[k]})
		b, errB := bson.Marshal(bson.M{"v": want})
		if errA != nil || errB != nil || !bytes.Equal(a, b) {
			return false
		}
	}
	return true
}

func timeOf(raw bson.Raw, key string) time.Time {
	v, err := raw.LookupErr(key)
	if err != nil || v.Type != bsontype.DateTime {
		return time.Time{}
	}
	return v.Time()
}

// seedListing stores a complete listing directly, bypassing the pipeline.
func seedListing(t *testing.T, store *fakeStore, l models.Listing) utils.SixID {
	t.Helper()
	if l.Images == nil {
		l.Images = []string{}
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}
	fields, err := toFields(&l)
	require.NoError(t, err)
	id, err := store.CreateRecord(context.Background(), db.ListingsCollection, fields)
	require.NoError(t, err)
	return id
}

// --- Asset store ---

const fakeAssetBase = "https://cdn.test/"

type fakeAssetStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	delays    map[int]time.Duration
	failures  map[int]error
	completed []int
	deleted   []string
	inFlight  int
	maxFlight int
}

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{objects: map[string][]byte{}, delays: map[int]time.Duration{}, failures: map[int]error{}}
}

func imageIndex(path string) int {
	name := path[strings.LastIndex(path, "/")+1:]
	var i int
	var stamp int64
	if _, err := fmt.Sscanf(name, "image_%d_%d", &i, &stamp); err != nil {
		return -1
	}
	return i
}

func (a *fakeAssetStore) PutBlob(ctx context.Context, path, contentType string, data []byte) (string, error) {
	i := imageIndex(path)
	a.mu.Lock()
	a.inFlight++
	if a.inFlight > a.maxFlight {
		a.maxFlight = a.inFlight
	}
	delay := a.delays[i]
	failure := a.failures[i]
	a.mu.Unlock()

	time.Sleep(delay)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.inFlight--
	a.completed = append(a.completed, i)
	if failure != nil {
		return "", failure
	}
	a.objects[path] = data
	return fakeAssetBase + path, nil
}

func (a *fakeAssetStore) DeleteObject(ctx context.Context, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, path)
	delete(a.objects, path)
	return nil
}

func (a *fakeAssetStore) PathFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, fakeAssetBase) {
		return "", false
	}
	return strings.TrimPrefix(url, fakeAssetBase), true
}

func (a *fakeAssetStore) fail(i int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[i] = err
}

func (a *fakeAssetStore) heal() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = map[int]error{}
}

func (a *fakeAssetStore) object(url string) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.objects[strings.TrimPrefix(url, fakeAssetBase)]
}

// --- Collaborators ---

type fakeCleanup struct {
	mu    sync.Mutex
	calls []cleanupCall
	err   error
}

type cleanupCall struct {
	listingID utils.SixID
	images    []string
}

func (c *fakeCleanup) ScheduleListingCleanup(ctx context.Context, listingID utils.SixID, imageURLs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, cleanupCall{listingID: listingID, images: imageURLs})
	return c.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (n *fakeNotifier) Notify(ctx context.Context, msg notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func blobs(n int) []Blob {
	out := make([]Blob, n)
	for i := range out {
		out[i] = Blob{Data: []byte(fmt.Sprintf("image-%d", i)), ContentType: "image/jpeg"}
	}
	return out
}

func ownerActor() auth.Actor {
	return auth.Actor{UserID: utils.NewSixID(), Name: "Fabricio"}
}

// stepClock returns a clock advancing one second per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}
