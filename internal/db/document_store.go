package db

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

const (
	ListingsCollection = "listings"
	CommentsCollection = "comments"
)

// ErrStaleRecord is returned by PatchRecordIf when the record no longer holds the expected values.
var ErrStaleRecord = errors.New("record changed since it was read")

// Order is a single-key sort applied to FindRecords and Subscribe. An empty Key means natural order.
type Order struct {
	Key        string
	Descending bool
}

// SnapshotEvent carries the full ordered result set after a change, or the error that ended the stream.
// An event with a non-nil Err is always the last one delivered before the channel closes.
type SnapshotEvent struct {
	Records []bson.Raw
	Err     error
}

// DocumentStore is the remote record store the catalog is built on.
// Lookups of a missing id return mongo.ErrNoDocuments.
type DocumentStore interface {
	CreateRecord(ctx context.Context, collection string, fields bson.M) (utils.SixID, error)
	PatchRecord(ctx context.Context, collection string, id utils.SixID, fields bson.M) error
	// PatchRecordIf applies fields only while the record still equals expect on every key in it.
	PatchRecordIf(ctx context.Context, collection string, id utils.SixID, expect bson.M, fields bson.M) error
	DeleteRecord(ctx context.Context, collection string, id utils.SixID) error
	DeleteRecords(ctx context.Context, collection string, filter bson.M) (int64, error)
	FindRecord(ctx context.Context, collection string, id utils.SixID) (bson.Raw, error)
	FindRecords(ctx context.Context, collection string, filter bson.M, order Order) ([]bson.Raw, error)
	// Subscribe delivers the full ordered collection once immediately and again after every change batch.
	// The channel is closed when ctx is done or after an error event.
	Subscribe(ctx context.Context, collection string, order Order) (<-chan SnapshotEvent, error)
	AtomicIncrement(ctx context.Context, collection string, id utils.SixID, field string, delta int64) error
}
