package services

import (
	"context"
	"errors"
	"log"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/db"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

const viewsField = "views"

// ICounterService counts listing views.
type ICounterService interface {
	// Increment adds one view. It never fails the caller; errors are logged.
	Increment(ctx context.Context, listingID utils.SixID)
}

type counterService struct {
	store db.DocumentStore
}

func NewCounterService(store db.DocumentStore) ICounterService {
	return &counterService{store: store}
}

// Increment uses the store's atomic increment and does not touch updated_at.
// Only write conflicts are retried: those are known not to have been applied.
func (s *counterService) Increment(ctx context.Context, listingID utils.SixID) {
	err := db.WithRetries(func() error {
		return s.store.AtomicIncrement(ctx, db.ListingsCollection, listingID, viewsField, 1)
	}, db.DefaultMaxRetries, db.IsWriteConflictError)
	if err == nil {
		return
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		log.Printf("View count not incremented: listing %s not found", listingID.String())
		return
	}
	log.Printf("Error incrementing view count for listing %s: %v", listingID.String(), err)
}
