package services

import (
	"errors"
	"fmt"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/models"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrForbidden       = errors.New("actor may not perform this operation")
	// ErrConcurrentEdit means another edit changed the listing's images first; nothing was written.
	ErrConcurrentEdit = errors.New("listing images were changed by another edit")
)

// ValidationError rejects caller input before anything reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AssetTransferError reports a failed upload batch. Failed holds the input indexes that did not upload.
type AssetTransferError struct {
	ListingID utils.SixID
	Failed    []int
	Total     int
	Err       error
}

func (e *AssetTransferError) Error() string {
	return fmt.Sprintf("asset upload for listing %s failed for %d of %d files %v: %v", e.ListingID.String(), len(e.Failed), e.Total, e.Failed, e.Err)
}

func (e *AssetTransferError) Unwrap() error { return e.Err }

// StoreWriteError is a write the document store rejected or never acknowledged.
type StoreWriteError struct {
	Op  string
	ID  utils.SixID
	Err error
}

func (e *StoreWriteError) Error() string {
	if e.ID.IsZero() {
		return fmt.Sprintf("store write %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store write %s on %s failed: %v", e.Op, e.ID.String(), e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// StoreReadError is a read the document store could not serve.
type StoreReadError struct {
	Op  string
	Err error
}

func (e *StoreReadError) Error() string {
	return fmt.Sprintf("store read %s failed: %v", e.Op, e.Err)
}

func (e *StoreReadError) Unwrap() error { return e.Err }

// SubscriptionError is recorded by LiveCollection when its stream breaks.
type SubscriptionError struct {
	Collection string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription to %s broken: %v", e.Collection, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// PartialCreateError means the metadata record was written but the asset phase failed.
// Listing is the committed record, with no images; retry with AttachImages.
type PartialCreateError struct {
	Listing *models.Listing
	Err     error
}

func (e *PartialCreateError) Error() string {
	return fmt.Sprintf("listing %s created without images: %v", e.Listing.ID.String(), e.Err)
}

func (e *PartialCreateError) Unwrap() error { return e.Err }
