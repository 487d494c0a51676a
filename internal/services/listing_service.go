package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/auth"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/db"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/models"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/notify"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

// IListingService is the only path through which listings are created, changed or removed.
type IListingService interface {
	Create(ctx context.Context, actor auth.Actor, input ListingInput, blobs []Blob) (*models.Listing, error)
	AttachImages(ctx context.Context, actor auth.Actor, listingID utils.SixID, blobs []Blob) (*models.Listing, error)
	Update(ctx context.Context, actor auth.Actor, listingID utils.SixID, patch ListingPatch, newBlobs []Blob, retainedURLs []string) (*models.Listing, error)
	Delete(ctx context.Context, actor auth.Actor, listingID utils.SixID) error
	FindByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
	ListByOwner(ctx context.Context, ownerID utils.SixID) ([]models.Listing, error)
}

// CleanupScheduler reclaims what a deleted listing leaves behind (photos and comments).
type CleanupScheduler interface {
	ScheduleListingCleanup(ctx context.Context, listingID utils.SixID, imageURLs []string) error
}

// ListingInput is the metadata for a new listing.
type ListingInput struct {
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Location       string                 `json:"location"`
	Price          float64                `json:"price"`
	Type           models.TransactionKind `json:"type"`
	PropertyType   models.StructureKind   `json:"property_type"`
	TotalArea      float64                `json:"total_area"`
	PrivateArea    float64                `json:"private_area"`
	Bedrooms       int                    `json:"bedrooms"`
	Bathrooms      int                    `json:"bathrooms"`
	Garage         bool                   `json:"garage"`
	AcceptsPets    bool                   `json:"accepts_pets"`
	CommonExpenses *float64               `json:"common_expenses,omitempty"`
	OwnerName      string                 `json:"owner_name"`
	OwnerWhatsapp  string                 `json:"owner_whatsapp"`
}

// Validate checks the input and fills defaults.
func (in *ListingInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	if in.Title == "" {
		return &ValidationError{Field: "title", Reason: "required"}
	}
	if in.Location == "" {
		return &ValidationError{Field: "location", Reason: "required"}
	}
	if !(in.Price > 0) || math.IsInf(in.Price, 0) {
		return &ValidationError{Field: "price", Reason: "must be greater than 0"}
	}
	if !in.Type.Valid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("must be %q or %q", models.TransactionSale, models.TransactionRent)}
	}
	if in.PropertyType == "" {
		in.PropertyType = models.StructureCommon
	}
	if !in.PropertyType.Valid() {
		return &ValidationError{Field: "property_type", Reason: fmt.Sprintf("must be %q or %q", models.StructureCommon, models.StructureHorizontal)}
	}
	if in.TotalArea < 0 || in.PrivateArea < 0 {
		return &ValidationError{Field: "area", Reason: "must not be negative"}
	}
	if in.Bedrooms < 0 || in.Bathrooms < 0 {
		return &ValidationError{Field: "rooms", Reason: "must not be negative"}
	}
	if in.CommonExpenses != nil && *in.CommonExpenses < 0 {
		return &ValidationError{Field: "common_expenses", Reason: "must not be negative"}
	}
	return nil
}

// ListingPatch maps BSON field names to new values. An "images" entry is always ignored.
type ListingPatch map[string]interface{}

const (
	notifyTitle     = "Nueva propiedad"
	notifyTimeout   = 5 * time.Second
	fieldImages     = "images"
	fieldUpdatedAt  = "updated_at"
	createdAtField  = "created_at"
	listingOwnerKey = "owner_id"
)

type listingService struct {
	store      db.DocumentStore
	uploader   IAssetUploader
	authorizer Authorizer
	cleanup    CleanupScheduler
	notifier   notify.Notifier
	maxImages  int
	now        func() time.Time
}

// NewListingService creates the listing mutation pipeline.
func NewListingService(store db.DocumentStore, uploader IAssetUploader, authorizer Authorizer, cleanup CleanupScheduler, notifier notify.Notifier, maxImages int) IListingService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &listingService{
		store:      store,
		uploader:   uploader,
		authorizer: authorizer,
		cleanup:    cleanup,
		notifier:   notifier,
		maxImages:  maxImages,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create writes the metadata record first, then uploads the photos under its id and patches the image list.
// If the second phase fails the record stays with no images and the error is a *PartialCreateError.
func (s *listingService) Create(ctx context.Context, actor auth.Actor, input ListingInput, blobs []Blob) (*models.Listing, error) {
	if actor.IsAnonymous() {
		return nil, ErrForbidden
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if len(blobs) == 0 {
		return nil, &ValidationError{Field: fieldImages, Reason: "at least one image is required"}
	}
	if err := s.checkImageCount(len(blobs)); err != nil {
		return nil, err
	}

	// Once the first write lands the pipeline runs to completion even if the request goes away.
	ctx = context.WithoutCancel(ctx)

	now := s.now()
	listing := &models.Listing{
		Title:          input.Title,
		Description:    input.Description,
		Location:       input.Location,
		Price:          input.Price,
		Type:           input.Type,
		PropertyType:   input.PropertyType,
		TotalArea:      input.TotalArea,
		PrivateArea:    input.PrivateArea,
		Bedrooms:       input.Bedrooms,
		Bathrooms:      input.Bathrooms,
		Garage:         input.Garage,
		AcceptsPets:    input.AcceptsPets,
		CommonExpenses: input.CommonExpenses,
		Images:         []string{},
		Views:          0,
		OwnerID:        actor.UserID,
		OwnerName:      actor.Name,
		OwnerWhatsapp:  actor.Whatsapp,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	// The profile in the token wins; the form only fills what it lacks.
	if listing.OwnerName == "" {
		listing.OwnerName = strings.TrimSpace(input.OwnerName)
	}
	if listing.OwnerWhatsapp == "" {
		listing.OwnerWhatsapp = strings.TrimSpace(input.OwnerWhatsapp)
	}

	fields, err := toFields(listing)
	if err != nil {
		return nil, err
	}
	id, err := s.store.CreateRecord(ctx, db.ListingsCollection, fields)
	if err != nil {
		return nil, &StoreWriteError{Op: "create listing", Err: err}
	}
	listing.ID = id

	urls, err := s.uploader.Upload(ctx, id, blobs)
	if err != nil {
		log.Printf("Listing %s created but image upload failed: %v", id.String(), err)
		return nil, &PartialCreateError{Listing: listing, Err: err}
	}

	updatedAt := s.now()
	if err := s.store.PatchRecord(ctx, db.ListingsCollection, id, bson.M{fieldImages: urls, fieldUpdatedAt: updatedAt}); err != nil {
		log.Printf("Listing %s created but image list could not be saved: %v", id.String(), err)
		s.uploader.Discard(id, urls)
		return nil, &PartialCreateError{Listing: listing, Err: &StoreWriteError{Op: "attach images", ID: id, Err: err}}
	}
	listing.Images = urls
	listing.UpdatedAt = updatedAt

	s.announce(ctx, listing)
	return listing, nil
}

// AttachImages uploads blobs and appends them to the listing's images. It is the retry path after a partial create.
func (s *listingService) AttachImages(ctx context.Context, actor auth.Actor, listingID utils.SixID, blobs []Blob) (*models.Listing, error) {
	if len(blobs) == 0 {
		return nil, &ValidationError{Field: fieldImages, Reason: "no images to attach"}
	}
	listing, err := s.loadForMutation(ctx, actor, listingID)
	if err != nil {
		return nil, err
	}
	if err := s.checkImageCount(len(listing.Images) + len(blobs)); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	urls, err := s.uploader.Upload(ctx, listingID, blobs)
	if err != nil {
		return nil, err
	}

	updated, err := s.commitImages(ctx, listing, bson.M{}, func(current []string) ([]string, error) {
		if err := s.checkImageCount(len(current) + len(urls)); err != nil {
			return nil, err
		}
		return append(append([]string{}, current...), urls...), nil
	})
	if err != nil {
		s.uploader.Discard(listingID, urls)
		return nil, err
	}
	return updated, nil
}

// Update writes patch, the composed image list and a new updated_at in one metadata write.
// Final images are retainedURLs followed by the uploaded newBlobs. A nil retainedURLs keeps the current images.
// Dropped images are not deleted from storage.
func (s *listingService) Update(ctx context.Context, actor auth.Actor, listingID utils.SixID, patch ListingPatch, newBlobs []Blob, retainedURLs []string) (*models.Listing, error) {
	set, err := sanitizePatch(patch)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 && len(newBlobs) == 0 && retainedURLs == nil {
		return nil, &ValidationError{Field: "patch", Reason: "no changes provided"}
	}

	listing, err := s.loadForMutation(ctx, actor, listingID)
	if err != nil {
		return nil, err
	}

	if retainedURLs != nil {
		if err := checkRetained(listing.Images, retainedURLs); err != nil {
			return nil, err
		}
		if err := s.checkImageCount(len(retainedURLs) + len(newBlobs)); err != nil {
			return nil, err
		}
	} else if err := s.checkImageCount(len(listing.Images) + len(newBlobs)); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	uploaded, err := s.uploader.Upload(ctx, listingID, newBlobs)
	if err != nil {
		return nil, err
	}

	validated := listing.Images
	updated, err := s.commitImages(ctx, listing, set, func(current []string) ([]string, error) {
		retained := current
		if retainedURLs != nil {
			// An explicit list holds only against the images it was checked against.
			if !equalImages(current, validated) {
				return nil, ErrConcurrentEdit
			}
			retained = retainedURLs
		}
		if err := s.checkImageCount(len(retained) + len(uploaded)); err != nil {
			return nil, err
		}
		images := make([]string, 0, len(retained)+len(uploaded))
		images = append(images, retained...)
		return append(images, uploaded...), nil
	})
	if err != nil {
		s.uploader.Discard(listingID, uploaded)
		return nil, err
	}
	return updated, nil
}

// checkRetained requires every retained URL to be a distinct current image of the listing.
func checkRetained(current, retained []string) error {
	known := make(map[string]bool, len(current))
	for _, u := range current {
		known[u] = true
	}
	seen := make(map[string]bool, len(retained))
	for _, u := range retained {
		if !known[u] {
			return &ValidationError{Field: "retained_images", Reason: fmt.Sprintf("%s is not an image of this listing", u)}
		}
		if seen[u] {
			return &ValidationError{Field: "retained_images", Reason: fmt.Sprintf("%s is listed more than once", u)}
		}
		seen[u] = true
	}
	return nil
}

func equalImages(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Delete removes the record and queues reclamation of its photos and comments.
func (s *listingService) Delete(ctx context.Context, actor auth.Actor, listingID utils.SixID) error {
	listing, err := s.loadForMutation(ctx, actor, listingID)
	if err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)
	if err := s.store.DeleteRecord(ctx, db.ListingsCollection, listingID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrListingNotFound
		}
		return &StoreWriteError{Op: "delete listing", ID: listingID, Err: err}
	}

	if s.cleanup == nil {
		log.Printf("WARNING: no cleanup scheduler; assets and comments of listing %s are not reclaimed", listingID.String())
		return nil
	}
	if err := s.cleanup.ScheduleListingCleanup(ctx, listingID, listing.Images); err != nil {
		log.Printf("CRITICAL: listing %s deleted but cleanup could not be scheduled, %d images orphaned: %v", listingID.String(), len(listing.Images), err)
	}
	return nil
}

func (s *listingService) FindByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	raw, err := s.store.FindRecord(ctx, db.ListingsCollection, listingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrListingNotFound
		}
		return nil, &StoreReadError{Op: "find listing", Err: err}
	}
	listing, err := DecodeListing(raw)
	if err != nil {
		return nil, &StoreReadError{Op: "decode listing", Err: err}
	}
	return listing, nil
}

// ListByOwner returns the owner's listings, newest first.
func (s *listingService) ListByOwner(ctx context.Context, ownerID utils.SixID) ([]models.Listing, error) {
	records, err := s.store.FindRecords(ctx, db.ListingsCollection, bson.M{listingOwnerKey: ownerID}, db.Order{Key: createdAtField, Descending: true})
	if err != nil {
		return nil, &StoreReadError{Op: "list listings by owner", Err: err}
	}
	listings := make([]models.Listing, 0, len(records))
	for _, raw := range records {
		listing, err := DecodeListing(raw)
		if err != nil {
			log.Printf("Skipping undecodable listing of owner %s: %v", ownerID.String(), err)
			continue
		}
		listings = append(listings, *listing)
	}
	return listings, nil
}

func (s *listingService) loadForMutation(ctx context.Context, actor auth.Actor, listingID utils.SixID) (*models.Listing, error) {
	if actor.IsAnonymous() {
		return nil, ErrForbidden
	}
	listing, err := s.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !s.authorizer.MayMutate(actor, listing.OwnerID) {
		return nil, ErrForbidden
	}
	return listing, nil
}

// commitImages writes set with the image list compose derives from the stored one, conditional on the
// stored list being the one compose saw. When another edit got there first the record is reread and
// the list composed again.
func (s *listingService) commitImages(ctx context.Context, listing *models.Listing, set bson.M, compose func(current []string) ([]string, error)) (*models.Listing, error) {
	var updated *models.Listing
	err := db.WithRetries(func() error {
		images, err := compose(listing.Images)
		if err != nil {
			return err
		}
		set[fieldImages] = images
		set[fieldUpdatedAt] = s.now()

		err = s.store.PatchRecordIf(ctx, db.ListingsCollection, listing.ID, bson.M{fieldImages: listing.Images}, set)
		switch {
		case err == nil:
			updated, err = applyFields(listing, set)
			return err
		case errors.Is(err, mongo.ErrNoDocuments):
			return ErrListingNotFound
		case errors.Is(err, db.ErrStaleRecord):
			fresh, findErr := s.FindByID(ctx, listing.ID)
			if findErr != nil {
				return findErr
			}
			listing = fresh
			return err
		default:
			return &StoreWriteError{Op: "patch listing", ID: listing.ID, Err: err}
		}
	}, db.DefaultMaxRetries, isStaleRecord)
	if errors.Is(err, db.ErrStaleRecord) {
		return nil, ErrConcurrentEdit
	}
	return updated, err
}

func isStaleRecord(err error) bool {
	return errors.Is(err, db.ErrStaleRecord)
}

func (s *listingService) checkImageCount(n int) error {
	if s.maxImages > 0 && n > s.maxImages {
		return &ValidationError{Field: fieldImages, Reason: fmt.Sprintf("at most %d images per listing", s.maxImages)}
	}
	return nil
}

func (s *listingService) announce(ctx context.Context, listing *models.Listing) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	n := notify.Notification{
		ID:        uuid.NewString(),
		ListingID: listing.ID,
		Title:     notifyTitle,
		Body:      fmt.Sprintf("%s en %s", listing.Title, listing.Location),
		CreatedAt: s.now(),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		log.Printf("WARNING: failed to send new listing notification for %s: %v", listing.ID.String(), err)
	}
}

// sanitizePatch keeps the mutable fields, coerced to their stored types.
func sanitizePatch(patch ListingPatch) (bson.M, error) {
	set := bson.M{}
	for key, value := range patch {
		var err error
		switch key {
		case fieldImages:
			continue
		case "title", "location":
			var v string
			if v, err = asString(key, value); err == nil {
				if v = strings.TrimSpace(v); v == "" {
					err = &ValidationError{Field: key, Reason: "required"}
				}
				set[key] = v
			}
		case "description":
			set[key], err = asString(key, value)
		case "price":
			var v float64
			if v, err = asFloat(key, value); err == nil && !(v > 0) {
				err = &ValidationError{Field: key, Reason: "must be greater than 0"}
			}
			set[key] = v
		case "total_area", "private_area":
			var v float64
			if v, err = asFloat(key, value); err == nil && v < 0 {
				err = &ValidationError{Field: key, Reason: "must not be negative"}
			}
			set[key] = v
		case "common_expenses":
			if value == nil {
				set[key] = nil
				continue
			}
			var v float64
			if v, err = asFloat(key, value); err == nil && v < 0 {
				err = &ValidationError{Field: key, Reason: "must not be negative"}
			}
			set[key] = v
		case "bedrooms", "bathrooms":
			var v int
			if v, err = asInt(key, value); err == nil && v < 0 {
				err = &ValidationError{Field: key, Reason: "must not be negative"}
			}
			set[key] = v
		case "garage", "accepts_pets":
			v, ok := value.(bool)
			if !ok {
				err = &ValidationError{Field: key, Reason: "must be a boolean"}
			}
			set[key] = v
		case "type":
			var v string
			if v, err = asString(key, value); err == nil && !models.TransactionKind(v).Valid() {
				err = &ValidationError{Field: key, Reason: "unknown transaction kind"}
			}
			set[key] = v
		case "property_type":
			var v string
			if v, err = asString(key, value); err == nil && !models.StructureKind(v).Valid() {
				err = &ValidationError{Field: key, Reason: "unknown structure kind"}
			}
			set[key] = v
		default:
			err = &ValidationError{Field: key, Reason: "cannot be updated"}
		}
		if err != nil {
			return nil, err
		}
	}
	return set, nil
}

func asString(key string, value interface{}) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	return "", &ValidationError{Field: key, Reason: "must be a string"}
}

func asFloat(key string, value interface{}) (float64, error) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return 0, &ValidationError{Field: key, Reason: "must be a number"}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ValidationError{Field: key, Reason: "must be a finite number"}
	}
	return f, nil
}

func asInt(key string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	}
	f, err := asFloat(key, value)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, &ValidationError{Field: key, Reason: "must be a whole number"}
	}
	return int(f), nil
}

// DecodeListing decodes a stored listing document.
func DecodeListing(raw bson.Raw) (*models.Listing, error) {
	var listing models.Listing
	if err := bson.Unmarshal(raw, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}
	if listing.Images == nil {
		listing.Images = []string{}
	}
	return &listing, nil
}

func toFields(listing *models.Listing) (bson.M, error) {
	data, err := bson.Marshal(listing)
	if err != nil {
		return nil, fmt.Errorf("failed to encode listing: %w", err)
	}
	var fields bson.M
	if err := bson.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode listing: %w", err)
	}
	delete(fields, "_id")
	return fields, nil
}

// applyFields returns a copy of listing with set applied, as the store now holds it.
func applyFields(listing *models.Listing, set bson.M) (*models.Listing, error) {
	fields, err := toFields(listing)
	if err != nil {
		return nil, err
	}
	for k, v := range set {
		fields[k] = v
	}
	fields["_id"] = listing.ID
	data, err := bson.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to apply patch: %w", err)
	}
	return DecodeListing(data)
}
