package handlers_test

import (
	"context"
	"io"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/auth"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/models"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/services"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/storage"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

// --- Mocks ---

// MockListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) Create(ctx context.Context, actor auth.Actor, input services.ListingInput, blobs []services.Blob) (*models.Listing, error) {
	args := m.Called(ctx, actor, input, blobs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) AttachImages(ctx context.Context, actor auth.Actor, listingID utils.SixID, blobs []services.Blob) (*models.Listing, error) {
	args := m.Called(ctx, actor, listingID, blobs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) Update(ctx context.Context, actor auth.Actor, listingID utils.SixID, patch services.ListingPatch, newBlobs []services.Blob, retainedURLs []string) (*models.Listing, error) {
	args := m.Called(ctx, actor, listingID, patch, newBlobs, retainedURLs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) Delete(ctx context.Context, actor auth.Actor, listingID utils.SixID) error {
	args := m.Called(ctx, actor, listingID)
	return args.Error(0)
}

func (m *MockListingService) FindByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) ListByOwner(ctx context.Context, ownerID utils.SixID) ([]models.Listing, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

// MockCounterService
type MockCounterService struct {
	mock.Mock
}

func (m *MockCounterService) Increment(ctx context.Context, listingID utils.SixID) {
	m.Called(ctx, listingID)
}

// MockCommentService
type MockCommentService struct {
	mock.Mock
}

func (m *MockCommentService) Add(ctx context.Context, actor auth.Actor, listingID utils.SixID, input services.CommentInput) (*models.Comment, error) {
	args := m.Called(ctx, actor, listingID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockCommentService) List(ctx context.Context, listingID utils.SixID) ([]models.Comment, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *MockCommentService) Delete(ctx context.Context, actor auth.Actor, listingID, commentID utils.SixID) error {
	args := m.Called(ctx, actor, listingID, commentID)
	return args.Error(0)
}

func (m *MockCommentService) PurgeListing(ctx context.Context, listingID utils.SixID) (int64, error) {
	args := m.Called(ctx, listingID)
	return args.Get(0).(int64), args.Error(1)
}

// fakeCatalog is a fixed live collection state.
type fakeCatalog struct {
	listings []models.Listing
	loading  bool
	err      error
}

func (f *fakeCatalog) Snapshot() []models.Listing { return f.listings }
func (f *fakeCatalog) Loading() bool              { return f.loading }
func (f *fakeCatalog) Err() error                 { return f.err }

// fakeOpener serves objects from a map.
type fakeOpener struct {
	objects map[string]string
}

func (f *fakeOpener) Open(ctx context.Context, path string) (io.ReadCloser, string, error) {
	data, ok := f.objects[path]
	if !ok {
		return nil, "", storage.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(data)), "image/png", nil
}
