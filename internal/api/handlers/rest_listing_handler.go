package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/api/middleware"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/models"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/query"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/services"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

// HeaderCatalogState tells clients whether the catalog they got is live or the last known snapshot.
const HeaderCatalogState = "X-Catalog-State"

const (
	catalogLive     = "live"
	catalogDegraded = "degraded"
)

// ICatalog is the read side of the live listing collection.
type ICatalog interface {
	Snapshot() []models.Listing
	Loading() bool
	Err() error
}

// RestListingHandler handles REST requests for listings.
type RestListingHandler struct {
	catalog        ICatalog
	listingService services.IListingService
	counterService services.ICounterService
	limits         ImageLimits
}

// NewRestListingHandler creates a new RestListingHandler.
func NewRestListingHandler(catalog ICatalog, listingService services.IListingService, counterService services.ICounterService, limits ImageLimits) *RestListingHandler {
	return &RestListingHandler{
		catalog:        catalog,
		listingService: listingService,
		counterService: counterService,
		limits:         limits,
	}
}

// snapshot returns the current catalog, or false after writing a 503 when none has arrived yet.
func (h *RestListingHandler) snapshot(c *gin.Context) ([]models.Listing, bool) {
	if h.catalog.Loading() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Catalog is loading"})
		return nil, false
	}
	if err := h.catalog.Err(); err != nil {
		c.Header(HeaderCatalogState, catalogDegraded)
	} else {
		c.Header(HeaderCatalogState, catalogLive)
	}
	return h.catalog.Snapshot(), true
}

// SearchListings handles GET /v1/listings
func (h *RestListingHandler) SearchListings(c *gin.Context) {
	snapshot, ok := h.snapshot(c)
	if !ok {
		return
	}
	listings := query.Apply(snapshot, query.ParsePredicates(c.Request.URL.Query()))
	listings = query.Sort(listings, c.Query("sort"))

	c.JSON(http.StatusOK, gin.H{
		"data":  listings,
		"total": len(listings),
	})
}

// GetStats handles GET /v1/listings/stats
func (h *RestListingHandler) GetStats(c *gin.Context) {
	snapshot, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, query.ComputeStats(snapshot))
}

// GetListingByID handles GET /v1/listings/:id. Opening a listing counts as a view.
func (h *RestListingHandler) GetListingByID(c *gin.Context) {
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	listing, err := h.listingService.FindByID(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err, "Failed to retrieve listing")
		return
	}

	h.counterService.Increment(c.Request.Context(), listingID)
	c.JSON(http.StatusOK, listing)
}

// ListUserListings handles GET /v1/users/:id/listings
func (h *RestListingHandler) ListUserListings(c *gin.Context) {
	ownerID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	listings, err := h.listingService.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err, "Failed to retrieve listings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": listings})
}

// CreateListing handles POST /v1/listings as multipart: a "listing" JSON field and "images" files.
func (h *RestListingHandler) CreateListing(c *gin.Context) {
	var input services.ListingInput
	found, err := bindJSONField(c, formFieldListing, &input)
	if err != nil {
		respondError(c, err, "Invalid listing")
		return
	}
	if !found {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing listing field"})
		return
	}
	blobs, err := readImages(c, h.limits)
	if err != nil {
		respondError(c, err, "Failed to read images")
		return
	}

	listing, err := h.listingService.Create(c.Request.Context(), middleware.ActorFromContext(c), input, blobs)
	if err != nil {
		respondError(c, err, "Failed to create listing")
		return
	}
	c.JSON(http.StatusCreated, listing)
}

// AttachImages handles POST /v1/listings/:id/images
func (h *RestListingHandler) AttachImages(c *gin.Context) {
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}
	blobs, err := readImages(c, h.limits)
	if err != nil {
		respondError(c, err, "Failed to read images")
		return
	}

	listing, err := h.listingService.AttachImages(c.Request.Context(), middleware.ActorFromContext(c), listingID, blobs)
	if err != nil {
		respondError(c, err, "Failed to attach images")
		return
	}
	c.JSON(http.StatusOK, listing)
}

// UpdateListing handles PATCH /v1/listings/:id. Multipart requests carry a "patch" JSON field,
// new "images" files and an optional "retained" JSON array of the image URLs to keep;
// omitting "retained" keeps the current images. Plain JSON bodies are a patch only.
func (h *RestListingHandler) UpdateListing(c *gin.Context) {
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	patch := services.ListingPatch{}
	if _, err := bindJSONField(c, formFieldPatch, &patch); err != nil {
		respondError(c, err, "Invalid patch")
		return
	}
	var retained []string
	if c.ContentType() != gin.MIMEJSON {
		if _, err := bindJSONField(c, formFieldRetained, &retained); err != nil {
			respondError(c, err, "Invalid retained images")
			return
		}
	}
	blobs, err := readImages(c, h.limits)
	if err != nil {
		respondError(c, err, "Failed to read images")
		return
	}

	listing, err := h.listingService.Update(c.Request.Context(), middleware.ActorFromContext(c), listingID, patch, blobs, retained)
	if err != nil {
		respondError(c, err, "Failed to update listing")
		return
	}
	c.JSON(http.StatusOK, listing)
}

// DeleteListing handles DELETE /v1/listings/:id
func (h *RestListingHandler) DeleteListing(c *gin.Context) {
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	if err := h.listingService.Delete(c.Request.Context(), middleware.ActorFromContext(c), listingID); err != nil {
		respondError(c, err, "Failed to delete listing")
		return
	}
	c.Status(http.StatusNoContent)
}
