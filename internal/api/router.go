package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/api/handlers"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/api/middleware"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/config"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/query"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/services"
)

// Dependencies are the services the API handlers are built from.
type Dependencies struct {
	Catalog  handlers.ICatalog
	Listings services.IListingService
	Counter  services.ICounterService
	Comments services.ICommentService
	// Assets serves stored photos; nil when photos live in S3.
	Assets handlers.IAssetOpener
	// Done stops background housekeeping such as the rate limiter sweep.
	Done <-chan struct{}
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg.RateLimitRefillRate, cfg.RateLimitBucketSize)
	if deps.Done != nil {
		go rateLimiter.RunCleanup(10*time.Minute, deps.Done)
	}

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware(cfg.CorsAllowedOrigin))
	r.Use(middleware.AuthMiddleware(cfg.JwtSecret))

	listingHandler := handlers.NewRestListingHandler(deps.Catalog, deps.Listings, deps.Counter, handlers.ImageLimits{
		MaxDimension: cfg.ImageMaxDimension,
		MaxBytes:     cfg.ImageMaxBytes(),
	})
	commentHandler := handlers.NewRestCommentHandler(deps.Comments)

	// Leave room for the multipart envelope around the photos.
	r.MaxMultipartMemory = cfg.ImageMaxBytes() * 2

	v1 := r.Group("/v1")
	{
		// Public Routes
		v1.GET("/listings", listingHandler.SearchListings)
		v1.GET("/listings/stats", listingHandler.GetStats)
		v1.GET("/listings/:id", listingHandler.GetListingByID)
		v1.GET("/listings/:id/comments", commentHandler.ListComments)
		v1.GET("/users/:id/listings", listingHandler.ListUserListings)

		if deps.Assets != nil {
			assetHandler := handlers.NewRestAssetHandler(deps.Assets)
			v1.GET("/assets/*path", assetHandler.GetAsset)
		}

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Authenticated Routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.RequireActor(), rateLimiter.Limit())
		{
			authRequired.POST("/listings", listingHandler.CreateListing)
			authRequired.PATCH("/listings/:id", listingHandler.UpdateListing)
			authRequired.POST("/listings/:id/images", listingHandler.AttachImages)
			authRequired.DELETE("/listings/:id", listingHandler.DeleteListing)
			authRequired.POST("/listings/:id/comments", commentHandler.AddComment)
			authRequired.DELETE("/listings/:id/comments/:commentId", commentHandler.DeleteComment)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine.
// catalog may be nil when the process runs without the API.
func SetupServiceRouter(catalog handlers.ICatalog, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				log.Println("Shutdown signal sent successfully.")
			default:
				log.Println("Shutdown channel already signaled or blocked.")
			}
		case "snapshotStats":
			if catalog == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Catalog not running in this mode"})
				return
			}
			result := gin.H{
				"loading": catalog.Loading(),
				"stats":   query.ComputeStats(catalog.Snapshot()),
			}
			if err := catalog.Err(); err != nil {
				result["error"] = err.Error()
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
