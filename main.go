package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/api"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/api/handlers"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/cache"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/config"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/db"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/notify"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/services"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/storage"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	switch cfg.RunMode {
	case "api", "bg", "all":
	default:
		log.Fatalf("Invalid run mode specified: %s.", cfg.RunMode)
	}

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()
	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx, mongoDb); err != nil {
		log.Printf("WARNING: Failed to ensure indexes: %v", err)
	}
	cancelIndex()

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	assetStore, err := storage.NewAssetStore(cfg, mongoDb)
	if err != nil {
		log.Fatalf("Failed to initialize %s asset storage: %v", cfg.AssetBackend, err)
	}

	// Initialize Services
	store := db.NewMongoDocumentStore(mongoDb)
	taskClient := tasks.NewClient(cfg)
	defer taskClient.Close()
	scheduler := tasks.NewScheduler(taskClient)

	authorizer := services.OwnerOrAdmin{}
	uploader := services.NewAssetUploader(assetStore, cfg.UploadConcurrency)
	listingService := services.NewListingService(store, uploader, authorizer, scheduler, scheduler, cfg.MaxImagesPerListing)
	commentService := services.NewCommentService(store, authorizer)
	counterService := services.NewCounterService(store)

	var wg sync.WaitGroup
	done := make(chan struct{})

	// Channel to signal shutdown from Service API
	shutdownChan := make(chan struct{}, 1)

	var mainApiSrv *http.Server
	var catalogSub *services.Subscription
	var catalog handlers.ICatalog
	var backgroundTaskSrv *asynq.Server

	log.Printf("Starting application in '%s' mode...", cfg.RunMode)

	apiMode := func() {
		live := services.NewLiveCollection(store)
		catalogSub, err = live.Open(context.Background())
		if err != nil {
			// Served as a degraded catalog; a restart retries the subscription.
			log.Printf("CRITICAL: Failed to open live listing collection: %v", err)
		}
		catalog = live

		deps := api.Dependencies{
			Catalog:  live,
			Listings: listingService,
			Counter:  counterService,
			Comments: commentService,
			Done:     done,
		}
		if gridfsStore, ok := assetStore.(*storage.GridFSAssetStore); ok {
			deps.Assets = gridfsStore
		}

		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: api.SetupRouter(cfg, deps),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("Main API listening on :%s", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
			log.Println("Main API server stopped.")
		}()
	}

	bgMode := func() {
		publisher := notify.NewRedisPublisher(redisClient, cfg.NotifyChannel, cfg.NotifyEventTTL)
		processor := tasks.NewTaskProcessor(assetStore, commentService, publisher)
		backgroundTaskSrv = tasks.NewServer(cfg)
		log.Println("Background task server starting...")
		if err := backgroundTaskSrv.Start(tasks.NewServeMux(processor)); err != nil {
			log.Fatalf("Background task server error: %v", err)
		}
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	}

	// Start Service API (always runs)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(catalog, shutdownChan),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Service API listening on :%s", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Service API ListenAndServe error: %v", err)
		}
		log.Println("Service API server stopped.")
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("Received signal: %s. Shutting down gracefully...", sig)
	case <-shutdownChan:
		log.Println("Shutdown requested via Service API. Shutting down gracefully...")
	}
	close(done)

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	log.Println("Shutting down Service API server...")
	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}

	if mainApiSrv != nil {
		log.Println("Shutting down Main API server...")
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}

	if catalogSub != nil {
		catalogSub.Close()
	}

	if backgroundTaskSrv != nil {
		log.Println("Shutting down Background Task server...")
		backgroundTaskSrv.Shutdown()
	}

	wg.Wait()
	log.Println("Application shut down.")
}
