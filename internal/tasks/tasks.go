package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hibiken/asynq"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/config"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/notify"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/services"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/storage"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

// TaskType defines the type of a background task.
const (
	TypeAssetCleanup  = "listing:assets:cleanup"
	TypeListingNotify = "listing:notify"
)

const (
	QueueCleanup = "cleanup"
	QueueNotify  = "notify"
)

// --- Task Client (Enqueuing tasks) ---

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

func NewClient(cfg *config.Config) *asynq.Client {
	return asynq.NewClient(redisOpt(cfg))
}

// Enqueuer is the part of *asynq.Client the scheduler needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler turns mutation side effects into background tasks. It serves both as the
// listing cleanup scheduler and as the notifier handed to the listing service.
type Scheduler struct {
	client Enqueuer
}

func NewScheduler(client Enqueuer) *Scheduler {
	return &Scheduler{client: client}
}

// AssetCleanupPayload names what a deleted listing left behind.
type AssetCleanupPayload struct {
	ListingID string   `json:"listing_id"`
	ImageURLs []string `json:"image_urls"`
}

func (s *Scheduler) ScheduleListingCleanup(ctx context.Context, listingID utils.SixID, imageURLs []string) error {
	payload, err := json.Marshal(AssetCleanupPayload{ListingID: listingID.String(), ImageURLs: imageURLs})
	if err != nil {
		return fmt.Errorf("failed to marshal cleanup payload for listing %s: %w", listingID.String(), err)
	}
	task := asynq.NewTask(TypeAssetCleanup, payload)
	info, err := s.client.EnqueueContext(ctx, task, asynq.Queue(QueueCleanup), asynq.MaxRetry(10))
	if err != nil {
		return fmt.Errorf("failed to enqueue cleanup for listing %s: %w", listingID.String(), err)
	}
	log.Printf("Enqueued cleanup task %s for listing %s (%d images)", info.ID, listingID.String(), len(imageURLs))
	return nil
}

// Notify enqueues a notification. The notification ID doubles as the task ID,
// so a repeated announcement of the same event is dropped by the queue.
func (s *Scheduler) Notify(ctx context.Context, n notify.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification %s: %w", n.ID, err)
	}
	task := asynq.NewTask(TypeListingNotify, payload)
	_, err = s.client.EnqueueContext(ctx, task, asynq.Queue(QueueNotify), asynq.TaskID(n.ID), asynq.MaxRetry(3), asynq.Retention(time.Hour))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		log.Printf("Notification %s already queued", n.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue notification %s: %w", n.ID, err)
	}
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
type TaskProcessor struct {
	assets    storage.AssetStore
	comments  services.ICommentService
	publisher notify.Notifier
}

func NewTaskProcessor(assets storage.AssetStore, comments services.ICommentService, publisher notify.Notifier) *TaskProcessor {
	return &TaskProcessor{
		assets:    assets,
		comments:  comments,
		publisher: publisher,
	}
}

// NewServer configures an Asynq server for the background worker.
func NewServer(cfg *config.Config) *asynq.Server {
	return asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				QueueNotify:  6,
				QueueCleanup: 3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)
}

func NewServeMux(processor *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeAssetCleanup, processor.HandleAssetCleanupTask)
	mux.HandleFunc(TypeListingNotify, processor.HandleListingNotifyTask)
	return mux
}

// --- Task Handlers ---

// HandleAssetCleanupTask deletes the photos and comments of a deleted listing.
// Objects that are already gone count as deleted, so a retried task converges.
func (p *TaskProcessor) HandleAssetCleanupTask(ctx context.Context, t *asynq.Task) error {
	var payload AssetCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal cleanup payload: %v: %w", err, asynq.SkipRetry)
	}
	listingID, err := utils.ParseSixID(payload.ListingID)
	if err != nil {
		log.Printf("Invalid ListingID in cleanup payload: %s", payload.ListingID)
		return fmt.Errorf("invalid listing ID in payload: %w", asynq.SkipRetry)
	}

	var result *multierror.Error
	deleted := 0
	for _, url := range payload.ImageURLs {
		path, ok := p.assets.PathFromURL(url)
		if !ok {
			log.Printf("WARNING: image %s of listing %s is not managed by the asset store, skipping", url, payload.ListingID)
			continue
		}
		err := p.assets.DeleteObject(ctx, path)
		if errors.Is(err, storage.ErrObjectNotFound) {
			continue
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("delete %s: %w", path, err))
			continue
		}
		deleted++
	}

	purged, err := p.comments.PurgeListing(ctx, listingID)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("purge comments: %w", err))
	}

	if err := result.ErrorOrNil(); err != nil {
		log.Printf("Cleanup of listing %s incomplete, will retry: %v", payload.ListingID, err)
		return err
	}
	log.Printf("Cleanup of listing %s finished: %d images and %d comments removed", payload.ListingID, deleted, purged)
	return nil
}

// HandleListingNotifyTask hands a queued notification to the push publisher.
func (p *TaskProcessor) HandleListingNotifyTask(ctx context.Context, t *asynq.Task) error {
	var n notify.Notification
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		return fmt.Errorf("failed to unmarshal notification payload: %v: %w", err, asynq.SkipRetry)
	}
	if n.ID == "" || n.ListingID.IsZero() {
		return fmt.Errorf("notification without id or listing: %w", asynq.SkipRetry)
	}
	return p.publisher.Notify(ctx, n)
}
