package notify

import (
	"context"
	"time"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

// Notification is a push event about a listing. ID de-duplicates deliveries.
type Notification struct {
	ID        string      `json:"id"`
	ListingID utils.SixID `json:"listing_id"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	CreatedAt time.Time   `json:"created_at"`
}

// Notifier hands a notification to the push side channel. Callers never depend on delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, n Notification) error { return nil }
