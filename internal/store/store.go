package store

import (
	"context"

	"github.com/launchkit/polarbridge/internal/models"
)

// Store defines the interface for billing state storage: users,
// subscription mirrors, and the append-only webhook ledger.
type Store interface {
	UpsertUser(ctx context.Context, user models.User) error
	GetUserByToken(ctx context.Context, tokenIdentifier string) (*models.User, error)

	// UpsertSubscription inserts or replaces the record for its polarId.
	UpsertSubscription(ctx context.Context, sub models.Subscription) error
	GetSubscriptionByPolarID(ctx context.Context, polarID string) (*models.Subscription, error)
	// GetSubscriptionByUserID returns the first subscription owned by the
	// user, or nil. Status checks take the first match; they do not
	// aggregate multiple subscriptions.
	GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error)
	// UpdateSubscription patches the record for polarID. A missing target
	// is a silent no-op: webhook delivery order is not guaranteed.
	UpdateSubscription(ctx context.Context, polarID string, patch models.SubscriptionPatch) error

	InsertWebhookEvent(ctx context.Context, event models.WebhookEvent) error
	ListWebhookEvents(ctx context.Context, limit int) ([]models.WebhookEvent, error)

	Health(ctx context.Context) error
}

// Database interface for dependency injection
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (interface{}, error)
	QueryRow(ctx context.Context, sql string, args ...any) interface{}
	Health(ctx context.Context) error
	IsConfigured() bool
}

// New creates a new store instance
func New(db Database) Store {
	if db.IsConfigured() {
		return NewPostgresStore(db)
	}
	// Fallback to in-memory store if no database
	return NewInMemoryStore()
}
