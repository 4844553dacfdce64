package store

import (
	"context"
	"sync"
	"time"

	"github.com/launchkit/polarbridge/internal/models"
)

// InMemoryStore implements Store using in-memory storage. It backs
// development and tests when no database is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	users    map[string]models.User
	subs     map[string]models.Subscription
	subOrder []string // polar ids in insertion order, for "first match" lookups
	events   []models.WebhookEvent
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users: make(map[string]models.User),
		subs:  make(map[string]models.Subscription),
	}
}

// UpsertUser stores a user keyed by token identifier
func (s *InMemoryStore) UpsertUser(ctx context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.users[user.TokenIdentifier]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.TokenIdentifier] = user
	return nil
}

// GetUserByToken retrieves a user; nil when absent
func (s *InMemoryStore) GetUserByToken(ctx context.Context, tokenIdentifier string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if user, exists := s.users[tokenIdentifier]; exists {
		return &user, nil
	}
	return nil, nil
}

// UpsertSubscription inserts or replaces a subscription by polar id
func (s *InMemoryStore) UpsertSubscription(ctx context.Context, sub models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subs[sub.PolarID]; !exists {
		s.subOrder = append(s.subOrder, sub.PolarID)
	}
	s.subs[sub.PolarID] = sub
	return nil
}

// GetSubscriptionByPolarID retrieves a subscription by provider id
func (s *InMemoryStore) GetSubscriptionByPolarID(ctx context.Context, polarID string) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, exists := s.subs[polarID]; exists {
		return &sub, nil
	}
	return nil, nil
}

// GetSubscriptionByUserID returns the first subscription owned by userID
func (s *InMemoryStore) GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, polarID := range s.subOrder {
		if sub := s.subs[polarID]; sub.UserID == userID {
			return &sub, nil
		}
	}
	return nil, nil
}

// UpdateSubscription patches an existing subscription; a missing target
// is a silent no-op
func (s *InMemoryStore) UpdateSubscription(ctx context.Context, polarID string, patch models.SubscriptionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.subs[polarID]
	if !exists {
		return nil
	}
	s.subs[polarID] = patch.Apply(sub)
	return nil
}

// InsertWebhookEvent appends one ledger entry
func (s *InMemoryStore) InsertWebhookEvent(ctx context.Context, event models.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	return nil
}

// ListWebhookEvents returns the most recent ledger entries, newest first
func (s *InMemoryStore) ListWebhookEvents(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]models.WebhookEvent, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// Health always returns nil for in-memory store
func (s *InMemoryStore) Health(ctx context.Context) error {
	return nil
}
