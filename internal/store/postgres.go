package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/launchkit/polarbridge/internal/errors"
	"github.com/launchkit/polarbridge/internal/models"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db Database
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db Database) *PostgresStore {
	return &PostgresStore{db: db}
}

// UpsertUser inserts or refreshes a user keyed by token identifier
func (s *PostgresStore) UpsertUser(ctx context.Context, user models.User) error {
	query := `
		INSERT INTO users (token_identifier, email, name, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (token_identifier) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			updated_at = NOW()
	`
	if err := s.db.Exec(ctx, query, user.TokenIdentifier, user.Email, user.Name); err != nil {
		return apperrors.DatabaseError{Operation: "upsert user", Err: err}
	}
	return nil
}

// GetUserByToken retrieves a user by token identifier; nil when absent
func (s *PostgresStore) GetUserByToken(ctx context.Context, tokenIdentifier string) (*models.User, error) {
	query := `
		SELECT token_identifier, email, name, created_at, updated_at
		FROM users
		WHERE token_identifier = $1
	`
	row, ok := s.db.QueryRow(ctx, query, tokenIdentifier).(pgx.Row)
	if !ok {
		return nil, fmt.Errorf("invalid row type")
	}

	var user models.User
	err := row.Scan(&user.TokenIdentifier, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.DatabaseError{Operation: "scan user", Err: err}
	}
	return &user, nil
}

const subscriptionColumns = `polar_id, polar_price_id, currency, interval, user_id, status,
	current_period_start, current_period_end, cancel_at_period_end, amount,
	started_at, ended_at, canceled_at, cancellation_reason, cancellation_comment,
	metadata, custom_field_data, customer_id`

// UpsertSubscription inserts or replaces a subscription keyed by polar_id.
// The conflict clause keeps redelivered create events idempotent.
func (s *PostgresStore) UpsertSubscription(ctx context.Context, sub models.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW())
		ON CONFLICT (polar_id) DO UPDATE SET
			polar_price_id = EXCLUDED.polar_price_id,
			currency = EXCLUDED.currency,
			interval = EXCLUDED.interval,
			user_id = EXCLUDED.user_id,
			status = EXCLUDED.status,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			amount = EXCLUDED.amount,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			canceled_at = EXCLUDED.canceled_at,
			cancellation_reason = EXCLUDED.cancellation_reason,
			cancellation_comment = EXCLUDED.cancellation_comment,
			metadata = EXCLUDED.metadata,
			custom_field_data = EXCLUDED.custom_field_data,
			customer_id = EXCLUDED.customer_id,
			updated_at = NOW()
	`
	err := s.db.Exec(ctx, query,
		sub.PolarID, sub.PolarPriceID, sub.Currency, sub.Interval, sub.UserID, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, sub.Amount,
		sub.StartedAt, sub.EndedAt, sub.CanceledAt, sub.CancellationReason, sub.CancellationComment,
		sub.Metadata, sub.CustomFieldData, sub.CustomerID,
	)
	if err != nil {
		return apperrors.DatabaseError{Operation: "upsert subscription", Err: err}
	}
	return nil
}

// GetSubscriptionByPolarID retrieves a subscription by provider id
func (s *PostgresStore) GetSubscriptionByPolarID(ctx context.Context, polarID string) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE polar_id = $1`
	return s.scanSubscription(s.db.QueryRow(ctx, query, polarID))
}

// GetSubscriptionByUserID retrieves the first subscription owned by userID
func (s *PostgresStore) GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 ORDER BY created_at ASC LIMIT 1`
	return s.scanSubscription(s.db.QueryRow(ctx, query, userID))
}

func (s *PostgresStore) scanSubscription(rowInterface interface{}) (*models.Subscription, error) {
	row, ok := rowInterface.(pgx.Row)
	if !ok {
		return nil, fmt.Errorf("invalid row type")
	}

	var sub models.Subscription
	err := row.Scan(
		&sub.PolarID, &sub.PolarPriceID, &sub.Currency, &sub.Interval, &sub.UserID, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd, &sub.Amount,
		&sub.StartedAt, &sub.EndedAt, &sub.CanceledAt, &sub.CancellationReason, &sub.CancellationComment,
		&sub.Metadata, &sub.CustomFieldData, &sub.CustomerID,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.DatabaseError{Operation: "scan subscription", Err: err}
	}
	return &sub, nil
}

// UpdateSubscription patches the record for polarID. Only fields present
// in the patch are written; an unknown polarID updates zero rows, which
// is the documented no-op for out-of-order webhook delivery.
func (s *PostgresStore) UpdateSubscription(ctx context.Context, polarID string, patch models.SubscriptionPatch) error {
	sets := []string{"updated_at = NOW()"}
	var args []interface{}
	argIndex := 1

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if patch.Amount != nil {
		add("amount", *patch.Amount)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.CurrentPeriodStart != nil {
		add("current_period_start", *patch.CurrentPeriodStart)
	}
	if patch.CurrentPeriodEnd != nil {
		add("current_period_end", *patch.CurrentPeriodEnd)
	}
	if patch.CancelAtPeriodEnd != nil {
		add("cancel_at_period_end", *patch.CancelAtPeriodEnd)
	}
	if patch.StartedAt != nil {
		add("started_at", *patch.StartedAt)
	}
	if patch.EndedAt != nil {
		add("ended_at", *patch.EndedAt)
	} else if patch.ClearEndedAt {
		sets = append(sets, "ended_at = NULL")
	}
	if patch.CanceledAt != nil {
		add("canceled_at", *patch.CanceledAt)
	} else if patch.ClearCanceledAt {
		sets = append(sets, "canceled_at = NULL")
	}
	if patch.CancellationReason != nil {
		add("cancellation_reason", *patch.CancellationReason)
	} else if patch.ClearCancellationReason {
		sets = append(sets, "cancellation_reason = NULL")
	}
	if patch.CancellationComment != nil {
		add("cancellation_comment", *patch.CancellationComment)
	} else if patch.ClearCancellationComment {
		sets = append(sets, "cancellation_comment = NULL")
	}
	if patch.Metadata != nil {
		add("metadata", patch.Metadata)
	}
	if patch.CustomFieldData != nil {
		add("custom_field_data", patch.CustomFieldData)
	}

	query := fmt.Sprintf("UPDATE subscriptions SET %s WHERE polar_id = $%d", joinSets(sets), argIndex)
	args = append(args, polarID)

	if err := s.db.Exec(ctx, query, args...); err != nil {
		return apperrors.DatabaseError{Operation: "update subscription", Err: err}
	}
	return nil
}

func joinSets(sets []string) string {
	out := ""
	for i, s := range sets {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// InsertWebhookEvent appends one ledger entry
func (s *PostgresStore) InsertWebhookEvent(ctx context.Context, event models.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (id, type, polar_event_id, created_at, modified_at, data, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	err := s.db.Exec(ctx, query,
		event.ID, event.Type, event.PolarEventID, event.CreatedAt, event.ModifiedAt, []byte(event.Data),
	)
	if err != nil {
		return apperrors.DatabaseError{Operation: "insert webhook event", Err: err}
	}
	return nil
}

// ListWebhookEvents returns the most recent ledger entries
func (s *PostgresStore) ListWebhookEvents(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, type, polar_event_id, created_at, modified_at, data
		FROM webhook_events
		ORDER BY received_at DESC
		LIMIT $1
	`
	rowsInterface, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, apperrors.DatabaseError{Operation: "query webhook events", Err: err}
	}

	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var events []models.WebhookEvent
	for rows.Next() {
		var ev models.WebhookEvent
		var data []byte
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.PolarEventID, &ev.CreatedAt, &ev.ModifiedAt, &data); err != nil {
			return nil, apperrors.DatabaseError{Operation: "scan webhook event", Err: err}
		}
		ev.Data = data
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Health checks the database connection
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}
