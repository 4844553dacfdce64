package billing

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/launchkit/polarbridge/internal/logger"
	"github.com/launchkit/polarbridge/internal/metrics"
	"github.com/launchkit/polarbridge/internal/models"
	"github.com/launchkit/polarbridge/internal/store"
)

// Applier turns verified webhook events into store mutations. Every
// event is appended to the ledger first; the subscription transition
// that follows depends on the event type.
type Applier struct {
	store store.Store
}

func NewApplier(st store.Store) *Applier {
	return &Applier{store: st}
}

// Apply records the event and applies its subscription transition.
// Transitions for subscriptions that have not been seen yet are skipped
// rather than failed: deliveries can arrive out of order.
func (a *Applier) Apply(ctx context.Context, envelope models.EventEnvelope) error {
	var payload models.SubscriptionPayload
	// Non-subscription events carry a different data shape; whatever
	// fields match are enough for the ledger entry.
	_ = json.Unmarshal(envelope.Data, &payload)

	modifiedAt := payload.ModifiedAt
	if modifiedAt == "" {
		modifiedAt = payload.CreatedAt
	}
	entry := models.WebhookEvent{
		ID:           uuid.NewString(),
		Type:         envelope.Type,
		PolarEventID: payload.ID,
		CreatedAt:    payload.CreatedAt,
		ModifiedAt:   modifiedAt,
		Data:         envelope.Data,
	}
	if err := a.store.InsertWebhookEvent(ctx, entry); err != nil {
		metrics.RecordWebhookEvent(envelope.Type, "error")
		return err
	}

	switch envelope.Type {
	case "subscription.created":
		return a.applyCreated(ctx, payload)
	case "subscription.updated":
		return a.patch(ctx, envelope.Type, payload, models.SubscriptionPatch{
			Amount:             &payload.Amount,
			Status:             &payload.Status,
			CurrentPeriodStart: models.EpochMillis(payload.CurrentPeriodStart),
			CurrentPeriodEnd:   models.EpochMillis(payload.CurrentPeriodEnd),
			CancelAtPeriodEnd:  &payload.CancelAtPeriodEnd,
			Metadata:           payload.Metadata,
			CustomFieldData:    payload.CustomFieldData,
		})
	case "subscription.active":
		started := models.EpochMillisOrZero(payload.StartedAt)
		return a.patch(ctx, envelope.Type, payload, models.SubscriptionPatch{
			Status:    &payload.Status,
			StartedAt: &started,
		})
	case "subscription.canceled":
		patch := models.SubscriptionPatch{
			Status:          &payload.Status,
			CanceledAt:      models.EpochMillis(payload.CanceledAt),
			ClearCanceledAt: true,
		}
		if payload.CustomerCancellationReason != "" {
			patch.CancellationReason = &payload.CustomerCancellationReason
		} else {
			patch.ClearCancellationReason = true
		}
		if payload.CustomerCancellationComment != "" {
			patch.CancellationComment = &payload.CustomerCancellationComment
		} else {
			patch.ClearCancellationComment = true
		}
		return a.patch(ctx, envelope.Type, payload, patch)
	case "subscription.uncanceled":
		no := false
		return a.patch(ctx, envelope.Type, payload, models.SubscriptionPatch{
			Status:                   &payload.Status,
			CancelAtPeriodEnd:        &no,
			ClearCanceledAt:          true,
			ClearCancellationReason:  true,
			ClearCancellationComment: true,
		})
	case "subscription.revoked":
		revoked := "revoked"
		return a.patch(ctx, envelope.Type, payload, models.SubscriptionPatch{
			Status:       &revoked,
			EndedAt:      models.EpochMillis(payload.EndedAt),
			ClearEndedAt: true,
		})
	case "order.created":
		// Order events are ledger-only; subscription state comes from
		// the subscription.* stream.
		metrics.RecordWebhookEvent(envelope.Type, "recorded")
		return nil
	default:
		logger.WithContext(ctx).Info("Unhandled webhook event type", "type", envelope.Type)
		metrics.RecordWebhookEvent(envelope.Type, "recorded")
		return nil
	}
}

func (a *Applier) applyCreated(ctx context.Context, payload models.SubscriptionPayload) error {
	sub := models.Subscription{
		PolarID:             payload.ID,
		PolarPriceID:        payload.PriceID,
		Currency:            payload.Currency,
		Interval:            payload.RecurringInterval,
		UserID:              payload.MetadataUserID(),
		Status:              payload.Status,
		CurrentPeriodStart:  models.EpochMillisOrZero(payload.CurrentPeriodStart),
		CurrentPeriodEnd:    models.EpochMillisOrZero(payload.CurrentPeriodEnd),
		CancelAtPeriodEnd:   payload.CancelAtPeriodEnd,
		Amount:              payload.Amount,
		StartedAt:           models.EpochMillisOrZero(payload.StartedAt),
		EndedAt:             models.EpochMillis(payload.EndedAt),
		CanceledAt:          models.EpochMillis(payload.CanceledAt),
		CancellationReason:  optString(payload.CustomerCancellationReason),
		CancellationComment: optString(payload.CustomerCancellationComment),
		Metadata:            orEmptyMap(payload.Metadata),
		CustomFieldData:     orEmptyMap(payload.CustomFieldData),
		CustomerID:          payload.CustomerID,
	}
	if err := a.store.UpsertSubscription(ctx, sub); err != nil {
		metrics.RecordWebhookEvent("subscription.created", "error")
		return err
	}
	metrics.RecordWebhookEvent("subscription.created", "applied")
	return nil
}

// patch applies a partial update to the subscription named by the
// payload. A subscription we have never recorded is a skip, not an
// error.
func (a *Applier) patch(ctx context.Context, eventType string, payload models.SubscriptionPayload, patch models.SubscriptionPatch) error {
	existing, err := a.store.GetSubscriptionByPolarID(ctx, payload.ID)
	if err != nil {
		metrics.RecordWebhookEvent(eventType, "error")
		return err
	}
	if existing == nil {
		logger.WithContext(ctx).Warn("Webhook event for unknown subscription", "type", eventType, "polar_id", payload.ID)
		metrics.RecordWebhookEvent(eventType, "skipped")
		return nil
	}
	if err := a.store.UpdateSubscription(ctx, payload.ID, patch); err != nil {
		metrics.RecordWebhookEvent(eventType, "error")
		return err
	}
	metrics.RecordWebhookEvent(eventType, "applied")
	return nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
