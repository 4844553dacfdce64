package models

import "encoding/json"

// Subscription is the local mirror of one provider subscription. Polar
// owns the authoritative state; this record is updated only through
// webhook delivery. Status is an open set of strings: unrecognized
// provider values are stored verbatim, never rejected.
type Subscription struct {
	PolarID             string         `json:"polarId" db:"polar_id"`
	PolarPriceID        string         `json:"polarPriceId" db:"polar_price_id"`
	Currency            string         `json:"currency" db:"currency"`
	Interval            string         `json:"interval" db:"interval"`
	UserID              string         `json:"userId" db:"user_id"`
	Status              string         `json:"status" db:"status"`
	CurrentPeriodStart  int64          `json:"currentPeriodStart" db:"current_period_start"`
	CurrentPeriodEnd    int64          `json:"currentPeriodEnd" db:"current_period_end"`
	CancelAtPeriodEnd   bool           `json:"cancelAtPeriodEnd" db:"cancel_at_period_end"`
	Amount              int64          `json:"amount" db:"amount"`
	StartedAt           int64          `json:"startedAt" db:"started_at"`
	EndedAt             *int64         `json:"endedAt,omitempty" db:"ended_at"`
	CanceledAt          *int64         `json:"canceledAt,omitempty" db:"canceled_at"`
	CancellationReason  *string        `json:"customerCancellationReason,omitempty" db:"cancellation_reason"`
	CancellationComment *string        `json:"customerCancellationComment,omitempty" db:"cancellation_comment"`
	Metadata            map[string]any `json:"metadata" db:"metadata"`
	CustomFieldData     map[string]any `json:"customFieldData" db:"custom_field_data"`
	CustomerID          string         `json:"customerId" db:"customer_id"`
}

// SubscriptionPatch describes a partial update to a subscription. A nil
// pointer leaves the field untouched unless the matching Clear flag is
// set, which forces the field back to null. A set pointer wins over its
// Clear flag.
type SubscriptionPatch struct {
	Amount                   *int64
	Status                   *string
	CurrentPeriodStart       *int64
	CurrentPeriodEnd         *int64
	CancelAtPeriodEnd        *bool
	StartedAt                *int64
	EndedAt                  *int64
	CanceledAt               *int64
	CancellationReason       *string
	CancellationComment      *string
	ClearEndedAt             bool
	ClearCanceledAt          bool
	ClearCancellationReason  bool
	ClearCancellationComment bool
	Metadata                 map[string]any
	CustomFieldData          map[string]any
}

// Apply produces the patched record. Shared by the in-memory store and
// the applier tests; the Postgres store builds the equivalent UPDATE.
func (p SubscriptionPatch) Apply(s Subscription) Subscription {
	if p.Amount != nil {
		s.Amount = *p.Amount
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.CurrentPeriodStart != nil {
		s.CurrentPeriodStart = *p.CurrentPeriodStart
	}
	if p.CurrentPeriodEnd != nil {
		s.CurrentPeriodEnd = *p.CurrentPeriodEnd
	}
	if p.CancelAtPeriodEnd != nil {
		s.CancelAtPeriodEnd = *p.CancelAtPeriodEnd
	}
	if p.StartedAt != nil {
		s.StartedAt = *p.StartedAt
	}
	if p.EndedAt != nil {
		s.EndedAt = p.EndedAt
	} else if p.ClearEndedAt {
		s.EndedAt = nil
	}
	if p.CanceledAt != nil {
		s.CanceledAt = p.CanceledAt
	} else if p.ClearCanceledAt {
		s.CanceledAt = nil
	}
	if p.CancellationReason != nil {
		s.CancellationReason = p.CancellationReason
	} else if p.ClearCancellationReason {
		s.CancellationReason = nil
	}
	if p.CancellationComment != nil {
		s.CancellationComment = p.CancellationComment
	} else if p.ClearCancellationComment {
		s.CancellationComment = nil
	}
	if p.Metadata != nil {
		s.Metadata = p.Metadata
	}
	if p.CustomFieldData != nil {
		s.CustomFieldData = p.CustomFieldData
	}
	return s
}

// WebhookEvent is one entry of the append-only billing event ledger.
// Every received webhook call produces exactly one entry, recognized
// type or not. Redelivered provider events append again; the ledger is
// an audit log, not a dedup table.
type WebhookEvent struct {
	ID           string          `json:"id" db:"id"`
	Type         string          `json:"type" db:"type"`
	PolarEventID string          `json:"polarEventId" db:"polar_event_id"`
	CreatedAt    string          `json:"createdAt" db:"created_at"`
	ModifiedAt   string          `json:"modifiedAt" db:"modified_at"`
	Data         json.RawMessage `json:"data" db:"data"`
}
