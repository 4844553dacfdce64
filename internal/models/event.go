package models

import (
	"encoding/json"
	"time"
)

// EventEnvelope is the decoded webhook body: a type tag plus the raw
// event object. Data stays raw so unrecognized types pass through to
// the ledger untouched.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SubscriptionPayload is the provider's subscription object as it
// appears on the wire. Instants arrive as ISO-8601 strings and are
// converted to epoch milliseconds at the store boundary.
type SubscriptionPayload struct {
	ID                          string         `json:"id"`
	PriceID                     string         `json:"price_id"`
	Currency                    string         `json:"currency"`
	RecurringInterval           string         `json:"recurring_interval"`
	Status                      string         `json:"status"`
	CurrentPeriodStart          string         `json:"current_period_start"`
	CurrentPeriodEnd            string         `json:"current_period_end"`
	CancelAtPeriodEnd           bool           `json:"cancel_at_period_end"`
	Amount                      int64          `json:"amount"`
	StartedAt                   string         `json:"started_at"`
	EndedAt                     string         `json:"ended_at"`
	CanceledAt                  string         `json:"canceled_at"`
	CustomerCancellationReason  string         `json:"customer_cancellation_reason"`
	CustomerCancellationComment string         `json:"customer_cancellation_comment"`
	Metadata                    map[string]any `json:"metadata"`
	CustomFieldData             map[string]any `json:"custom_field_data"`
	CustomerID                  string         `json:"customer_id"`
	CreatedAt                   string         `json:"created_at"`
	ModifiedAt                  string         `json:"modified_at"`
}

// MetadataUserID returns the owning token identifier tagged onto the
// checkout session. Its presence is an upstream contract, not something
// validated here.
func (p SubscriptionPayload) MetadataUserID() string {
	v, _ := p.Metadata["userId"].(string)
	return v
}

// EpochMillis converts an ISO-8601 instant to epoch milliseconds.
// Absent or unparseable values yield nil.
func EpochMillis(iso string) *int64 {
	if iso == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// EpochMillisOrZero is EpochMillis for fields the schema treats as
// required; missing values map to 0.
func EpochMillisOrZero(iso string) int64 {
	if ms := EpochMillis(iso); ms != nil {
		return *ms
	}
	return 0
}
