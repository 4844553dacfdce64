package models

import "time"

// User mirrors one identity-provider subject. The token identifier is
// the stable subject string issued by the identity provider and is the
// unique key; records are created lazily on first authenticated request
// and never deleted here.
type User struct {
	TokenIdentifier string    `json:"tokenIdentifier" db:"token_identifier"`
	Email           string    `json:"email,omitempty" db:"email"`
	Name            string    `json:"name,omitempty" db:"name"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}
