// internal/model/attempt.go
package model

import "time"

type AttemptStatus string

const (
	AttemptPending AttemptStatus = "pending"
	AttemptSent    AttemptStatus = "sent"
	AttemptFailed  AttemptStatus = "failed"
)

// RecipientAttempt is the per-(campaign, address) delivery record for the
// current send. It is created in pending and moves to exactly one terminal
// status; it never reverts.
type RecipientAttempt struct {
	ID               int           `db:"id" json:"id"`
	CampaignID       int           `db:"campaign_id" json:"campaign_id"`
	Email            string        `db:"email" json:"email"`
	FirstName        string        `db:"first_name" json:"first_name"`
	UnsubscribeToken string        `db:"unsubscribe_token" json:"unsubscribe_token"`
	Status           AttemptStatus `db:"status" json:"status"`
	LastError        string        `db:"last_error,omitempty" json:"last_error,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}
