// internal/model/campaign.go
package model

import "time"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusRecurring Status = "recurring"
)

type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyCustom   Frequency = "custom"
)

// Campaign is the unit of scheduling and delivery. Subject and body are
// authored elsewhere and treated as immutable once sending begins.
type Campaign struct {
	ID          int        `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Subject     string     `db:"subject" json:"subject"`
	Body        string     `db:"body" json:"body"`
	Status      Status     `db:"status" json:"status"`
	ScheduledAt *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`

	// Recipient filter, frozen when sending starts.
	Groups      []GroupTag `db:"groups" json:"groups"`
	ExplicitIDs []int      `db:"explicit_ids" json:"explicit_ids,omitempty"`

	// Recurrence fields; meaningful only when the campaign is or was recurring.
	IsRecurring        bool       `db:"is_recurring" json:"is_recurring"`
	Frequency          Frequency  `db:"frequency" json:"frequency,omitempty"`
	CustomIntervalDays int        `db:"custom_interval_days" json:"custom_interval_days,omitempty"`
	SendHour           int        `db:"send_hour" json:"send_hour"`
	NextRunAt          *time.Time `db:"next_run_at" json:"next_run_at,omitempty"`
	LastRunAt          *time.Time `db:"last_run_at" json:"last_run_at,omitempty"`
	RunCount           int        `db:"run_count" json:"run_count"`

	// Delivery counters, cumulative across resume passes of the current send.
	TotalRecipients int `db:"total_recipients" json:"total_recipients"`
	SuccessfulSends int `db:"successful_sends" json:"successful_sends"`
	FailedSends     int `db:"failed_sends" json:"failed_sends"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Remaining reports how many resolved recipients have no terminal outcome yet.
func (c *Campaign) Remaining() int {
	return c.TotalRecipients - (c.SuccessfulSends + c.FailedSends)
}
