// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"

	"github.com/rocketman0418/campaign-engine/internal/model"
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrInvalidTransition is returned when a lifecycle operation is applied to
// a campaign in the wrong status.
type ErrInvalidTransition struct {
	CampaignID int
	From       model.Status
	To         model.Status
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("campaign %d cannot move from %s to %s", e.CampaignID, e.From, e.To)
}

func NewInvalidTransition(id int, from, to model.Status) error {
	return &ErrInvalidTransition{CampaignID: id, From: from, To: to}
}

// ErrResolution wraps a group lookup failure; resolution is atomic, so no
// partial recipient set exists when this is returned.
type ErrResolution struct {
	Group model.GroupTag
	Err   error
}

func (e *ErrResolution) Error() string {
	return fmt.Sprintf("resolving group %s: %v", e.Group, e.Err)
}

func (e *ErrResolution) Unwrap() error { return e.Err }

// ErrNotDue is returned by fireDue when next_run_at is still in the future.
var ErrNotDue = errors.New("campaign is not due yet")
