// internal/service/resume.go
package service

import (
	"context"
	"fmt"
)

// RunResult is the aggregate outcome of a resume loop. Totals are
// overwritten from each pass (they are already cumulative), never added.
type RunResult struct {
	CampaignID  int  `json:"campaign_id"`
	TotalSent   int  `json:"total_sent"`
	TotalFailed int  `json:"total_failed"`
	Remaining   int  `json:"remaining"`
	Resumable   bool `json:"resumable"`
}

// RunToCompletion invokes Deliver until no work remains. An
// invocation-level failure stops the loop and reports the campaign as
// resumable: attempt state is durable and seeding is idempotent, so
// nothing is lost by retrying later.
func (s *CampaignService) RunToCompletion(ctx context.Context, campaignID int) (*RunResult, error) {
	result := &RunResult{CampaignID: campaignID}
	prevRemaining := -1

	for {
		pass, err := s.Deliver(ctx, campaignID)
		if err != nil {
			result.Resumable = true
			return result, err
		}

		result.TotalSent = pass.TotalSent
		result.TotalFailed = pass.TotalFailed
		result.Remaining = pass.Remaining

		if !pass.RequiresResume || pass.Remaining == 0 {
			return result, nil
		}
		if pass.Remaining == prevRemaining {
			// A pass that claims nothing means another invocation holds
			// the work; stop instead of spinning.
			result.Resumable = true
			return result, fmt.Errorf("campaign %d made no progress with %d remaining", campaignID, pass.Remaining)
		}
		prevRemaining = pass.Remaining
	}
}
