package repository

import (
	"database/sql"

	"github.com/rocketman0418/campaign-engine/internal/model"
)

type AttemptRepositoryInterface interface {
	// Seed inserts pending attempt rows, skipping addresses that already
	// have a row for this campaign. Safe to call redundantly.
	Seed(campaignID int, attempts []model.RecipientAttempt) error
	ListPending(campaignID, limit int) ([]*model.RecipientAttempt, error)
	// MarkResult moves a pending attempt to a terminal status. Returns
	// false when the row was no longer pending (claimed by another pass).
	MarkResult(attemptID int, status model.AttemptStatus, lastError string) (bool, error)
	CountByStatus(campaignID int) (map[model.AttemptStatus]int, error)
	DeleteForCampaign(campaignID int) error
}

type AttemptRepository struct {
	DB *sql.DB
}

func (r *AttemptRepository) Seed(campaignID int, attempts []model.RecipientAttempt) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO recipient_attempts (campaign_id, email, first_name, unsubscribe_token, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, 'pending', NOW(), NOW())
        ON CONFLICT (campaign_id, email) DO NOTHING
    `
	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range attempts {
		if _, err := stmt.Exec(campaignID, a.Email, a.FirstName, a.UnsubscribeToken); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *AttemptRepository) ListPending(campaignID, limit int) ([]*model.RecipientAttempt, error) {
	query := `
        SELECT id, campaign_id, email, first_name, unsubscribe_token, status, last_error, created_at, updated_at
        FROM recipient_attempts
        WHERE campaign_id=$1 AND status='pending'
        ORDER BY id
        LIMIT $2
    `
	rows, err := r.DB.Query(query, campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []*model.RecipientAttempt{}
	for rows.Next() {
		var (
			a      model.RecipientAttempt
			status string
		)
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.Email, &a.FirstName, &a.UnsubscribeToken, &status, &a.LastError, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Status = model.AttemptStatus(status)
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}

// MarkResult is the claim: the pending guard makes overlapping deliver
// passes safe without external locking.
func (r *AttemptRepository) MarkResult(attemptID int, status model.AttemptStatus, lastError string) (bool, error) {
	query := `
        UPDATE recipient_attempts
        SET status=$1, last_error=$2, updated_at=NOW()
        WHERE id=$3 AND status='pending'
    `
	res, err := r.DB.Exec(query, string(status), lastError, attemptID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *AttemptRepository) CountByStatus(campaignID int) (map[model.AttemptStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM recipient_attempts WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[model.AttemptStatus]int{
		model.AttemptPending: 0,
		model.AttemptSent:    0,
		model.AttemptFailed:  0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[model.AttemptStatus(status)] = count
	}
	return counts, rows.Err()
}

// DeleteForCampaign clears the previous cycle's attempts so a recurring
// campaign can start a fresh send.
func (r *AttemptRepository) DeleteForCampaign(campaignID int) error {
	_, err := r.DB.Exec(`DELETE FROM recipient_attempts WHERE campaign_id=$1`, campaignID)
	return err
}

var _ AttemptRepositoryInterface = (*AttemptRepository)(nil)
