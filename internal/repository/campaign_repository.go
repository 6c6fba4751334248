package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/rocketman0418/campaign-engine/internal/errors"
	"github.com/rocketman0418/campaign-engine/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error)
	UpdateStatus(campaignID int, status model.Status) error
	UpdateCounters(campaignID, total, successful, failed int) error
	SetSchedule(campaignID int, at time.Time) error
	SetRecurrence(campaignID int, freq model.Frequency, customDays, sendHour int, nextRunAt time.Time) error
	CompleteRun(campaignID int, firedAt, nextRunAt time.Time) error
	ListDueRecurring(now time.Time) ([]*model.Campaign, error)
	ListDueScheduled(now time.Time) ([]*model.Campaign, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, name, subject, body, status, scheduled_at, groups, explicit_ids,
	is_recurring, frequency, custom_interval_days, send_hour, next_run_at, last_run_at, run_count,
	total_recipients, successful_sends, failed_sends, created_at, updated_at`

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.StatusDraft
	}
	query := `
        INSERT INTO campaigns (name, subject, body, status, scheduled_at, groups, explicit_ids, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		c.Name, c.Subject, c.Body, string(c.Status), c.ScheduledAt,
		pq.Array(groupStrings(c.Groups)), pq.Array(int64s(c.ExplicitIDs)), c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	if status != "" {
		countQuery += " AND status=$1"
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status model.Status) error {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, string(status), campaignID)
	return err
}

func (r *CampaignRepository) UpdateCounters(campaignID, total, successful, failed int) error {
	query := `
        UPDATE campaigns
        SET total_recipients=$1, successful_sends=$2, failed_sends=$3, updated_at=NOW()
        WHERE id=$4
    `
	_, err := r.DB.Exec(query, total, successful, failed, campaignID)
	return err
}

func (r *CampaignRepository) SetSchedule(campaignID int, at time.Time) error {
	query := `UPDATE campaigns SET status=$1, scheduled_at=$2, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.Exec(query, string(model.StatusScheduled), at, campaignID)
	return err
}

func (r *CampaignRepository) SetRecurrence(campaignID int, freq model.Frequency, customDays, sendHour int, nextRunAt time.Time) error {
	query := `
        UPDATE campaigns
        SET status=$1, is_recurring=TRUE, frequency=$2, custom_interval_days=$3,
            send_hour=$4, next_run_at=$5, updated_at=NOW()
        WHERE id=$6
    `
	_, err := r.DB.Exec(query, string(model.StatusRecurring), string(freq), customDays, sendHour, nextRunAt, campaignID)
	return err
}

// CompleteRun records one finished recurring cycle.
func (r *CampaignRepository) CompleteRun(campaignID int, firedAt, nextRunAt time.Time) error {
	query := `
        UPDATE campaigns
        SET run_count=run_count+1, last_run_at=$1, next_run_at=$2, updated_at=NOW()
        WHERE id=$3
    `
	_, err := r.DB.Exec(query, firedAt, nextRunAt, campaignID)
	return err
}

func (r *CampaignRepository) ListDueRecurring(now time.Time) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status=$1 AND next_run_at IS NOT NULL AND next_run_at <= $2 ORDER BY id`
	return r.listByQuery(query, string(model.StatusRecurring), now)
}

func (r *CampaignRepository) ListDueScheduled(now time.Time) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status=$1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2 ORDER BY id`
	return r.listByQuery(query, string(model.StatusScheduled), now)
}

func (r *CampaignRepository) listByQuery(query string, args ...interface{}) ([]*model.Campaign, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var (
		c          model.Campaign
		status     string
		groups     []string
		explicit   []int64
		freq       sql.NullString
		customDays sql.NullInt64
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Subject, &c.Body, &status, &c.ScheduledAt,
		pq.Array(&groups), pq.Array(&explicit),
		&c.IsRecurring, &freq, &customDays, &c.SendHour,
		&c.NextRunAt, &c.LastRunAt, &c.RunCount,
		&c.TotalRecipients, &c.SuccessfulSends, &c.FailedSends,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = model.Status(status)
	c.Groups = groupTags(groups)
	c.ExplicitIDs = ints(explicit)
	if freq.Valid {
		c.Frequency = model.Frequency(freq.String)
	}
	if customDays.Valid {
		c.CustomIntervalDays = int(customDays.Int64)
	}
	return &c, nil
}

func groupStrings(tags []model.GroupTag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}

func groupTags(strs []string) []model.GroupTag {
	out := make([]model.GroupTag, len(strs))
	for i, s := range strs {
		out[i] = model.GroupTag(s)
	}
	return out
}

func int64s(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func ints(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
