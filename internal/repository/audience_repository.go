package repository

import (
	"database/sql"

	"github.com/lib/pq"

	"github.com/rocketman0418/campaign-engine/internal/model"
)

// AudienceRepositoryInterface exposes the audience sources the resolver
// draws from.
type AudienceRepositoryInterface interface {
	RegisteredUsers() ([]model.Recipient, error)
	UnconvertedLeads() ([]model.Recipient, error)
	MarketingContacts() ([]model.Recipient, error)
	UsersByIDs(ids []int) ([]model.Recipient, error)
}

type AudienceRepository struct {
	DB *sql.DB
}

func (r *AudienceRepository) RegisteredUsers() ([]model.Recipient, error) {
	query := `SELECT id, email, first_name FROM users ORDER BY id`
	return r.queryRecipients(query)
}

func (r *AudienceRepository) UnconvertedLeads() ([]model.Recipient, error) {
	query := `SELECT id, email, first_name FROM leads WHERE converted=FALSE ORDER BY id`
	return r.queryRecipients(query)
}

// MarketingContacts excludes addresses already in the user directory and
// addresses marked unsubscribed. The exclusion lives here, not in the
// resolver.
func (r *AudienceRepository) MarketingContacts() ([]model.Recipient, error) {
	query := `
        SELECT mc.id, mc.email, mc.first_name
        FROM marketing_contacts mc
        WHERE mc.unsubscribed=FALSE
          AND NOT EXISTS (
              SELECT 1 FROM users u WHERE LOWER(u.email) = LOWER(mc.email)
          )
        ORDER BY mc.id
    `
	return r.queryRecipients(query)
}

func (r *AudienceRepository) UsersByIDs(ids []int) ([]model.Recipient, error) {
	if len(ids) == 0 {
		return []model.Recipient{}, nil
	}
	query := `SELECT id, email, first_name FROM users WHERE id = ANY($1) ORDER BY id`
	return r.queryRecipients(query, pq.Array(int64s(ids)))
}

func (r *AudienceRepository) queryRecipients(query string, args ...interface{}) ([]model.Recipient, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []model.Recipient{}
	for rows.Next() {
		var rec model.Recipient
		if err := rows.Scan(&rec.ID, &rec.Email, &rec.FirstName); err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

var _ AudienceRepositoryInterface = (*AudienceRepository)(nil)
