// internal/model/recipient.go
package model

// GroupTag names a recipient category a campaign can target.
type GroupTag string

const (
	GroupAllRegisteredUsers GroupTag = "all_registered_users"
	GroupUnconvertedLeads   GroupTag = "unconverted_leads"
	GroupMarketingContacts  GroupTag = "marketing_contacts"
	GroupExplicitList       GroupTag = "explicit_list"
)

// Recipient is one addressee as fetched from an audience source.
type Recipient struct {
	ID        int    `db:"id" json:"id"`
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name"`
}
