// Package resolver turns a campaign's declarative recipient filter into a
// concrete, deduplicated recipient list.
package resolver

import (
	"strings"

	appErrors "github.com/rocketman0418/campaign-engine/internal/errors"
	"github.com/rocketman0418/campaign-engine/internal/model"
	"github.com/rocketman0418/campaign-engine/internal/repository"
)

// Filter is the declarative recipient selection frozen on a campaign.
type Filter struct {
	Groups      []model.GroupTag
	ExplicitIDs []int
}

// Snapshot is the materialized result of one resolution call. It is
// ephemeral: used to seed attempt rows and report counts, never persisted.
type Snapshot struct {
	Recipients   []model.Recipient
	CountByGroup map[model.GroupTag]int
}

func (s *Snapshot) Total() int { return len(s.Recipients) }

// GroupResolver fetches the members of one group tag.
type GroupResolver interface {
	Tag() model.GroupTag
	Members(f Filter) ([]model.Recipient, error)
}

// Resolver unions group members and deduplicates by normalized email.
// It never mutates state; repeated calls over an unchanged audience
// return the same counts.
type Resolver struct {
	groups map[model.GroupTag]GroupResolver
}

func New(audience repository.AudienceRepositoryInterface) *Resolver {
	r := &Resolver{groups: map[model.GroupTag]GroupResolver{}}
	for _, g := range []GroupResolver{
		registeredUsers{audience},
		unconvertedLeads{audience},
		marketingContacts{audience},
		explicitList{audience},
	} {
		r.groups[g.Tag()] = g
	}
	return r
}

// Resolve fails atomically: if any group lookup errors, no partial
// recipient set is returned.
func (r *Resolver) Resolve(f Filter) (*Snapshot, error) {
	snap := &Snapshot{
		Recipients:   []model.Recipient{},
		CountByGroup: map[model.GroupTag]int{},
	}
	seen := map[string]bool{}

	for _, tag := range f.Groups {
		g, ok := r.groups[tag]
		if !ok {
			continue
		}
		members, err := g.Members(f)
		if err != nil {
			return nil, &appErrors.ErrResolution{Group: tag, Err: err}
		}
		snap.CountByGroup[tag] = len(members)

		for _, m := range members {
			key := NormalizeEmail(m.Email)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			m.Email = key
			snap.Recipients = append(snap.Recipients, m)
		}
	}
	return snap, nil
}

// NormalizeEmail is the dedup key: a person reachable through two groups
// is sent to exactly once.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type registeredUsers struct {
	audience repository.AudienceRepositoryInterface
}

func (g registeredUsers) Tag() model.GroupTag { return model.GroupAllRegisteredUsers }
func (g registeredUsers) Members(Filter) ([]model.Recipient, error) {
	return g.audience.RegisteredUsers()
}

type unconvertedLeads struct {
	audience repository.AudienceRepositoryInterface
}

func (g unconvertedLeads) Tag() model.GroupTag { return model.GroupUnconvertedLeads }
func (g unconvertedLeads) Members(Filter) ([]model.Recipient, error) {
	return g.audience.UnconvertedLeads()
}

type marketingContacts struct {
	audience repository.AudienceRepositoryInterface
}

func (g marketingContacts) Tag() model.GroupTag { return model.GroupMarketingContacts }
func (g marketingContacts) Members(Filter) ([]model.Recipient, error) {
	return g.audience.MarketingContacts()
}

type explicitList struct {
	audience repository.AudienceRepositoryInterface
}

func (g explicitList) Tag() model.GroupTag { return model.GroupExplicitList }
func (g explicitList) Members(f Filter) ([]model.Recipient, error) {
	return g.audience.UsersByIDs(f.ExplicitIDs)
}
