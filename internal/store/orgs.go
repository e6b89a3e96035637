package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"
)

func (s *Store) Organizations() []Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Organization(nil), s.orgs...)
}

func (s *Store) OrgByID(id string) (Organization, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.orgIndexLocked(id); i >= 0 {
		return s.orgs[i], true
	}
	return Organization{}, false
}

// AddOrganization creates an org on the given plan with that plan's quotas
// and a slug derived from the name, suffixed with a counter when taken.
func (s *Store) AddOrganization(name string, plan Plan) Organization {
	s.mu.Lock()
	defer s.mu.Unlock()

	quotas := PlanQuotas[plan]
	o := Organization{
		ID:                 s.ids.NewID(),
		Name:               name,
		Slug:               s.uniqueSlugLocked(slugify(name)),
		Plan:               plan,
		SubscriptionStatus: SubActive,
		BotsQuota:          quotas.Bots,
		APICallsQuota:      quotas.APICalls,
		CreatedAt:          s.now(),
	}
	s.orgs = append(s.orgs, o)
	s.logger.Info().Str("org_id", o.ID).Str("plan", string(plan)).Msg("organization created")
	s.changed()
	return o
}

// IncrementAPIUsage records one API call against the org's monthly quota.
func (s *Store) IncrementAPIUsage(orgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.orgIndexLocked(orgID); i >= 0 {
		s.orgs[i].APICallsUsed++
		s.changed()
	}
}

// ResetMonthlyUsage zeroes the monthly counters for every organization.
func (s *Store) ResetMonthlyUsage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orgs {
		s.orgs[i].APICallsUsed = 0
	}
	s.changed()
}

// CreateInvite issues a join token for an email address, valid for ttl.
func (s *Store) CreateInvite(orgID, email string, role Role, ttl time.Duration) (Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orgIndexLocked(orgID) < 0 {
		return Invite{}, ErrNotFound
	}
	inv := Invite{
		ID:        s.ids.NewID(),
		OrgID:     orgID,
		Email:     email,
		Role:      role,
		Token:     newInviteToken(),
		ExpiresAt: s.now().Add(ttl),
		CreatedAt: s.now(),
	}
	s.invites = append(s.invites, inv)
	s.changed()
	return inv, nil
}

func (s *Store) Invites(orgID string) []Invite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Invite, 0)
	for _, inv := range s.invites {
		if inv.OrgID == orgID {
			out = append(out, inv)
		}
	}
	return out
}

// AcceptInvite consumes a valid token and creates the invited user with the
// role carried by the invite.
func (s *Store) AcceptInvite(token, username, password string) (User, error) {
	s.mu.Lock()
	idx := -1
	for i, inv := range s.invites {
		if inv.Token == token {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return User{}, ErrNotFound
	}
	inv := s.invites[idx]
	if inv.AcceptedAt != nil || s.now().After(inv.ExpiresAt) {
		s.mu.Unlock()
		return User{}, ErrInviteExpired
	}
	s.mu.Unlock()

	u, err := s.AddUser(username, password, inv.Role, nil)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	now := s.now()
	s.invites[idx].AcceptedAt = &now
	s.changed()
	s.mu.Unlock()
	return u, nil
}

func (s *Store) orgIndexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, o := range s.orgs {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) uniqueSlugLocked(base string) string {
	slug := base
	for n := 1; ; n++ {
		taken := false
		for _, o := range s.orgs {
			if o.Slug == slug {
				taken = true
				break
			}
		}
		if !taken {
			return slug
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}

func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

func newInviteToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("invite-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
