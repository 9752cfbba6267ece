package model

import (
	"fmt"
	"strings"
)

// Problem is a collected validation finding. Problems are plain value
// records: a run accumulates every problem it sees instead of stopping at
// the first, and the caller decides whether a non-empty list is fatal.
type Problem interface {
	Problem() string
}

// ValidationError wraps a non-empty problem list when a caller chooses to
// treat it as fatal.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Problem())
	}
	return fmt.Sprintf("model: %d validation problem(s): %s", len(e.Problems), strings.Join(msgs, "; "))
}

// DuplicateTeam reports two teams sharing one full name.
type DuplicateTeam struct {
	TeamFullName string
}

func (p DuplicateTeam) Problem() string {
	return fmt.Sprintf("duplicate team full name %q", p.TeamFullName)
}

// DuplicateUser reports two users sharing one identity.
type DuplicateUser struct {
	User UserRef
}

func (p DuplicateUser) Problem() string {
	return fmt.Sprintf("duplicate user %s", p.User)
}

// InvalidRole reports a role name unknown to the directory.
type InvalidRole struct {
	Username string
	Role     string
}

func (p InvalidRole) Problem() string {
	return fmt.Sprintf("user %q references unknown role %q", p.Username, p.Role)
}

// InvalidAuthenticationProviderName reports a provider name unknown to the
// directory.
type InvalidAuthenticationProviderName struct {
	Username                   string
	AuthenticationProviderName string
}

func (p InvalidAuthenticationProviderName) Problem() string {
	return fmt.Sprintf("user %q references unknown authentication provider %q", p.Username, p.AuthenticationProviderName)
}

// NoTeam reports a user that no team references.
type NoTeam struct {
	User UserRef
}

func (p NoTeam) Problem() string {
	return fmt.Sprintf("user %s does not belong to any team", p.User)
}

// MissingUser reports a team membership reference that resolves to no known
// user.
type MissingUser struct {
	TeamFullName string
	User         UserRef
}

func (p MissingUser) Problem() string {
	return fmt.Sprintf("team %q references unknown user %s", p.TeamFullName, p.User)
}

// MissingLDAPUser reports a directory-lookup fallback that found no entry for
// an unresolved reference.
type MissingLDAPUser struct {
	User UserRef
}

func (p MissingLDAPUser) Problem() string {
	return fmt.Sprintf("user %s not found in directory lookup", p.User)
}

// MissingUserProperty reports an absent mandatory attribute.
type MissingUserProperty struct {
	Username string
	Property string
}

func (p MissingUserProperty) Problem() string {
	return fmt.Sprintf("user %q has no value for mandatory attribute %q", p.Username, p.Property)
}

// MissingDefaultAttribute reports a member whose mandatory attribute is
// absent and whose team supplies no default for it.
type MissingDefaultAttribute struct {
	Username     string
	TeamFullName string
	Attribute    string
}

func (p MissingDefaultAttribute) Problem() string {
	return fmt.Sprintf("user %q in team %q has no value and no team default for %q", p.Username, p.TeamFullName, p.Attribute)
}

// InconsistentUser reports one identity whose cross-team-invariant attribute
// diverges between two teams.
type InconsistentUser struct {
	Property string
	Username string
	TeamA    string
	TeamB    string
	ValueA   string
	ValueB   string
}

func (p InconsistentUser) Problem() string {
	return fmt.Sprintf("user %q has inconsistent %s between team %q (%s) and team %q (%s)",
		p.Username, p.Property, p.TeamA, p.ValueA, p.TeamB, p.ValueB)
}

// UserLimitExceeded reports more active users than the configured cap.
type UserLimitExceeded struct {
	ActiveUsers int
	Limit       int
}

func (p UserLimitExceeded) Problem() string {
	return fmt.Sprintf("active user count %d exceeds limit %d", p.ActiveUsers, p.Limit)
}
