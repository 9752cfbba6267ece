package model

import (
	"context"
	"fmt"
)

// NameResolver reports whether role and authentication provider names are
// known to the remote directory. The directory catalog implements it.
type NameResolver interface {
	ValidRoleName(name string) bool
	ValidProviderName(name string) bool
}

// UserEntry is a minimal user record returned by the optional external
// directory lookup (LDAP-style search).
type UserEntry struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// DirectoryLookup searches an external directory for entries matching a
// reference's username within the reference's authentication provider.
type DirectoryLookup interface {
	FindUserEntries(ctx context.Context, ref UserRef) ([]UserEntry, error)
}

// Validator runs the structural and cross-entity checks over a fully loaded
// model. Recoverable findings are collected, never thrown; only a failing
// remote lookup aborts the run.
type Validator struct {
	Resolver NameResolver
	// Lookup, when non-nil, enables synthesizing users for unresolved team
	// references from an external directory query. Synthesized users are
	// inserted into the model; that is the only mutation validation makes.
	Lookup DirectoryLookup
	// ActiveUserLimit collects UserLimitExceeded when more users than this
	// are active. Zero disables the check.
	ActiveUserLimit int

	added []*User
}

// AddedUsers returns the users the directory-lookup fallback inserted during
// the last Validate call, so the caller can persist them.
func (v *Validator) AddedUsers() []*User {
	return v.added
}

// Validate checks the model and returns every problem found, in this order:
// duplicate indexes, per-user attribute and name checks, team membership,
// per-team reference resolution, cross-team consistency, and the active user
// limit.
func (v *Validator) Validate(ctx context.Context, m *Model) ([]Problem, error) {
	v.added = nil
	var problems []Problem

	m.Reindex(&problems)

	for _, user := range m.Users {
		v.validateUser(user, &problems)
		if len(m.TeamsOf(user.Ref())) == 0 {
			problems = append(problems, NoTeam{User: user.Ref()})
		}
	}

	for _, team := range m.Teams {
		if err := v.validateTeam(ctx, m, team, &problems); err != nil {
			return nil, err
		}
	}

	v.validateConsistency(m, &problems)

	if v.ActiveUserLimit > 0 {
		active := 0
		for _, user := range m.Users {
			if user.Active != nil && *user.Active {
				active++
			}
		}
		if active > v.ActiveUserLimit {
			problems = append(problems, UserLimitExceeded{ActiveUsers: active, Limit: v.ActiveUserLimit})
		}
	}

	return problems, nil
}

func (v *Validator) validateUser(user *User, problems *[]Problem) {
	for _, f := range UserFields {
		if f.Mandatory && valueEmpty(f.Kind, f.Get(user)) {
			*problems = append(*problems, MissingUserProperty{Username: user.Username, Property: f.Name})
		}
	}
	if user.AuthenticationProviderName != "" && !v.Resolver.ValidProviderName(user.AuthenticationProviderName) {
		*problems = append(*problems, InvalidAuthenticationProviderName{
			Username:                   user.Username,
			AuthenticationProviderName: user.AuthenticationProviderName,
		})
	}
	for _, role := range user.Roles.Sorted() {
		if !v.Resolver.ValidRoleName(role) {
			*problems = append(*problems, InvalidRole{Username: user.Username, Role: role})
		}
	}
}

func (v *Validator) validateTeam(ctx context.Context, m *Model, team *Team, problems *[]Problem) error {
	for _, ref := range team.Users {
		if _, ok := m.UserByRef(ref); ok {
			continue
		}
		if v.Lookup == nil {
			*problems = append(*problems, MissingUser{TeamFullName: team.FullName, User: ref})
			continue
		}
		if err := v.retrieveUserEntry(ctx, m, ref, problems); err != nil {
			return err
		}
	}
	return nil
}

// retrieveUserEntry synthesizes a user record for an unresolved reference
// from the external directory. Only an entry whose username matches the
// reference exactly is accepted.
func (v *Validator) retrieveUserEntry(ctx context.Context, m *Model, ref UserRef, problems *[]Problem) error {
	entries, err := v.Lookup.FindUserEntries(ctx, ref)
	if err != nil {
		return fmt.Errorf("model: directory lookup for %s: %w", ref, err)
	}
	for _, entry := range entries {
		if entry.Username != ref.Username {
			continue
		}
		user := &User{
			Username:                   ref.Username,
			AuthenticationProviderName: ref.AuthenticationProviderName,
			Email:                      entry.Email,
			FirstName:                  entry.FirstName,
			LastName:                   entry.LastName,
		}
		m.AddUser(user)
		v.added = append(v.added, user)
		return nil
	}
	*problems = append(*problems, MissingLDAPUser{User: ref})
	return nil
}

// validateConsistency compares every identity shared across multiple teams.
// Email and the effective role set are cross-team invariants; the effective
// role set is the user's own roles when non-empty, otherwise the owning
// team's default roles.
func (v *Validator) validateConsistency(m *Model, problems *[]Problem) {
	type occurrence struct {
		team *Team
		user *User
	}
	byUsername := make(map[string][]occurrence)
	var order []string
	for _, team := range m.Teams {
		for _, ref := range team.Users {
			user, ok := m.UserByRef(ref)
			if !ok {
				continue
			}
			if _, seen := byUsername[ref.Username]; !seen {
				order = append(order, ref.Username)
			}
			byUsername[ref.Username] = append(byUsername[ref.Username], occurrence{team: team, user: user})
		}
	}

	for _, username := range order {
		occs := byUsername[username]
		if len(occs) < 2 {
			continue
		}
		first := occs[0]
		firstRoles := effectiveRoles(first.user, first.team)
		for _, occ := range occs[1:] {
			if occ.user.Email != first.user.Email {
				*problems = append(*problems, InconsistentUser{
					Property: FieldEmail,
					Username: username,
					TeamA:    first.team.FullName,
					TeamB:    occ.team.FullName,
					ValueA:   first.user.Email,
					ValueB:   occ.user.Email,
				})
			}
			roles := effectiveRoles(occ.user, occ.team)
			if !firstRoles.Equal(roles) {
				*problems = append(*problems, InconsistentUser{
					Property: FieldRoles,
					Username: username,
					TeamA:    first.team.FullName,
					TeamB:    occ.team.FullName,
					ValueA:   fmt.Sprintf("%v", firstRoles.Sorted()),
					ValueB:   fmt.Sprintf("%v", roles.Sorted()),
				})
			}
		}
	}
}

func effectiveRoles(user *User, team *Team) StringSet {
	if !user.Roles.Empty() {
		return user.Roles
	}
	return team.Defaults.Roles
}
