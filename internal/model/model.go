// Package model holds the in-memory representation of an organization of
// teams and users, the cross-entity validation rules, and the default-value
// hoisting between a team and its members. The remote directory and the
// on-disk files are both projected into this one shape before they are
// compared.
package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrTeamNameMismatch = errors.New("model: last component of team full name does not match team name")
	ErrUnknownTeamID    = errors.New("model: cannot determine team id")
)

// UserRef names a user without owning its attributes. Users are uniquely
// identified by the username/authentication-provider pair, so UserRef is
// comparable and usable as a map key.
type UserRef struct {
	Username                   string
	AuthenticationProviderName string
}

func (r UserRef) String() string {
	return fmt.Sprintf("%s@%s", r.Username, r.AuthenticationProviderName)
}

// TeamDefaults carries attribute values shared by every member of a team.
// Members with an absent attribute inherit the default during Denormalize.
type TeamDefaults struct {
	Active                     *bool
	AuthenticationProviderName string
	LocaleID                   *int
	Roles                      StringSet
	AllowedIPList              StringSet
}

// Team is a node in the organization hierarchy. The hierarchy itself is not
// stored: a team's parent is whatever team owns the full name preceding the
// last '/' segment.
type Team struct {
	TeamID   int
	Name     string
	FullName string
	Users    []UserRef
	Defaults TeamDefaults
}

// NewTeam constructs a team, enforcing that the last path segment of fullName
// equals name. A mismatch is a structural error, not a collected problem.
func NewTeam(name, fullName string) (*Team, error) {
	segments := strings.Split(fullName, "/")
	if segments[len(segments)-1] != name {
		return nil, fmt.Errorf("%w: full_name=%q name=%q", ErrTeamNameMismatch, fullName, name)
	}
	return &Team{Name: name, FullName: fullName}, nil
}

func (t *Team) AddUser(ref UserRef) {
	t.Users = append(t.Users, ref)
}

// ParentFullName returns the full name of the team's parent, or "" for a
// top-level team.
func ParentFullName(fullName string) string {
	idx := strings.LastIndex(fullName, "/")
	if idx < 0 {
		return ""
	}
	return fullName[:idx]
}

// User is the authoritative attribute record for one person. Optional scalar
// attributes use pointers so that "absent" and "explicitly false/zero" stay
// distinguishable; that distinction drives both default hoisting and the
// update diff.
type User struct {
	UserID                     int
	Username                   string
	AuthenticationProviderName string
	Email                      string
	FirstName                  string
	LastName                   string
	LocaleID                   *int
	Roles                      StringSet
	Active                     *bool
	AllowedIPList              StringSet
	CellPhoneNumber            string
	Country                    string
	ExpirationDate             string
	JobTitle                   string
	Other                      string
	PhoneNumber                string
}

func (u *User) Ref() UserRef {
	return UserRef{Username: u.Username, AuthenticationProviderName: u.AuthenticationProviderName}
}

// UserDefaults carries the file-level defaults from users.yml. They are
// applied when loading users and elided again when saving.
type UserDefaults struct {
	Active                     *bool
	AuthenticationProviderName string
	LocaleID                   *int
	Roles                      StringSet
}

// Model owns a set of teams and the user records they reference. The maps are
// derived indexes: they are never edited directly and are rebuilt whenever
// membership or team identifiers change.
type Model struct {
	Teams        []*Team
	Users        []*User
	UserDefaults UserDefaults

	teamMap   map[string]*Team
	userMap   map[UserRef]*User
	userTeams map[UserRef][]*Team
}

func New(teams []*Team, users []*User) *Model {
	m := &Model{Teams: teams, Users: users}
	m.Reindex(nil)
	return m
}

// Reindex rebuilds the derived maps from the owned collections. Duplicate
// team full names and duplicate user identities are appended to problems when
// a collector is supplied; the first occurrence wins in the index either way.
func (m *Model) Reindex(problems *[]Problem) {
	m.teamMap = make(map[string]*Team, len(m.Teams))
	for _, team := range m.Teams {
		if _, ok := m.teamMap[team.FullName]; ok {
			if problems != nil {
				*problems = append(*problems, DuplicateTeam{TeamFullName: team.FullName})
			}
			continue
		}
		m.teamMap[team.FullName] = team
	}
	m.userMap = make(map[UserRef]*User, len(m.Users))
	for _, user := range m.Users {
		ref := user.Ref()
		if _, ok := m.userMap[ref]; ok {
			if problems != nil {
				*problems = append(*problems, DuplicateUser{User: ref})
			}
			continue
		}
		m.userMap[ref] = user
	}
	m.rebuildUserTeams()
}

func (m *Model) rebuildUserTeams() {
	m.userTeams = make(map[UserRef][]*Team)
	for _, team := range m.Teams {
		for _, ref := range team.Users {
			m.userTeams[ref] = append(m.userTeams[ref], team)
		}
	}
}

func (m *Model) TeamByFullName(fullName string) (*Team, bool) {
	t, ok := m.teamMap[fullName]
	return t, ok
}

func (m *Model) UserByRef(ref UserRef) (*User, bool) {
	u, ok := m.userMap[ref]
	return u, ok
}

// TeamsOf returns the teams that reference the user, in membership order.
func (m *Model) TeamsOf(ref UserRef) []*Team {
	return m.userTeams[ref]
}

// AddUser appends a user to the owned collection and refreshes the indexes.
func (m *Model) AddUser(user *User) {
	m.Users = append(m.Users, user)
	m.userMap[user.Ref()] = user
}

// TeamFullNames returns the full names of all indexed teams, unsorted.
func (m *Model) TeamFullNames() []string {
	out := make([]string, 0, len(m.teamMap))
	for name := range m.teamMap {
		out = append(out, name)
	}
	return out
}

// UserRefs returns the identities of all indexed users, unsorted.
func (m *Model) UserRefs() []UserRef {
	out := make([]UserRef, 0, len(m.userMap))
	for ref := range m.userMap {
		out = append(out, ref)
	}
	return out
}

// UserTeamIDs resolves the set of remote team identifiers the user belongs
// to. Membership in a team whose id has not been assigned yet is an error;
// callers must carry over or create team ids first.
func (m *Model) UserTeamIDs(ref UserRef) (map[int]struct{}, error) {
	ids := make(map[int]struct{})
	for _, team := range m.userTeams[ref] {
		if team.TeamID == 0 {
			return nil, fmt.Errorf("%w: team=%q user=%s", ErrUnknownTeamID, team.FullName, ref)
		}
		ids[team.TeamID] = struct{}{}
	}
	return ids, nil
}

// CarryOverTeamIDs copies team identifiers from other for every full name
// present in both models, so pre-existing teams are never mistaken for new
// ones when the models are diffed.
func (m *Model) CarryOverTeamIDs(other *Model) {
	for _, team := range other.Teams {
		if mine, ok := m.teamMap[team.FullName]; ok {
			mine.TeamID = team.TeamID
		}
	}
}

// SortedTeamFullNames returns all team full names in ascending lexical order.
// Because a child's full name has its parent's full name as a proper prefix,
// this order visits every parent before any of its children.
func (m *Model) SortedTeamFullNames() []string {
	names := m.TeamFullNames()
	sort.Strings(names)
	return names
}
