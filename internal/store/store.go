// Package store persists a model as a directory of YAML files: one file per
// team under teams/, mirroring the team hierarchy, and the full user list in
// users/users.yml. Files are written with sorted lists and elided defaults
// so that repeated extracts of the same state produce identical trees.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/tmuras/teamctl/internal/model"
)

const (
	teamsDir      = "teams"
	usersDir      = "users"
	usersFileName = "users.yml"
)

var ErrDataDirRequired = errors.New("store: data directory required")

var whitespaceRun = regexp.MustCompile(`\s+`)

type teamFile struct {
	Name                              string        `yaml:"name"`
	FullName                          string        `yaml:"full_name"`
	DefaultActive                     *bool         `yaml:"default_active,omitempty"`
	DefaultAuthenticationProviderName string        `yaml:"default_authentication_provider_name,omitempty"`
	DefaultLocaleID                   *int          `yaml:"default_locale_id,omitempty"`
	DefaultRoles                      []string      `yaml:"default_roles,omitempty"`
	DefaultAllowedIPList              []string      `yaml:"default_allowed_ip_list,omitempty"`
	Users                             []teamUserRef `yaml:"users,omitempty"`
}

type teamUserRef struct {
	Username                   string `yaml:"username"`
	AuthenticationProviderName string `yaml:"authentication_provider_name,omitempty"`
}

type usersFile struct {
	DefaultActive                     *bool       `yaml:"default_active,omitempty"`
	DefaultAuthenticationProviderName string      `yaml:"default_authentication_provider_name,omitempty"`
	DefaultLocaleID                   *int        `yaml:"default_locale_id,omitempty"`
	DefaultRoles                      []string    `yaml:"default_roles,omitempty"`
	Users                             []userEntry `yaml:"users"`
}

type userEntry struct {
	Username                   string   `yaml:"username"`
	AuthenticationProviderName string   `yaml:"authentication_provider_name,omitempty"`
	Email                      string   `yaml:"email,omitempty"`
	FirstName                  string   `yaml:"first_name,omitempty"`
	LastName                   string   `yaml:"last_name,omitempty"`
	LocaleID                   *int     `yaml:"locale_id,omitempty"`
	Roles                      []string `yaml:"roles,omitempty"`
	Active                     *bool    `yaml:"active,omitempty"`
	AllowedIPList              []string `yaml:"allowed_ip_list,omitempty"`
	CellPhoneNumber            string   `yaml:"cell_phone_number,omitempty"`
	Country                    string   `yaml:"country,omitempty"`
	ExpirationDate             string   `yaml:"expiration_date,omitempty"`
	JobTitle                   string   `yaml:"job_title,omitempty"`
	Other                      string   `yaml:"other,omitempty"`
	PhoneNumber                string   `yaml:"phone_number,omitempty"`
}

// Load reads the whole data directory into a model. File-level defaults from
// users.yml are applied to each user here; team-level default hoisting is the
// model's concern and runs afterwards (Denormalize).
func Load(dir string) (*model.Model, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrDataDirRequired
	}

	users, defaults, err := loadUsers(filepath.Join(dir, usersDir, usersFileName))
	if err != nil {
		return nil, err
	}
	teams, err := loadTeams(filepath.Join(dir, teamsDir))
	if err != nil {
		return nil, err
	}

	m := model.New(teams, users)
	m.UserDefaults = defaults
	log.Debug().Str("dir", dir).Int("teams", len(teams)).Int("users", len(users)).Msg("store.Load done")
	return m, nil
}

func loadUsers(path string) ([]*model.User, model.UserDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, model.UserDefaults{}, nil
		}
		return nil, model.UserDefaults{}, fmt.Errorf("store: read %s: %w", path, err)
	}
	var file usersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, model.UserDefaults{}, fmt.Errorf("store: parse %s: %w", path, err)
	}

	defaults := model.UserDefaults{
		Active:                     file.DefaultActive,
		AuthenticationProviderName: file.DefaultAuthenticationProviderName,
		LocaleID:                   file.DefaultLocaleID,
	}
	if len(file.DefaultRoles) > 0 {
		defaults.Roles = model.NewStringSet(file.DefaultRoles...)
	}

	users := make([]*model.User, 0, len(file.Users))
	for _, entry := range file.Users {
		user := &model.User{
			Username:                   entry.Username,
			AuthenticationProviderName: entry.AuthenticationProviderName,
			Email:                      entry.Email,
			FirstName:                  entry.FirstName,
			LastName:                   entry.LastName,
			LocaleID:                   entry.LocaleID,
			Active:                     entry.Active,
			CellPhoneNumber:            entry.CellPhoneNumber,
			Country:                    entry.Country,
			ExpirationDate:             entry.ExpirationDate,
			JobTitle:                   entry.JobTitle,
			Other:                      entry.Other,
			PhoneNumber:                entry.PhoneNumber,
		}
		if len(entry.Roles) > 0 {
			user.Roles = model.NewStringSet(entry.Roles...)
		}
		if len(entry.AllowedIPList) > 0 {
			user.AllowedIPList = model.NewStringSet(entry.AllowedIPList...)
		}
		applyUserDefaults(user, defaults)
		users = append(users, user)
	}
	return users, defaults, nil
}

// applyUserDefaults fills absent attributes from the file-level defaults.
func applyUserDefaults(user *model.User, defaults model.UserDefaults) {
	if user.Active == nil && defaults.Active != nil {
		v := *defaults.Active
		user.Active = &v
	}
	if user.AuthenticationProviderName == "" {
		user.AuthenticationProviderName = defaults.AuthenticationProviderName
	}
	if user.LocaleID == nil && defaults.LocaleID != nil {
		v := *defaults.LocaleID
		user.LocaleID = &v
	}
	if user.Roles.Empty() && !defaults.Roles.Empty() {
		user.Roles = defaults.Roles.Clone()
	}
}

func loadTeams(dir string) ([]*model.Team, error) {
	var teams []*model.Team
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(d.Name())
		if ext != ".yml" && ext != ".yaml" {
			return nil
		}
		team, err := loadTeamFile(path)
		if err != nil {
			return err
		}
		teams = append(teams, team)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: walk %s: %w", dir, err)
	}
	return teams, nil
}

func loadTeamFile(path string) (*model.Team, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	var file teamFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", path, err)
	}

	team, err := model.NewTeam(file.Name, file.FullName)
	if err != nil {
		return nil, fmt.Errorf("store: %s: %w", path, err)
	}
	team.Defaults = model.TeamDefaults{
		Active:                     file.DefaultActive,
		AuthenticationProviderName: file.DefaultAuthenticationProviderName,
		LocaleID:                   file.DefaultLocaleID,
	}
	if len(file.DefaultRoles) > 0 {
		team.Defaults.Roles = model.NewStringSet(file.DefaultRoles...)
	}
	if len(file.DefaultAllowedIPList) > 0 {
		team.Defaults.AllowedIPList = model.NewStringSet(file.DefaultAllowedIPList...)
	}
	for _, ref := range file.Users {
		provider := ref.AuthenticationProviderName
		if provider == "" {
			provider = team.Defaults.AuthenticationProviderName
		}
		team.AddUser(model.UserRef{Username: ref.Username, AuthenticationProviderName: provider})
	}
	return team, nil
}

// Save normalizes every team's defaults and writes the whole model back out,
// replacing the teams/ subtree so deleted teams leave no stale files behind.
func Save(dir string, m *model.Model) error {
	if strings.TrimSpace(dir) == "" {
		return ErrDataDirRequired
	}
	model.NormalizeAll(m)

	teamsRoot := filepath.Join(dir, teamsDir)
	if err := os.RemoveAll(teamsRoot); err != nil {
		return fmt.Errorf("store: clear %s: %w", teamsRoot, err)
	}
	for _, fullName := range m.SortedTeamFullNames() {
		team, _ := m.TeamByFullName(fullName)
		if err := saveTeamFile(teamsRoot, team); err != nil {
			return err
		}
	}
	if err := SaveUsers(dir, m); err != nil {
		return err
	}
	log.Debug().Str("dir", dir).Int("teams", len(m.Teams)).Int("users", len(m.Users)).Msg("store.Save done")
	return nil
}

// TeamFilePath returns the path of a team's file relative to the teams root:
// the full name with each whitespace run replaced by a dash, one directory
// per path segment, the leaf suffixed ".yml".
func TeamFilePath(fullName string) string {
	segments := strings.Split(fullName, "/")
	for i, seg := range segments {
		segments[i] = whitespaceRun.ReplaceAllString(seg, "-")
	}
	return filepath.Join(segments...) + ".yml"
}

func saveTeamFile(root string, team *model.Team) error {
	file := teamFile{
		Name:                              team.Name,
		FullName:                          team.FullName,
		DefaultActive:                     team.Defaults.Active,
		DefaultAuthenticationProviderName: team.Defaults.AuthenticationProviderName,
		DefaultLocaleID:                   team.Defaults.LocaleID,
		DefaultRoles:                      team.Defaults.Roles.Sorted(),
		DefaultAllowedIPList:              team.Defaults.AllowedIPList.Sorted(),
	}

	refs := append([]model.UserRef(nil), team.Users...)
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Username != refs[j].Username {
			return refs[i].Username < refs[j].Username
		}
		return refs[i].AuthenticationProviderName < refs[j].AuthenticationProviderName
	})
	for _, ref := range refs {
		entry := teamUserRef{Username: ref.Username}
		if ref.AuthenticationProviderName != team.Defaults.AuthenticationProviderName {
			entry.AuthenticationProviderName = ref.AuthenticationProviderName
		}
		file.Users = append(file.Users, entry)
	}

	path := filepath.Join(root, TeamFilePath(team.FullName))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: mkdir for %s: %w", path, err)
	}
	return writeYAML(path, file)
}

// SaveUsers writes users/users.yml only, eliding per-user values that equal
// the file-level defaults. The validator's directory-lookup fallback uses
// this to persist synthesized users without touching the team files.
func SaveUsers(dir string, m *model.Model) error {
	if strings.TrimSpace(dir) == "" {
		return ErrDataDirRequired
	}
	defaults := m.UserDefaults
	file := usersFile{
		DefaultActive:                     defaults.Active,
		DefaultAuthenticationProviderName: defaults.AuthenticationProviderName,
		DefaultLocaleID:                   defaults.LocaleID,
		DefaultRoles:                      defaults.Roles.Sorted(),
	}

	users := append([]*model.User(nil), m.Users...)
	sort.Slice(users, func(i, j int) bool {
		if users[i].Username != users[j].Username {
			return users[i].Username < users[j].Username
		}
		return users[i].AuthenticationProviderName < users[j].AuthenticationProviderName
	})
	for _, user := range users {
		file.Users = append(file.Users, elideUserDefaults(user, defaults))
	}

	path := filepath.Join(dir, usersDir, usersFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: mkdir for %s: %w", path, err)
	}
	return writeYAML(path, file)
}

// elideUserDefaults builds the on-disk entry for a user, dropping attributes
// that match the file-level defaults so they round-trip through
// applyUserDefaults on the next load.
func elideUserDefaults(user *model.User, defaults model.UserDefaults) userEntry {
	entry := userEntry{
		Username:                   user.Username,
		AuthenticationProviderName: user.AuthenticationProviderName,
		Email:                      user.Email,
		FirstName:                  user.FirstName,
		LastName:                   user.LastName,
		LocaleID:                   user.LocaleID,
		Roles:                      user.Roles.Sorted(),
		Active:                     user.Active,
		AllowedIPList:              user.AllowedIPList.Sorted(),
		CellPhoneNumber:            user.CellPhoneNumber,
		Country:                    user.Country,
		ExpirationDate:             user.ExpirationDate,
		JobTitle:                   user.JobTitle,
		Other:                      user.Other,
		PhoneNumber:                user.PhoneNumber,
	}
	if defaults.Active != nil && user.Active != nil && *user.Active == *defaults.Active {
		entry.Active = nil
	}
	if user.AuthenticationProviderName == defaults.AuthenticationProviderName {
		entry.AuthenticationProviderName = ""
	}
	if defaults.LocaleID != nil && user.LocaleID != nil && *user.LocaleID == *defaults.LocaleID {
		entry.LocaleID = nil
	}
	if !defaults.Roles.Empty() && user.Roles.Equal(defaults.Roles) {
		entry.Roles = nil
	}
	return entry
}

func writeYAML(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: create %s: %w", path, err)
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("store: encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("store: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", path, err)
	}
	return nil
}
