// Package sync turns a current and a desired model into an ordered sequence
// of directory mutations. The ordering mechanism is lexical: because a
// child team's full name carries its parent's full name as a proper prefix,
// ascending order creates parents before children and descending order
// deletes children before parents. No separate dependency graph is built.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/tmuras/teamctl/internal/directory"
	"github.com/tmuras/teamctl/internal/model"
)

var ErrUnknownParentTeam = errors.New("sync: unknown parent team")

// ActionKind labels one planned directory mutation.
type ActionKind string

const (
	ActionCreateTeam ActionKind = "create_team"
	ActionDeleteTeam ActionKind = "delete_team"
	ActionCreateUser ActionKind = "create_user"
	ActionUpdateUser ActionKind = "update_user"
	ActionDeleteUser ActionKind = "delete_user"
)

// Action records one mutation the engine decided on, whether or not it was
// executed. Changed lists the update payload fields for ActionUpdateUser.
type Action struct {
	Kind    ActionKind
	Team    string
	User    model.UserRef
	Changed []string
}

// Engine diffs two models and issues the resulting mutations through the
// directory client, strictly sequentially: a team creation completes, and
// its assigned id is read back, before any operation that depends on that
// id is issued. With DryRun set every decision is still computed and
// recorded, but no mutating call leaves the process.
type Engine struct {
	Client  directory.Client
	Catalog *directory.Catalog
	DryRun  bool
}

// Summary counts the actions of one run.
type Summary struct {
	TeamsCreated int
	TeamsDeleted int
	UsersCreated int
	UsersUpdated int
	UsersDeleted int
}

// Apply reconciles the live directory (current) toward the configuration
// (desired). Phases run in the fixed order: team id carry-over, team
// creation, user creation, user updates, user deletion, team deletion. The
// first failing remote call aborts the remaining sequence; a later run
// re-diffs and resumes from whatever state the directory reached.
func (e *Engine) Apply(ctx context.Context, current, desired *model.Model) ([]Action, error) {
	desired.CarryOverTeamIDs(current)

	var actions []Action
	if err := e.createTeams(ctx, current, desired, &actions); err != nil {
		return actions, err
	}
	if err := e.createUsers(ctx, current, desired, &actions); err != nil {
		return actions, err
	}
	if err := e.updateUsers(ctx, current, desired, &actions); err != nil {
		return actions, err
	}
	if err := e.deleteUsers(ctx, current, desired, &actions); err != nil {
		return actions, err
	}
	if err := e.deleteTeams(ctx, current, desired, &actions); err != nil {
		return actions, err
	}

	s := Summarize(actions)
	log.Info().
		Int("teams_created", s.TeamsCreated).
		Int("teams_deleted", s.TeamsDeleted).
		Int("users_created", s.UsersCreated).
		Int("users_updated", s.UsersUpdated).
		Int("users_deleted", s.UsersDeleted).
		Bool("dry_run", e.DryRun).
		Msg("sync.Engine.Apply done")
	return actions, nil
}

// Summarize tallies a run's actions per kind.
func Summarize(actions []Action) Summary {
	var s Summary
	for _, a := range actions {
		switch a.Kind {
		case ActionCreateTeam:
			s.TeamsCreated++
		case ActionDeleteTeam:
			s.TeamsDeleted++
		case ActionCreateUser:
			s.UsersCreated++
		case ActionUpdateUser:
			s.UsersUpdated++
		case ActionDeleteUser:
			s.UsersDeleted++
		}
	}
	return s
}

func (e *Engine) createTeams(ctx context.Context, current, desired *model.Model, actions *[]Action) error {
	toCreate := missingNames(desired.TeamFullNames(), current)
	sort.Strings(toCreate)

	for _, fullName := range toCreate {
		team, _ := desired.TeamByFullName(fullName)
		parentID := 0
		if parentName := model.ParentFullName(fullName); parentName != "" {
			parent, ok := desired.TeamByFullName(parentName)
			if !ok {
				return fmt.Errorf("%w: %q needed by %q", ErrUnknownParentTeam, parentName, fullName)
			}
			parentID = parent.TeamID
		}

		log.Info().Str("team", fullName).Int("parent_id", parentID).Bool("dry_run", e.DryRun).Msg("sync.Engine create team")
		*actions = append(*actions, Action{Kind: ActionCreateTeam, Team: fullName})
		if e.DryRun {
			continue
		}
		if err := e.Client.CreateTeam(ctx, team.Name, parentID); err != nil {
			return fmt.Errorf("sync: create team %q: %w", fullName, err)
		}
		// The service assigns the id; read it back before anything
		// depends on it as a parent or a membership target.
		id, err := e.Client.GetTeamIDByFullName(ctx, fullName)
		if err != nil {
			return fmt.Errorf("sync: fetch id of created team %q: %w", fullName, err)
		}
		team.TeamID = id
	}
	return nil
}

func (e *Engine) deleteTeams(ctx context.Context, current, desired *model.Model, actions *[]Action) error {
	toDelete := missingNames(current.TeamFullNames(), desired)
	sort.Sort(sort.Reverse(sort.StringSlice(toDelete)))

	for _, fullName := range toDelete {
		team, _ := current.TeamByFullName(fullName)
		log.Info().Str("team", fullName).Int("team_id", team.TeamID).Bool("dry_run", e.DryRun).Msg("sync.Engine delete team")
		*actions = append(*actions, Action{Kind: ActionDeleteTeam, Team: fullName})
		if e.DryRun {
			continue
		}
		if err := e.Client.DeleteTeam(ctx, team.TeamID); err != nil {
			return fmt.Errorf("sync: delete team %q: %w", fullName, err)
		}
	}
	return nil
}

func (e *Engine) createUsers(ctx context.Context, current, desired *model.Model, actions *[]Action) error {
	var toCreate []model.UserRef
	for _, ref := range desired.UserRefs() {
		if _, ok := current.UserByRef(ref); !ok {
			toCreate = append(toCreate, ref)
		}
	}
	sortRefs(toCreate)

	for _, ref := range toCreate {
		log.Info().Stringer("user", ref).Bool("dry_run", e.DryRun).Msg("sync.Engine create user")
		*actions = append(*actions, Action{Kind: ActionCreateUser, User: ref})
		if e.DryRun {
			continue
		}
		payload, err := e.buildNewUser(desired, ref)
		if err != nil {
			return err
		}
		if err := e.Client.CreateUser(ctx, payload); err != nil {
			return fmt.Errorf("sync: create user %s: %w", ref, err)
		}
	}
	return nil
}

func (e *Engine) buildNewUser(desired *model.Model, ref model.UserRef) (directory.NewUser, error) {
	user, _ := desired.UserByRef(ref)
	providerID, err := e.Catalog.ProviderIDFromName(user.AuthenticationProviderName)
	if err != nil {
		return directory.NewUser{}, fmt.Errorf("sync: create user %s: %w", ref, err)
	}
	roleIDs, err := e.Catalog.RoleIDsFromNames(user.Roles.Sorted())
	if err != nil {
		return directory.NewUser{}, fmt.Errorf("sync: create user %s: %w", ref, err)
	}
	teamIDs, err := desired.UserTeamIDs(ref)
	if err != nil {
		return directory.NewUser{}, fmt.Errorf("sync: create user %s: %w", ref, err)
	}

	payload := directory.NewUser{
		Username:                 user.Username,
		Email:                    user.Email,
		FirstName:                user.FirstName,
		LastName:                 user.LastName,
		AuthenticationProviderID: providerID,
		RoleIDs:                  roleIDs,
		TeamIDs:                  sortedIDs(teamIDs),
		AllowedIPList:            user.AllowedIPList.Sorted(),
		CellPhoneNumber:          user.CellPhoneNumber,
		Country:                  user.Country,
		ExpirationDate:           user.ExpirationDate,
		JobTitle:                 user.JobTitle,
		Other:                    user.Other,
		PhoneNumber:              user.PhoneNumber,
	}
	if user.LocaleID != nil {
		payload.LocaleID = *user.LocaleID
	}
	if user.Active != nil {
		payload.Active = *user.Active
	}
	return payload, nil
}

func (e *Engine) deleteUsers(ctx context.Context, current, desired *model.Model, actions *[]Action) error {
	var toDelete []model.UserRef
	for _, ref := range current.UserRefs() {
		if _, ok := desired.UserByRef(ref); !ok {
			toDelete = append(toDelete, ref)
		}
	}
	sortRefs(toDelete)

	for _, ref := range toDelete {
		user, _ := current.UserByRef(ref)
		log.Info().Stringer("user", ref).Int("user_id", user.UserID).Bool("dry_run", e.DryRun).Msg("sync.Engine delete user")
		*actions = append(*actions, Action{Kind: ActionDeleteUser, User: ref})
		if e.DryRun {
			continue
		}
		if err := e.Client.DeleteUser(ctx, user.UserID); err != nil {
			return fmt.Errorf("sync: delete user %s: %w", ref, err)
		}
	}
	return nil
}

func (e *Engine) updateUsers(ctx context.Context, current, desired *model.Model, actions *[]Action) error {
	var shared []model.UserRef
	for _, ref := range desired.UserRefs() {
		if _, ok := current.UserByRef(ref); ok {
			shared = append(shared, ref)
		}
	}
	sortRefs(shared)

	for _, ref := range shared {
		cur, _ := current.UserByRef(ref)
		want, _ := desired.UserByRef(ref)

		changes, rolesChanged, err := model.UserDiff(cur, want)
		if err != nil {
			return err
		}

		curIDs, err := current.UserTeamIDs(ref)
		if err != nil {
			return err
		}
		teamsChanged := false
		var wantIDs map[int]struct{}
		wantIDs, err = desired.UserTeamIDs(ref)
		switch {
		case err == nil:
			teamsChanged = !model.TeamIDSetsEqual(curIDs, wantIDs)
		case e.DryRun && errors.Is(err, model.ErrUnknownTeamID):
			// Membership points at a team that would have been created by
			// this run; its id is unknown in a dry run but the set change
			// is certain.
			teamsChanged = true
		default:
			return err
		}

		if len(changes) == 0 && !rolesChanged && !teamsChanged {
			continue
		}

		update, changed, err := e.buildUserUpdate(changes, rolesChanged, teamsChanged, want, wantIDs)
		if err != nil {
			return fmt.Errorf("sync: update user %s: %w", ref, err)
		}
		log.Info().Stringer("user", ref).Strs("changed", changed).Bool("dry_run", e.DryRun).Msg("sync.Engine update user")
		*actions = append(*actions, Action{Kind: ActionUpdateUser, User: ref, Changed: changed})
		if e.DryRun {
			continue
		}
		if err := e.Client.UpdateUser(ctx, cur.UserID, update); err != nil {
			return fmt.Errorf("sync: update user %s: %w", ref, err)
		}
	}
	return nil
}

// buildUserUpdate maps field changes onto the wire payload. Only changed
// fields are populated; everything else stays nil and is omitted.
func (e *Engine) buildUserUpdate(changes []model.FieldChange, rolesChanged, teamsChanged bool, want *model.User, wantIDs map[int]struct{}) (directory.UserUpdate, []string, error) {
	var update directory.UserUpdate
	var changed []string

	for _, c := range changes {
		changed = append(changed, c.Field)
		switch c.Field {
		case model.FieldEmail:
			update.Email = stringPtr(c.Value)
		case model.FieldFirstName:
			update.FirstName = stringPtr(c.Value)
		case model.FieldLastName:
			update.LastName = stringPtr(c.Value)
		case model.FieldLocaleID:
			update.LocaleID = intPtr(c.Value)
		case model.FieldActive:
			update.Active = boolPtr(c.Value)
		case model.FieldAllowedIPList:
			update.AllowedIPList = setSlice(c.Value)
		case model.FieldCellPhoneNumber:
			update.CellPhoneNumber = stringPtr(c.Value)
		case model.FieldCountry:
			update.Country = stringPtr(c.Value)
		case model.FieldExpirationDate:
			update.ExpirationDate = stringPtr(c.Value)
		case model.FieldJobTitle:
			update.JobTitle = stringPtr(c.Value)
		case model.FieldOther:
			update.Other = stringPtr(c.Value)
		case model.FieldPhoneNumber:
			update.PhoneNumber = stringPtr(c.Value)
		default:
			return directory.UserUpdate{}, nil, fmt.Errorf("sync: unmapped field %q", c.Field)
		}
	}

	if rolesChanged {
		changed = append(changed, model.FieldRoles)
		roleIDs, err := e.Catalog.RoleIDsFromNames(want.Roles.Sorted())
		if err != nil {
			return directory.UserUpdate{}, nil, err
		}
		if roleIDs == nil {
			roleIDs = []int{}
		}
		update.RoleIDs = roleIDs
	}
	if teamsChanged {
		changed = append(changed, "team_ids")
		if wantIDs != nil {
			update.TeamIDs = sortedIDs(wantIDs)
		}
	}
	return update, changed, nil
}

func missingNames(names []string, in *model.Model) []string {
	var out []string
	for _, name := range names {
		if _, ok := in.TeamByFullName(name); !ok {
			out = append(out, name)
		}
	}
	return out
}

func sortRefs(refs []model.UserRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Username != refs[j].Username {
			return refs[i].Username < refs[j].Username
		}
		return refs[i].AuthenticationProviderName < refs[j].AuthenticationProviderName
	})
}

func sortedIDs(ids map[int]struct{}) []int {
	out := make([]int, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func stringPtr(v any) *string {
	s, _ := v.(string)
	return &s
}

func intPtr(v any) *int {
	p, _ := v.(*int)
	if p == nil {
		zero := 0
		return &zero
	}
	val := *p
	return &val
}

func boolPtr(v any) *bool {
	p, _ := v.(*bool)
	if p == nil {
		zero := false
		return &zero
	}
	val := *p
	return &val
}

func setSlice(v any) []string {
	set, _ := v.(model.StringSet)
	out := set.Sorted()
	if out == nil {
		out = []string{}
	}
	return out
}
