package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tmuras/teamctl/internal/directory"
	"github.com/tmuras/teamctl/internal/model"
)

var ErrUnknownMembershipTeam = errors.New("sync: user references unknown team id")

// Retrieve projects the live directory into the in-memory model. Identifier
// lists on user records are resolved to names through the catalog; a name
// the catalog cannot resolve means the catalog and the user list were
// fetched against different directory states, so the whole retrieval fails
// rather than producing a partial model.
func Retrieve(ctx context.Context, client directory.Client, catalog *directory.Catalog) (*model.Model, error) {
	teamRecords, err := client.GetAllTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: retrieve teams: %w", err)
	}
	userRecords, err := client.GetAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: retrieve users: %w", err)
	}

	teams := make([]*model.Team, 0, len(teamRecords))
	byID := make(map[int]*model.Team, len(teamRecords))
	for _, rec := range teamRecords {
		team, err := model.NewTeam(rec.Name, rec.FullName)
		if err != nil {
			return nil, err
		}
		team.TeamID = rec.ID
		teams = append(teams, team)
		byID[rec.ID] = team
	}

	users := make([]*model.User, 0, len(userRecords))
	for _, rec := range userRecords {
		user, err := convertUser(rec, catalog)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
		for _, teamID := range rec.TeamIDs {
			team, ok := byID[teamID]
			if !ok {
				return nil, fmt.Errorf("%w: user=%q team_id=%d", ErrUnknownMembershipTeam, rec.Username, teamID)
			}
			team.AddUser(user.Ref())
		}
	}

	log.Debug().Int("teams", len(teams)).Int("users", len(users)).Msg("sync.Retrieve loaded directory state")
	return model.New(teams, users), nil
}

func convertUser(rec directory.UserRecord, catalog *directory.Catalog) (*model.User, error) {
	providerName, err := catalog.ProviderNameFromID(rec.AuthenticationProviderID)
	if err != nil {
		return nil, fmt.Errorf("sync: user %q: %w", rec.Username, err)
	}
	roles := model.NewStringSet()
	for _, roleID := range rec.RoleIDs {
		name, err := catalog.RoleNameFromID(roleID)
		if err != nil {
			return nil, fmt.Errorf("sync: user %q: %w", rec.Username, err)
		}
		roles.Add(name)
	}

	localeID := rec.LocaleID
	active := rec.Active
	return &model.User{
		UserID:                     rec.ID,
		Username:                   rec.Username,
		AuthenticationProviderName: providerName,
		Email:                      rec.Email,
		FirstName:                  rec.FirstName,
		LastName:                   rec.LastName,
		LocaleID:                   &localeID,
		Roles:                      roles,
		Active:                     &active,
		AllowedIPList:              model.NewStringSet(rec.AllowedIPList...),
		CellPhoneNumber:            rec.CellPhoneNumber,
		Country:                    rec.Country,
		ExpirationDate:             rec.ExpirationDate,
		JobTitle:                   rec.JobTitle,
		Other:                      rec.Other,
		PhoneNumber:                rec.PhoneNumber,
	}, nil
}
