package directory

import "context"

// Client is the directory administration API consumed by the reconciler.
// Every call is a single blocking round trip; no retries are attempted, and
// a failure aborts whatever sequence the caller is running. Note that team
// creation returns no identifier: the service assigns one, and the caller
// fetches it back by full name before depending on it.
type Client interface {
	GetAllTeams(ctx context.Context) ([]TeamRecord, error)
	GetAllUsers(ctx context.Context) ([]UserRecord, error)
	GetAllRoles(ctx context.Context) ([]Role, error)
	GetAllAuthenticationProviders(ctx context.Context) ([]Provider, error)
	GetAllLDAPServers(ctx context.Context) ([]LDAPServer, error)

	GetTeamIDByFullName(ctx context.Context, fullName string) (int, error)
	CreateTeam(ctx context.Context, name string, parentID int) error
	DeleteTeam(ctx context.Context, id int) error

	CreateUser(ctx context.Context, user NewUser) error
	UpdateUser(ctx context.Context, id int, update UserUpdate) error
	DeleteUser(ctx context.Context, id int) error

	GetUserEntriesBySearchCriteria(ctx context.Context, ldapServerID int, usernameFragment string) ([]UserEntry, error)
}
