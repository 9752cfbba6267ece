package sync_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/tmuras/teamctl/internal/directory"
	"github.com/tmuras/teamctl/internal/model"
	"github.com/tmuras/teamctl/internal/sync"
	"github.com/tmuras/teamctl/internal/testutil/testlog"
)

func boolPtr(v bool) *bool { return &v }
func intPtr(v int) *int    { return &v }

// fakeClient records every mutating call and serves team ids from a
// preloaded name/id table.
type fakeClient struct {
	teamIDs map[string]int
	teams   []directory.TeamRecord
	users   []directory.UserRecord
	entries map[string][]directory.UserEntry

	calls   []string
	updates map[int]directory.UserUpdate
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		teamIDs: map[string]int{},
		entries: map[string][]directory.UserEntry{},
		updates: map[int]directory.UserUpdate{},
	}
}

func (c *fakeClient) record(format string, args ...any) {
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

func (c *fakeClient) GetAllTeams(context.Context) ([]directory.TeamRecord, error) {
	return c.teams, nil
}

func (c *fakeClient) GetAllUsers(context.Context) ([]directory.UserRecord, error) {
	return c.users, nil
}

func (c *fakeClient) GetAllRoles(context.Context) ([]directory.Role, error) {
	return []directory.Role{{ID: 1, Name: "Scanner"}, {ID: 2, Name: "Admin"}, {ID: 3, Name: "Reviewer"}}, nil
}

func (c *fakeClient) GetAllAuthenticationProviders(context.Context) ([]directory.Provider, error) {
	return []directory.Provider{{ID: 10, Name: "LDAP"}, {ID: 11, Name: "Application"}}, nil
}

func (c *fakeClient) GetAllLDAPServers(context.Context) ([]directory.LDAPServer, error) {
	return []directory.LDAPServer{{ID: 5, Name: "LDAP"}}, nil
}

func (c *fakeClient) GetTeamIDByFullName(_ context.Context, fullName string) (int, error) {
	id, ok := c.teamIDs[fullName]
	if !ok {
		return 0, fmt.Errorf("%w: %q", directory.ErrTeamNotFound, fullName)
	}
	return id, nil
}

func (c *fakeClient) CreateTeam(_ context.Context, name string, parentID int) error {
	c.record("create_team %s parent=%d", name, parentID)
	return nil
}

func (c *fakeClient) DeleteTeam(_ context.Context, id int) error {
	c.record("delete_team %d", id)
	return nil
}

func (c *fakeClient) CreateUser(_ context.Context, user directory.NewUser) error {
	c.record("create_user %s", user.Username)
	return nil
}

func (c *fakeClient) UpdateUser(_ context.Context, id int, update directory.UserUpdate) error {
	c.record("update_user %d", id)
	c.updates[id] = update
	return nil
}

func (c *fakeClient) DeleteUser(_ context.Context, id int) error {
	c.record("delete_user %d", id)
	return nil
}

func (c *fakeClient) GetUserEntriesBySearchCriteria(_ context.Context, serverID int, fragment string) ([]directory.UserEntry, error) {
	c.record("search %d %s", serverID, fragment)
	return c.entries[fragment], nil
}

func loadTestCatalog(t *testing.T, client directory.Client) *directory.Catalog {
	t.Helper()
	catalog, err := directory.LoadCatalog(context.Background(), client)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return catalog
}

func mustTeam(t *testing.T, name, fullName string, id int) *model.Team {
	t.Helper()
	team, err := model.NewTeam(name, fullName)
	if err != nil {
		t.Fatalf("new team: %v", err)
	}
	team.TeamID = id
	return team
}

func testUser(username string, id int) *model.User {
	return &model.User{
		UserID:                     id,
		Username:                   username,
		AuthenticationProviderName: "LDAP",
		Email:                      username + "@example.com",
		FirstName:                  "First",
		LastName:                   "Last",
		LocaleID:                   intPtr(1),
		Active:                     boolPtr(true),
		Roles:                      model.NewStringSet("Scanner"),
	}
}

func TestApplyCreatesParentsBeforeChildren(t *testing.T) {
	testlog.Start(t)
	client := newFakeClient()
	client.teamIDs = map[string]int{"A": 100, "A/B": 101}
	catalog := loadTestCatalog(t, client)

	current := model.New(nil, nil)
	child := mustTeam(t, "B", "A/B", 0)
	parent := mustTeam(t, "A", "A", 0)
	desired := model.New([]*model.Team{child, parent}, nil)

	engine := &sync.Engine{Client: client, Catalog: catalog}
	actions, err := engine.Apply(context.Background(), current, desired)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	want := []string{"create_team A parent=0", "create_team B parent=100"}
	if len(client.calls) != len(want) {
		t.Fatalf("unexpected calls: %v", client.calls)
	}
	for i := range want {
		if client.calls[i] != want[i] {
			t.Fatalf("unexpected call order: %v", client.calls)
		}
	}
	if parent.TeamID != 100 || child.TeamID != 101 {
		t.Fatalf("ids not read back: parent=%d child=%d", parent.TeamID, child.TeamID)
	}
	s := sync.Summarize(actions)
	if s.TeamsCreated != 2 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestApplyDeletesChildrenBeforeParents(t *testing.T) {
	testlog.Start(t)
	client := newFakeClient()
	catalog := loadTestCatalog(t, client)

	parent := mustTeam(t, "A", "A", 100)
	child := mustTeam(t, "B", "A/B", 101)
	current := model.New([]*model.Team{parent, child}, nil)
	desired := model.New(nil, nil)

	engine := &sync.Engine{Client: client, Catalog: catalog}
	if _, err := engine.Apply(context.Background(), current, desired); err != nil {
		t.Fatalf("apply: %v", err)
	}

	want := []string{"delete_team 101", "delete_team 100"}
	if len(client.calls) != 2 || client.calls[0] != want[0] || client.calls[1] != want[1] {
		t.Fatalf("unexpected calls: %v", client.calls)
	}
}

func TestApplyCreatesUpdatesAndDeletesUsers(t *testing.T) {
	testlog.Start(t)
	client := newFakeClient()
	client.teamIDs = map[string]int{"Org/New": 201}
	catalog := loadTestCatalog(t, client)

	// Live: Org with alice and carol.
	curOrg := mustTeam(t, "Org", "Org", 200)
	alice := testUser("alice", 1)
	carol := testUser("carol", 2)
	curOrg.AddUser(alice.Ref())
	curOrg.AddUser(carol.Ref())
	current := model.New([]*model.Team{curOrg}, []*model.User{alice, carol})

	// Desired: Org plus Org/New; alice with a new email and moved into the
	// new team as well; bob created there; carol gone.
	wantOrg := mustTeam(t, "Org", "Org", 0)
	wantNew := mustTeam(t, "New", "Org/New", 0)
	alice2 := testUser("alice", 0)
	alice2.Email = "alice@new.example.com"
	bob := testUser("bob", 0)
	bob.Roles = model.NewStringSet("Reviewer")
	wantOrg.AddUser(alice2.Ref())
	wantNew.AddUser(alice2.Ref())
	wantNew.AddUser(bob.Ref())
	desired := model.New([]*model.Team{wantOrg, wantNew}, []*model.User{alice2, bob})

	engine := &sync.Engine{Client: client, Catalog: catalog}
	actions, err := engine.Apply(context.Background(), current, desired)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	s := sync.Summarize(actions)
	if s.TeamsCreated != 1 || s.UsersCreated != 1 || s.UsersUpdated != 1 || s.UsersDeleted != 1 || s.TeamsDeleted != 0 {
		t.Fatalf("unexpected summary: %+v (actions %v)", s, actions)
	}

	want := []string{
		"create_team New parent=200",
		"create_user bob",
		"update_user 1",
		"delete_user 2",
	}
	if len(client.calls) != len(want) {
		t.Fatalf("unexpected calls: %v", client.calls)
	}
	for i := range want {
		if client.calls[i] != want[i] {
			t.Fatalf("unexpected call order: %v", client.calls)
		}
	}

	update := client.updates[1]
	if update.Email == nil || *update.Email != "alice@new.example.com" {
		t.Fatalf("expected email change, got %+v", update)
	}
	if update.LocaleID != nil || update.Active != nil || update.RoleIDs != nil {
		t.Fatalf("unchanged fields must stay nil: %+v", update)
	}
	wantIDs := []int{200, 201}
	if len(update.TeamIDs) != 2 || update.TeamIDs[0] != wantIDs[0] || update.TeamIDs[1] != wantIDs[1] {
		t.Fatalf("expected team ids %v, got %v", wantIDs, update.TeamIDs)
	}
}

func TestApplyEquivalentEmptiesAreNoChange(t *testing.T) {
	testlog.Start(t)
	client := newFakeClient()
	catalog := loadTestCatalog(t, client)

	curOrg := mustTeam(t, "Org", "Org", 200)
	alice := testUser("alice", 1)
	alice.AllowedIPList = model.NewStringSet()
	alice.Country = ""
	curOrg.AddUser(alice.Ref())
	current := model.New([]*model.Team{curOrg}, []*model.User{alice})

	wantOrg := mustTeam(t, "Org", "Org", 0)
	alice2 := testUser("alice", 0)
	alice2.AllowedIPList = nil
	wantOrg.AddUser(alice2.Ref())
	desired := model.New([]*model.Team{wantOrg}, []*model.User{alice2})

	engine := &sync.Engine{Client: client, Catalog: catalog}
	actions, err := engine.Apply(context.Background(), current, desired)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("expected a converged plan, got %v", actions)
	}
	if len(client.calls) != 0 {
		t.Fatalf("expected no mutations, got %v", client.calls)
	}
}

func TestApplyDryRunIssuesNoMutations(t *testing.T) {
	testlog.Start(t)
	client := newFakeClient()
	catalog := loadTestCatalog(t, client)

	curOrg := mustTeam(t, "Org", "Org", 200)
	carol := testUser("carol", 2)
	curOrg.AddUser(carol.Ref())
	current := model.New([]*model.Team{curOrg}, []*model.User{carol})

	wantOrg := mustTeam(t, "Org", "Org", 0)
	wantNew := mustTeam(t, "New", "Org/New", 0)
	bob := testUser("bob", 0)
	wantNew.AddUser(bob.Ref())
	carol2 := testUser("carol", 0)
	carol2.Email = "carol@new.example.com"
	wantOrg.AddUser(carol2.Ref())
	wantNew.AddUser(carol2.Ref())
	desired := model.New([]*model.Team{wantOrg, wantNew}, []*model.User{bob, carol2})

	engine := &sync.Engine{Client: client, Catalog: catalog, DryRun: true}
	actions, err := engine.Apply(context.Background(), current, desired)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(client.calls) != 0 {
		t.Fatalf("dry run must not mutate: %v", client.calls)
	}
	s := sync.Summarize(actions)
	if s.TeamsCreated != 1 || s.UsersCreated != 1 || s.UsersUpdated != 1 {
		t.Fatalf("unexpected summary: %+v (actions %v)", s, actions)
	}
	// carol's membership points into the would-be-created team; the update
	// is still reported.
	found := false
	for _, a := range actions {
		if a.Kind == sync.ActionUpdateUser && a.User.Username == "carol" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected carol update in the plan: %v", actions)
	}
}

func TestApplyConvergedModelsProduceEmptyPlan(t *testing.T) {
	testlog.Start(t)
	client := newFakeClient()
	catalog := loadTestCatalog(t, client)

	mk := func(id int) *model.Model {
		org := mustTeam(t, "Org", "Org", 200)
		alice := testUser("alice", id)
		org.AddUser(alice.Ref())
		return model.New([]*model.Team{org}, []*model.User{alice})
	}
	engine := &sync.Engine{Client: client, Catalog: catalog}
	actions, err := engine.Apply(context.Background(), mk(1), mk(0))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(actions) != 0 || len(client.calls) != 0 {
		t.Fatalf("expected empty plan, got %v / %v", actions, client.calls)
	}
}
