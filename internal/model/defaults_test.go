package model_test

import (
	"testing"

	"github.com/tmuras/teamctl/internal/model"
	"github.com/tmuras/teamctl/internal/testutil/testlog"
)

func teamWithMembers(t *testing.T, users ...*model.User) (*model.Model, *model.Team) {
	t.Helper()
	team, err := model.NewTeam("Org", "Org")
	if err != nil {
		t.Fatalf("new team: %v", err)
	}
	for _, u := range users {
		team.AddUser(u.Ref())
	}
	return model.New([]*model.Team{team}, users), team
}

func TestDenormalizeFillsAbsentAttributes(t *testing.T) {
	testlog.Start(t)
	alice := &model.User{Username: "alice", AuthenticationProviderName: "LDAP"}
	bob := &model.User{
		Username:                   "bob",
		AuthenticationProviderName: "LDAP",
		LocaleID:                   intPtr(2),
		Active:                     boolPtr(false),
	}
	m, team := teamWithMembers(t, alice, bob)
	team.Defaults = model.TeamDefaults{
		Active:   boolPtr(true),
		LocaleID: intPtr(1),
		Roles:    model.NewStringSet("Scanner"),
	}

	problems := model.Denormalize(m, team)
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}

	if alice.LocaleID == nil || *alice.LocaleID != 1 {
		t.Fatalf("expected default locale on alice, got %v", alice.LocaleID)
	}
	if alice.Active == nil || !*alice.Active {
		t.Fatalf("expected default active on alice, got %v", alice.Active)
	}
	if !alice.Roles.Contains("Scanner") {
		t.Fatalf("expected default roles on alice, got %v", alice.Roles.Sorted())
	}
	// Explicit values survive, including explicit false.
	if *bob.LocaleID != 2 {
		t.Fatalf("expected bob to keep locale 2, got %d", *bob.LocaleID)
	}
	if *bob.Active {
		t.Fatalf("expected bob to keep active=false")
	}
}

func TestDenormalizeSharedDefaultSetsAreIndependent(t *testing.T) {
	testlog.Start(t)
	alice := &model.User{Username: "alice", AuthenticationProviderName: "LDAP"}
	bob := &model.User{Username: "bob", AuthenticationProviderName: "LDAP"}
	m, team := teamWithMembers(t, alice, bob)
	team.Defaults.Roles = model.NewStringSet("Scanner")

	model.Denormalize(m, team)
	alice.Roles.Add("Admin")

	if bob.Roles.Contains("Admin") {
		t.Fatalf("default set was shared between members")
	}
	if team.Defaults.Roles.Contains("Admin") {
		t.Fatalf("default set was shared with the team")
	}
}

func TestDenormalizeMissingDefaultAttribute(t *testing.T) {
	testlog.Start(t)
	alice := &model.User{Username: "alice", AuthenticationProviderName: "LDAP"}
	m, team := teamWithMembers(t, alice)

	problems := model.Denormalize(m, team)

	var missing []string
	for _, p := range problems {
		rec, ok := p.(model.MissingDefaultAttribute)
		if !ok {
			t.Fatalf("expected MissingDefaultAttribute, got %T", p)
		}
		missing = append(missing, rec.Attribute)
	}
	// Mandatory hoistable attributes with neither value nor default.
	want := map[string]bool{model.FieldActive: true, model.FieldLocaleID: true}
	if len(missing) != len(want) {
		t.Fatalf("unexpected attributes: %v", missing)
	}
	for _, attr := range missing {
		if !want[attr] {
			t.Fatalf("unexpected attribute %q", attr)
		}
	}
}

func TestNormalizePromotesUnanimousValues(t *testing.T) {
	testlog.Start(t)
	alice := &model.User{
		Username: "alice", AuthenticationProviderName: "LDAP",
		LocaleID: intPtr(1), Active: boolPtr(true), Roles: model.NewStringSet("Scanner"),
	}
	bob := &model.User{
		Username: "bob", AuthenticationProviderName: "LDAP",
		LocaleID: intPtr(1), Active: boolPtr(true), Roles: model.NewStringSet("Scanner"),
	}
	m, team := teamWithMembers(t, alice, bob)

	model.Normalize(m, team)

	if team.Defaults.LocaleID == nil || *team.Defaults.LocaleID != 1 {
		t.Fatalf("expected promoted locale, got %v", team.Defaults.LocaleID)
	}
	if team.Defaults.Active == nil || !*team.Defaults.Active {
		t.Fatalf("expected promoted active, got %v", team.Defaults.Active)
	}
	if !team.Defaults.Roles.Contains("Scanner") {
		t.Fatalf("expected promoted roles, got %v", team.Defaults.Roles.Sorted())
	}
	if alice.LocaleID != nil || bob.LocaleID != nil {
		t.Fatalf("expected locale cleared from members")
	}
	if !alice.Roles.Empty() || !bob.Roles.Empty() {
		t.Fatalf("expected roles cleared from members")
	}
	// Identity fields are promoted but never cleared from the user records.
	if team.Defaults.AuthenticationProviderName != "LDAP" {
		t.Fatalf("expected promoted provider, got %q", team.Defaults.AuthenticationProviderName)
	}
	if alice.AuthenticationProviderName != "LDAP" || bob.AuthenticationProviderName != "LDAP" {
		t.Fatalf("provider must stay on the user records")
	}
}

func TestNormalizeOutlierDisablesPromotion(t *testing.T) {
	testlog.Start(t)
	alice := &model.User{Username: "alice", AuthenticationProviderName: "LDAP", LocaleID: intPtr(1)}
	bob := &model.User{Username: "bob", AuthenticationProviderName: "LDAP", LocaleID: intPtr(2)}
	carol := &model.User{Username: "carol", AuthenticationProviderName: "LDAP"}
	m, team := teamWithMembers(t, alice, bob, carol)

	model.Normalize(m, team)

	if team.Defaults.LocaleID != nil {
		t.Fatalf("expected no promotion with an outlier, got %v", *team.Defaults.LocaleID)
	}
	if *alice.LocaleID != 1 || *bob.LocaleID != 2 {
		t.Fatalf("members must keep their values")
	}
}

func TestNormalizeEmptyTeamIsNoop(t *testing.T) {
	testlog.Start(t)
	team, _ := model.NewTeam("Org", "Org")
	m := model.New([]*model.Team{team}, nil)

	model.Normalize(m, team)

	if team.Defaults.Active != nil || team.Defaults.LocaleID != nil ||
		team.Defaults.AuthenticationProviderName != "" ||
		!team.Defaults.Roles.Empty() || !team.Defaults.AllowedIPList.Empty() {
		t.Fatalf("empty team must not gain defaults: %+v", team.Defaults)
	}
}

func TestNormalizeDenormalizeRoundTrip(t *testing.T) {
	testlog.Start(t)
	alice := &model.User{
		Username: "alice", AuthenticationProviderName: "LDAP",
		LocaleID: intPtr(1), Active: boolPtr(true),
		Roles: model.NewStringSet("Scanner", "Viewer"),
	}
	bob := &model.User{
		Username: "bob", AuthenticationProviderName: "LDAP",
		LocaleID: intPtr(1), Active: boolPtr(true),
		Roles: model.NewStringSet("Scanner", "Viewer"),
	}
	m, team := teamWithMembers(t, alice, bob)

	model.Normalize(m, team)
	if problems := model.Denormalize(m, team); len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}

	for _, u := range []*model.User{alice, bob} {
		if u.LocaleID == nil || *u.LocaleID != 1 {
			t.Fatalf("round trip lost locale for %q", u.Username)
		}
		if u.Active == nil || !*u.Active {
			t.Fatalf("round trip lost active for %q", u.Username)
		}
		if !u.Roles.Equal(model.NewStringSet("Scanner", "Viewer")) {
			t.Fatalf("round trip lost roles for %q: %v", u.Username, u.Roles.Sorted())
		}
	}
}
