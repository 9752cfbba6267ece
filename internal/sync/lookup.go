package sync

import (
	"context"
	"fmt"

	"github.com/tmuras/teamctl/internal/directory"
	"github.com/tmuras/teamctl/internal/model"
)

// LDAPLookup resolves unreferenced usernames against the LDAP server behind
// the reference's authentication provider. It adapts the directory's search
// endpoint to the validator's lookup interface.
type LDAPLookup struct {
	Client  directory.Client
	Catalog *directory.Catalog
}

func (l *LDAPLookup) FindUserEntries(ctx context.Context, ref model.UserRef) ([]model.UserEntry, error) {
	serverID, err := l.Catalog.LDAPServerIDFromName(ref.AuthenticationProviderName)
	if err != nil {
		return nil, fmt.Errorf("sync: lookup %s: %w", ref, err)
	}
	entries, err := l.Client.GetUserEntriesBySearchCriteria(ctx, serverID, ref.Username)
	if err != nil {
		return nil, fmt.Errorf("sync: lookup %s: %w", ref, err)
	}
	out := make([]model.UserEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.UserEntry{
			Username:  e.Username,
			Email:     e.Email,
			FirstName: e.FirstName,
			LastName:  e.LastName,
		})
	}
	return out, nil
}
