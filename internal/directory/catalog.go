package directory

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnknownRoleName     = errors.New("directory: unknown role name")
	ErrUnknownRoleID       = errors.New("directory: unknown role id")
	ErrUnknownProviderName = errors.New("directory: unknown authentication provider name")
	ErrUnknownProviderID   = errors.New("directory: unknown authentication provider id")
	ErrUnknownLDAPServer   = errors.New("directory: unknown ldap server name")
)

// Catalog is the bidirectional lookup between human-readable names and the
// directory's opaque identifiers for roles, authentication providers and
// LDAP servers. It is fetched once per run and passed explicitly to the
// validator and the reconciliation engine. Lookup failures are fatal: an
// unknown name or id would otherwise turn into a remote call carrying a
// meaningless identifier.
type Catalog struct {
	roles       []Role
	providers   []Provider
	ldapServers []LDAPServer
}

// LoadCatalog fetches the full role, provider and LDAP server lists.
func LoadCatalog(ctx context.Context, client Client) (*Catalog, error) {
	roles, err := client.GetAllRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory: load roles: %w", err)
	}
	providers, err := client.GetAllAuthenticationProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory: load authentication providers: %w", err)
	}
	ldapServers, err := client.GetAllLDAPServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory: load ldap servers: %w", err)
	}
	return &Catalog{roles: roles, providers: providers, ldapServers: ldapServers}, nil
}

// NewCatalog builds a catalog from already-fetched lists. Tests use it.
func NewCatalog(roles []Role, providers []Provider, ldapServers []LDAPServer) *Catalog {
	return &Catalog{roles: roles, providers: providers, ldapServers: ldapServers}
}

func (c *Catalog) RoleIDFromName(name string) (int, error) {
	for _, r := range c.roles {
		if r.Name == name {
			return r.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRoleName, name)
}

func (c *Catalog) RoleNameFromID(id int) (string, error) {
	for _, r := range c.roles {
		if r.ID == id {
			return r.Name, nil
		}
	}
	return "", fmt.Errorf("%w: %d", ErrUnknownRoleID, id)
}

func (c *Catalog) ValidRoleName(name string) bool {
	_, err := c.RoleIDFromName(name)
	return err == nil
}

func (c *Catalog) ProviderIDFromName(name string) (int, error) {
	for _, p := range c.providers {
		if p.Name == name {
			return p.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownProviderName, name)
}

func (c *Catalog) ProviderNameFromID(id int) (string, error) {
	for _, p := range c.providers {
		if p.ID == id {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("%w: %d", ErrUnknownProviderID, id)
}

func (c *Catalog) ValidProviderName(name string) bool {
	_, err := c.ProviderIDFromName(name)
	return err == nil
}

// LDAPServerIDFromName maps an authentication provider's name to the LDAP
// server id used by the user search endpoint.
func (c *Catalog) LDAPServerIDFromName(name string) (int, error) {
	for _, s := range c.ldapServers {
		if s.Name == name {
			return s.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLDAPServer, name)
}

// RoleIDsFromNames resolves a sorted name list to identifiers, failing on
// the first unknown name.
func (c *Catalog) RoleIDsFromNames(names []string) ([]int, error) {
	ids := make([]int, 0, len(names))
	for _, name := range names {
		id, err := c.RoleIDFromName(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
