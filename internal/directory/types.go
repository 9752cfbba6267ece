// Package directory is the boundary to the remote identity/access-control
// service: the wire record types, the blocking client, and the once-per-run
// catalog that resolves role, provider and LDAP server names to the opaque
// identifiers the service understands.
package directory

// TeamRecord is a team as the directory reports it.
type TeamRecord struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"fullName"`
}

// UserRecord is a user as the directory reports it. Role and team
// memberships are carried as identifier lists; names exist only client-side.
type UserRecord struct {
	ID                       int      `json:"id"`
	Username                 string   `json:"userName"`
	Email                    string   `json:"email"`
	FirstName                string   `json:"firstName"`
	LastName                 string   `json:"lastName"`
	AuthenticationProviderID int      `json:"authenticationProviderId"`
	LocaleID                 int      `json:"localeId"`
	RoleIDs                  []int    `json:"roleIds"`
	TeamIDs                  []int    `json:"teamIds"`
	Active                   bool     `json:"active"`
	AllowedIPList            []string `json:"allowedIpList"`
	CellPhoneNumber          string   `json:"cellPhoneNumber"`
	Country                  string   `json:"country"`
	ExpirationDate           string   `json:"expirationDate"`
	JobTitle                 string   `json:"jobTitle"`
	Other                    string   `json:"other"`
	PhoneNumber              string   `json:"phoneNumber"`
}

// Role pairs a role name with its opaque identifier.
type Role struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Provider pairs an authentication provider name with its identifier.
type Provider struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// LDAPServer pairs an LDAP server name with its identifier. The directory
// associates each LDAP-backed authentication provider with one server.
type LDAPServer struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// UserEntry is one result of an LDAP-style user search.
type UserEntry struct {
	Username  string `json:"userName"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// NewUser is the payload for a user creation call. All memberships and roles
// are pre-resolved to identifiers.
type NewUser struct {
	Username                 string   `json:"userName"`
	Password                 string   `json:"password"`
	Email                    string   `json:"email"`
	FirstName                string   `json:"firstName"`
	LastName                 string   `json:"lastName"`
	AuthenticationProviderID int      `json:"authenticationProviderId"`
	LocaleID                 int      `json:"localeId"`
	RoleIDs                  []int    `json:"roleIds"`
	TeamIDs                  []int    `json:"teamIds"`
	Active                   bool     `json:"active"`
	AllowedIPList            []string `json:"allowedIpList"`
	CellPhoneNumber          string   `json:"cellPhoneNumber,omitempty"`
	Country                  string   `json:"country,omitempty"`
	ExpirationDate           string   `json:"expirationDate,omitempty"`
	JobTitle                 string   `json:"jobTitle,omitempty"`
	Other                    string   `json:"other,omitempty"`
	PhoneNumber              string   `json:"phoneNumber,omitempty"`
}

// UserUpdate carries only the fields that changed. Nil pointers and nil
// slices mean "leave as is"; a pointer to a zero value is an explicit change
// to empty.
type UserUpdate struct {
	Email           *string  `json:"email,omitempty"`
	FirstName       *string  `json:"firstName,omitempty"`
	LastName        *string  `json:"lastName,omitempty"`
	LocaleID        *int     `json:"localeId,omitempty"`
	Active          *bool    `json:"active,omitempty"`
	AllowedIPList   []string `json:"allowedIpList,omitempty"`
	CellPhoneNumber *string  `json:"cellPhoneNumber,omitempty"`
	Country         *string  `json:"country,omitempty"`
	ExpirationDate  *string  `json:"expirationDate,omitempty"`
	JobTitle        *string  `json:"jobTitle,omitempty"`
	Other           *string  `json:"other,omitempty"`
	PhoneNumber     *string  `json:"phoneNumber,omitempty"`
	RoleIDs         []int    `json:"roleIds,omitempty"`
	TeamIDs         []int    `json:"teamIds,omitempty"`
}

// Empty reports whether the update carries no changes at all.
func (u UserUpdate) Empty() bool {
	return u.Email == nil && u.FirstName == nil && u.LastName == nil &&
		u.LocaleID == nil && u.Active == nil && u.AllowedIPList == nil &&
		u.CellPhoneNumber == nil && u.Country == nil && u.ExpirationDate == nil &&
		u.JobTitle == nil && u.Other == nil && u.PhoneNumber == nil &&
		u.RoleIDs == nil && u.TeamIDs == nil
}
