package model

import "fmt"

// FieldKind classifies a user attribute for the generic value helpers below.
type FieldKind int

const (
	KindString FieldKind = iota
	KindInt
	KindBool
	KindSet
)

// Field describes one user attribute. A single enumerated table drives
// validation (Mandatory), default hoisting (Hoistable with the team-default
// accessors) and the update diff, so the set of attributes lives in exactly
// one place.
type Field struct {
	Name      string
	Kind      FieldKind
	Mandatory bool
	Hoistable bool
	Identity  bool

	Get func(*User) any
	Set func(*User, any)

	// Team-default accessors, nil unless Hoistable.
	Default    func(*TeamDefaults) any
	SetDefault func(*TeamDefaults, any)
}

// Attribute name constants, matching the on-disk and wire spelling.
const (
	FieldActive                     = "active"
	FieldAllowedIPList              = "allowed_ip_list"
	FieldAuthenticationProviderName = "authentication_provider_name"
	FieldCellPhoneNumber            = "cell_phone_number"
	FieldCountry                    = "country"
	FieldEmail                      = "email"
	FieldExpirationDate             = "expiration_date"
	FieldFirstName                  = "first_name"
	FieldJobTitle                   = "job_title"
	FieldLastName                   = "last_name"
	FieldLocaleID                   = "locale_id"
	FieldOther                      = "other"
	FieldPhoneNumber                = "phone_number"
	FieldRoles                      = "roles"
	FieldUsername                   = "username"
)

// UserFields is the field descriptor table for User.
var UserFields = []Field{
	{
		Name: FieldActive, Kind: KindBool, Mandatory: true, Hoistable: true,
		Get:        func(u *User) any { return u.Active },
		Set:        func(u *User, v any) { u.Active = v.(*bool) },
		Default:    func(d *TeamDefaults) any { return d.Active },
		SetDefault: func(d *TeamDefaults, v any) { d.Active = v.(*bool) },
	},
	{
		Name: FieldAllowedIPList, Kind: KindSet, Hoistable: true,
		Get:        func(u *User) any { return u.AllowedIPList },
		Set:        func(u *User, v any) { u.AllowedIPList = asSet(v) },
		Default:    func(d *TeamDefaults) any { return d.AllowedIPList },
		SetDefault: func(d *TeamDefaults, v any) { d.AllowedIPList = asSet(v) },
	},
	{
		Name: FieldAuthenticationProviderName, Kind: KindString, Mandatory: true, Hoistable: true, Identity: true,
		Get:        func(u *User) any { return u.AuthenticationProviderName },
		Set:        func(u *User, v any) { u.AuthenticationProviderName = v.(string) },
		Default:    func(d *TeamDefaults) any { return d.AuthenticationProviderName },
		SetDefault: func(d *TeamDefaults, v any) { d.AuthenticationProviderName = v.(string) },
	},
	{
		Name: FieldCellPhoneNumber, Kind: KindString,
		Get: func(u *User) any { return u.CellPhoneNumber },
		Set: func(u *User, v any) { u.CellPhoneNumber = v.(string) },
	},
	{
		Name: FieldCountry, Kind: KindString,
		Get: func(u *User) any { return u.Country },
		Set: func(u *User, v any) { u.Country = v.(string) },
	},
	{
		Name: FieldEmail, Kind: KindString, Mandatory: true,
		Get: func(u *User) any { return u.Email },
		Set: func(u *User, v any) { u.Email = v.(string) },
	},
	{
		Name: FieldExpirationDate, Kind: KindString,
		Get: func(u *User) any { return u.ExpirationDate },
		Set: func(u *User, v any) { u.ExpirationDate = v.(string) },
	},
	{
		Name: FieldFirstName, Kind: KindString, Mandatory: true,
		Get: func(u *User) any { return u.FirstName },
		Set: func(u *User, v any) { u.FirstName = v.(string) },
	},
	{
		Name: FieldJobTitle, Kind: KindString,
		Get: func(u *User) any { return u.JobTitle },
		Set: func(u *User, v any) { u.JobTitle = v.(string) },
	},
	{
		Name: FieldLastName, Kind: KindString, Mandatory: true,
		Get: func(u *User) any { return u.LastName },
		Set: func(u *User, v any) { u.LastName = v.(string) },
	},
	{
		Name: FieldLocaleID, Kind: KindInt, Mandatory: true, Hoistable: true,
		Get:        func(u *User) any { return u.LocaleID },
		Set:        func(u *User, v any) { u.LocaleID = v.(*int) },
		Default:    func(d *TeamDefaults) any { return d.LocaleID },
		SetDefault: func(d *TeamDefaults, v any) { d.LocaleID = v.(*int) },
	},
	{
		Name: FieldOther, Kind: KindString,
		Get: func(u *User) any { return u.Other },
		Set: func(u *User, v any) { u.Other = v.(string) },
	},
	{
		Name: FieldPhoneNumber, Kind: KindString,
		Get: func(u *User) any { return u.PhoneNumber },
		Set: func(u *User, v any) { u.PhoneNumber = v.(string) },
	},
	{
		Name: FieldRoles, Kind: KindSet, Hoistable: true,
		Get:        func(u *User) any { return u.Roles },
		Set:        func(u *User, v any) { u.Roles = asSet(v) },
		Default:    func(d *TeamDefaults) any { return d.Roles },
		SetDefault: func(d *TeamDefaults, v any) { d.Roles = asSet(v) },
	},
	{
		Name: FieldUsername, Kind: KindString, Mandatory: true, Identity: true,
		Get: func(u *User) any { return u.Username },
		Set: func(u *User, v any) { u.Username = v.(string) },
	},
}

func asSet(v any) StringSet {
	if v == nil {
		return nil
	}
	return v.(StringSet)
}

// emptyValue returns the "absent" value for a kind.
func emptyValue(kind FieldKind) any {
	switch kind {
	case KindString:
		return ""
	case KindInt:
		return (*int)(nil)
	case KindBool:
		return (*bool)(nil)
	default:
		return StringSet(nil)
	}
}

// valueEmpty reports whether a field value counts as absent: the empty
// string, a nil pointer, or an empty set.
func valueEmpty(kind FieldKind, v any) bool {
	switch kind {
	case KindString:
		return v.(string) == ""
	case KindInt:
		p, _ := v.(*int)
		return p == nil
	case KindBool:
		p, _ := v.(*bool)
		return p == nil
	default:
		return asSet(v).Empty()
	}
}

// valuesEqual compares two field values strictly (pointers by pointee).
func valuesEqual(kind FieldKind, a, b any) bool {
	switch kind {
	case KindString:
		return a.(string) == b.(string)
	case KindInt:
		pa, _ := a.(*int)
		pb, _ := b.(*int)
		if pa == nil || pb == nil {
			return pa == pb
		}
		return *pa == *pb
	case KindBool:
		pa, _ := a.(*bool)
		pb, _ := b.(*bool)
		if pa == nil || pb == nil {
			return pa == pb
		}
		return *pa == *pb
	default:
		return asSet(a).Equal(asSet(b))
	}
}

// valuesEquivalent applies the update-diff comparison: two non-boolean
// values are unchanged when both are absent, even if one is nil and the
// other an empty string or list. Booleans always compare by value, so an
// explicit false is never equivalent to absent.
func valuesEquivalent(kind FieldKind, a, b any) bool {
	if kind != KindBool && valueEmpty(kind, a) && valueEmpty(kind, b) {
		return true
	}
	return valuesEqual(kind, a, b)
}

// formatValue renders a field value for problem and log messages.
func formatValue(kind FieldKind, v any) string {
	switch kind {
	case KindString:
		return v.(string)
	case KindInt:
		p, _ := v.(*int)
		if p == nil {
			return ""
		}
		return fmt.Sprintf("%d", *p)
	case KindBool:
		p, _ := v.(*bool)
		if p == nil {
			return ""
		}
		return fmt.Sprintf("%t", *p)
	default:
		return fmt.Sprintf("%v", asSet(v).Sorted())
	}
}
