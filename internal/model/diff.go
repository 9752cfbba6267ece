package model

import (
	"errors"
	"fmt"
)

var ErrIdentityChange = errors.New("model: identity fields are immutable")

// FieldChange records one attribute that differs between the current and
// desired version of a user. Value is the desired value, typed per the field
// kind (string, *int, *bool or StringSet).
type FieldChange struct {
	Field string
	Kind  FieldKind
	Value any
}

func (c FieldChange) String() string {
	return fmt.Sprintf("%s=%s", c.Field, formatValue(c.Kind, c.Value))
}

// UserDiff compares two versions of the same user and returns the attributes
// that changed, plus whether the role set changed. Identity fields are never
// diffed: a username or authentication provider mismatch is a fatal error,
// not a change. Roles are excluded from the field list because they are
// carried on the wire as resolved role ids, not names.
//
// Non-boolean attributes compare under falsy equivalence: a nil value and an
// empty string or list count as unchanged. Booleans compare strictly.
func UserDiff(current, desired *User) ([]FieldChange, bool, error) {
	if current.Username != desired.Username {
		return nil, false, fmt.Errorf("%w: username %q -> %q", ErrIdentityChange, current.Username, desired.Username)
	}
	if current.AuthenticationProviderName != desired.AuthenticationProviderName {
		return nil, false, fmt.Errorf("%w: user %q authentication provider %q -> %q",
			ErrIdentityChange, current.Username,
			current.AuthenticationProviderName, desired.AuthenticationProviderName)
	}

	var changes []FieldChange
	for _, f := range UserFields {
		if f.Identity || f.Name == FieldRoles {
			continue
		}
		cur := f.Get(current)
		want := f.Get(desired)
		if valuesEquivalent(f.Kind, cur, want) {
			continue
		}
		changes = append(changes, FieldChange{Field: f.Name, Kind: f.Kind, Value: want})
	}

	rolesChanged := !current.Roles.Equal(desired.Roles)
	return changes, rolesChanged, nil
}

// TeamIDSetsEqual compares two team-membership id sets. Order is irrelevant;
// membership is compared as a set of ids.
func TeamIDSetsEqual(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}
