package model

// Denormalize fills absent member attributes from the team's defaults. For
// every user the team references and every hoistable attribute that is
// absent on the user, the team default is substituted. A mandatory attribute
// with neither a value nor a default collects MissingDefaultAttribute.
//
// Denormalize must run right after a team is loaded from configuration,
// before validation or comparison. References that resolve to no user are
// skipped here; the validator reports those.
func Denormalize(m *Model, team *Team) []Problem {
	var problems []Problem
	for _, ref := range team.Users {
		user, ok := m.UserByRef(ref)
		if !ok {
			continue
		}
		for _, f := range UserFields {
			if !f.Hoistable {
				continue
			}
			if !valueEmpty(f.Kind, f.Get(user)) {
				continue
			}
			def := f.Default(&team.Defaults)
			if !valueEmpty(f.Kind, def) {
				if f.Kind == KindSet {
					def = asSet(def).Clone()
				}
				f.Set(user, def)
				continue
			}
			if f.Mandatory {
				problems = append(problems, MissingDefaultAttribute{
					Username:     ref.Username,
					TeamFullName: team.FullName,
					Attribute:    f.Name,
				})
			}
		}
	}
	return problems
}

// DenormalizeAll runs Denormalize over every team in the model.
func DenormalizeAll(m *Model) []Problem {
	var problems []Problem
	for _, team := range m.Teams {
		problems = append(problems, Denormalize(m, team)...)
	}
	return problems
}

// Normalize hoists attributes shared by every member of the team into the
// team's defaults, for compact storage. Promotion requires unanimous
// agreement: every current member must hold the identical non-absent value.
// A single absent value or outlier, or an empty team, disables promotion for
// that attribute. Promoted values are cleared from the member records,
// except identity fields, which stay on the user so the user index keys
// remain intact.
//
// Normalize runs only when serializing a team back to configuration.
func Normalize(m *Model, team *Team) {
	if len(team.Users) == 0 {
		return
	}
	members := make([]*User, 0, len(team.Users))
	for _, ref := range team.Users {
		user, ok := m.UserByRef(ref)
		if !ok {
			return
		}
		members = append(members, user)
	}

	for _, f := range UserFields {
		if !f.Hoistable {
			continue
		}
		first := f.Get(members[0])
		if valueEmpty(f.Kind, first) {
			continue
		}
		unanimous := true
		for _, user := range members[1:] {
			v := f.Get(user)
			if valueEmpty(f.Kind, v) || !valuesEqual(f.Kind, first, v) {
				unanimous = false
				break
			}
		}
		if !unanimous {
			continue
		}
		if f.Kind == KindSet {
			f.SetDefault(&team.Defaults, asSet(first).Clone())
		} else {
			f.SetDefault(&team.Defaults, first)
		}
		if f.Identity {
			continue
		}
		for _, user := range members {
			f.Set(user, emptyValue(f.Kind))
		}
	}
}

// NormalizeAll runs Normalize over every team in the model.
func NormalizeAll(m *Model) {
	for _, team := range m.Teams {
		Normalize(m, team)
	}
}
