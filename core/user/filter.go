package user

import (
	"sort"
	"strings"

	"github.com/trezcool/ushauri/core"
)

// Matches reports whether usr satisfies every set field of the filter.
// Used by the repositories which cannot filter natively.
func (qf *QueryFilter) Matches(usr User) bool {
	if qf.Search != "" {
		search := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(usr.Name), search) ||
			strings.Contains(usr.Username, search) ||
			strings.Contains(usr.Email, search)) {
			return false
		}
	}
	if len(qf.Roles) > 0 {
		var found bool
		for _, role := range qf.Roles {
			if usr.RoleStartsWith(role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if qf.IsActive != nil && usr.IsActive != *qf.IsActive {
		return false
	}
	if !qf.CreatedFrom.IsZero() && usr.CreatedAt.Before(qf.CreatedFrom) {
		return false
	}
	if !qf.CreatedTo.IsZero() && usr.CreatedAt.After(qf.CreatedTo) {
		return false
	}
	return true
}

// Filter returns the users matching the filter. A nil filter matches everyone.
func Filter(users []User, filter *QueryFilter) []User {
	if filter == nil || filter.IsEmpty() {
		return users
	}
	filtered := make([]User, 0, len(users))
	for _, usr := range users {
		if filter.Matches(usr) {
			filtered = append(filtered, usr)
		}
	}
	return filtered
}

// Sort orders users by the orderings on name, username, email, created_at & last_login.
// Without orderings, users are sorted by creation date.
func Sort(users []User, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: true}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i], users[j]
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "name":
				cmp = strings.Compare(a.Name, b.Name)
			case "username":
				cmp = strings.Compare(a.Username, b.Username)
			case "email":
				cmp = strings.Compare(a.Email, b.Email)
			case "created_at":
				cmp = a.CreatedAt.Compare(b.CreatedAt)
			case "last_login":
				cmp = a.LastLogin.Compare(b.LastLogin)
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return a.ID < b.ID
	})
}

// Matches reports whether usr is the one selected by the filter. The first non-empty field is used.
func (f GetFilter) Matches(usr User) bool {
	switch {
	case f.ID != "":
		return usr.ID == f.ID
	case f.Username != "":
		return usr.Username == f.Username
	case f.Email != "":
		return usr.Email == f.Email
	case len(f.UsernameOrEmail) > 0:
		uname, email := f.UsernameOrEmail[0], f.UsernameOrEmail[0]
		if len(f.UsernameOrEmail) > 1 {
			email = f.UsernameOrEmail[1]
		}
		return (uname != "" && usr.Username == uname) || (email != "" && usr.Email == email)
	}
	return false
}
