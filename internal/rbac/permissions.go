package rbac

import (
	"sort"
	"strings"
)

// PermissionSet is a de-duplicated set of permission names.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from names, normalising case and whitespace.
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, name := range names {
		set.Add(name)
	}
	return set
}

// Add inserts a permission name; blanks are ignored.
func (s PermissionSet) Add(name string) {
	if n := normalize(name); n != "" {
		s[n] = struct{}{}
	}
}

// Has reports whether name is granted.
func (s PermissionSet) Has(name string) bool {
	_, ok := s[normalize(name)]
	return ok
}

// Len returns the number of distinct permissions.
func (s PermissionSet) Len() int { return len(s) }

// Sorted returns the names in lexical order.
func (s PermissionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for name := range s {
		out[name] = struct{}{}
	}
	return out
}

// UnionPermissions flattens the permissions of every role into one set.
func UnionPermissions(roles []Role) PermissionSet {
	set := make(PermissionSet)
	for _, role := range roles {
		for _, perm := range role.Permissions {
			set.Add(perm.Name)
		}
	}
	return set
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
