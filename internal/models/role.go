package models

// Role is the access tier persisted on a user.
type Role string

const (
	RoleFree    Role = "FREE"
	RolePremium Role = "PREMIUM"
	// RoleGuest is never stored; it describes anonymous callers.
	RoleGuest Role = "GUEST"
)

type Permission string

const (
	PermUpload        Permission = "files:upload"
	PermDownload      Permission = "files:download"
	PermListOwn       Permission = "files:list-own"
	PermDeleteOwn     Permission = "files:delete-own"
	PermDeleteAccount Permission = "account:delete"
)

var rolePermissions = map[Role]map[Permission]struct{}{
	RoleGuest:   set(PermUpload, PermDownload),
	RoleFree:    set(PermUpload, PermDownload, PermListOwn, PermDeleteOwn, PermDeleteAccount),
	RolePremium: set(PermUpload, PermDownload, PermListOwn, PermDeleteOwn, PermDeleteAccount),
}

func set(perms ...Permission) map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		m[p] = struct{}{}
	}
	return m
}

// Can reports whether the role grants p. Unknown roles grant nothing.
func (r Role) Can(p Permission) bool {
	_, ok := rolePermissions[r][p]
	return ok
}

// Valid reports whether r may be persisted on a user.
func (r Role) Valid() bool {
	return r == RoleFree || r == RolePremium
}
