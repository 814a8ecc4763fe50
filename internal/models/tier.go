package models

import "time"

// Access is the resolved capability set for a user. The four booleans form a
// strictly nested hierarchy: IsAdmin implies IsEMaster implies IsETool
// implies IsEBasic.
type Access struct {
	IsAdmin   bool `json:"isAdmin"`
	IsEMaster bool `json:"isEMaster"`
	IsETool   bool `json:"isETool"`
	IsEBasic  bool `json:"isEBasic"`
}

var tierRank = map[UserRole]int{
	RoleEBasic:  1,
	RoleETool:   2,
	RoleEMaster: 3,
	RoleAdmin:   4,
}

// EffectiveRole returns the role a user acts with at the given instant.
// A premium role whose expiry date has passed downgrades to E-BASIC; admin
// accounts never expire. Unknown role strings pass through unchanged and
// rank as nothing.
func EffectiveRole(role UserRole, expiry *time.Time, now time.Time) UserRole {
	if role == RoleAdmin || role == RoleEBasic {
		return role
	}
	if expiry != nil && now.After(*expiry) {
		return RoleEBasic
	}
	return role
}

// ResolveAccess maps a user's role and expiry date to the capability set.
func ResolveAccess(role UserRole, expiry *time.Time, now time.Time) Access {
	effective := EffectiveRole(role, expiry, now)

	access := Access{}
	access.IsAdmin = effective == RoleAdmin
	access.IsEMaster = effective == RoleEMaster || access.IsAdmin
	access.IsETool = effective == RoleETool || access.IsEMaster
	access.IsEBasic = effective == RoleEBasic || access.IsETool
	return access
}

// Access resolves the user's capability set at the given instant.
func (u *User) Access(now time.Time) Access {
	return ResolveAccess(u.Role, u.RoleExpiryDate, now)
}

// TierAtLeast reports whether the role dominates the required tier.
// Unknown roles never dominate anything.
func TierAtLeast(role, required UserRole) bool {
	have, ok := tierRank[role]
	if !ok {
		return false
	}
	want, ok := tierRank[required]
	if !ok {
		return false
	}
	return have >= want
}
