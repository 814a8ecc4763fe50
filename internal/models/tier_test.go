package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveRoleDowngradesExpiredPremium(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.Equal(t, RoleEBasic, EffectiveRole(RoleETool, &past, now))
	assert.Equal(t, RoleEBasic, EffectiveRole(RoleEMaster, &past, now))
	assert.Equal(t, RoleETool, EffectiveRole(RoleETool, &future, now))
	assert.Equal(t, RoleEMaster, EffectiveRole(RoleEMaster, nil, now))
}

func TestEffectiveRoleAdminAndBasicNeverExpire(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	assert.Equal(t, RoleAdmin, EffectiveRole(RoleAdmin, &past, now))
	assert.Equal(t, RoleEBasic, EffectiveRole(RoleEBasic, &past, now))
}

func TestResolveAccessNesting(t *testing.T) {
	now := time.Now().UTC()

	admin := ResolveAccess(RoleAdmin, nil, now)
	assert.True(t, admin.IsAdmin)
	assert.True(t, admin.IsEMaster)
	assert.True(t, admin.IsETool)
	assert.True(t, admin.IsEBasic)

	master := ResolveAccess(RoleEMaster, nil, now)
	assert.False(t, master.IsAdmin)
	assert.True(t, master.IsEMaster)
	assert.True(t, master.IsETool)
	assert.True(t, master.IsEBasic)

	tool := ResolveAccess(RoleETool, nil, now)
	assert.False(t, tool.IsEMaster)
	assert.True(t, tool.IsETool)
	assert.True(t, tool.IsEBasic)

	basic := ResolveAccess(RoleEBasic, nil, now)
	assert.False(t, basic.IsETool)
	assert.True(t, basic.IsEBasic)
}

func TestResolveAccessExpiredPremiumFallsToBasic(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)

	access := ResolveAccess(RoleEMaster, &past, now)
	assert.False(t, access.IsEMaster)
	assert.False(t, access.IsETool)
	assert.True(t, access.IsEBasic)
}

func TestTierAtLeast(t *testing.T) {
	assert.True(t, TierAtLeast(RoleAdmin, RoleEMaster))
	assert.True(t, TierAtLeast(RoleEMaster, RoleETool))
	assert.True(t, TierAtLeast(RoleETool, RoleETool))
	assert.False(t, TierAtLeast(RoleEBasic, RoleETool))
	assert.False(t, TierAtLeast(RoleETool, RoleAdmin))
	assert.False(t, TierAtLeast(UserRole("bogus"), RoleEBasic))
	assert.False(t, TierAtLeast(RoleAdmin, UserRole("bogus")))
}
