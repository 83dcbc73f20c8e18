package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPlanLimits(t *testing.T) {
	users, projects := PlanLimits(PlanFree)
	assert.Equal(t, 5, users)
	assert.Equal(t, 3, projects)

	users, projects = PlanLimits(PlanPro)
	assert.Equal(t, 20, users)
	assert.Equal(t, 20, projects)

	users, projects = PlanLimits(PlanEnterprise)
	assert.Equal(t, 100, users)
	assert.Equal(t, 100, projects)

	// Unknown plans fall back to the free limits.
	users, projects = PlanLimits(SubscriptionPlan("unknown"))
	assert.Equal(t, 5, users)
	assert.Equal(t, 3, projects)
}

func TestRoleOrdering(t *testing.T) {
	assert.True(t, RoleSuperAdmin.AtLeast(RoleTenantAdmin))
	assert.True(t, RoleTenantAdmin.AtLeast(RoleUser))
	assert.True(t, RoleUser.AtLeast(RoleUser))
	assert.False(t, RoleUser.AtLeast(RoleTenantAdmin))
	assert.False(t, RoleTenantAdmin.AtLeast(RoleSuperAdmin))

	assert.True(t, RoleUser.Valid())
	assert.False(t, Role("owner").Valid())
}

func TestSameTenant(t *testing.T) {
	tenantID := uuid.New()
	otherID := uuid.New()

	a := &User{ID: uuid.New(), TenantID: &tenantID}
	b := &User{ID: uuid.New(), TenantID: &tenantID}
	c := &User{ID: uuid.New(), TenantID: &otherID}
	super := &User{ID: uuid.New(), Role: RoleSuperAdmin}
	super2 := &User{ID: uuid.New(), Role: RoleSuperAdmin}

	assert.True(t, a.SameTenant(b))
	assert.False(t, a.SameTenant(c))
	assert.False(t, a.SameTenant(super))
	assert.False(t, super.SameTenant(a))
	assert.True(t, super.SameTenant(super2))

	assert.True(t, a.InTenant(tenantID))
	assert.False(t, a.InTenant(otherID))
	assert.False(t, super.InTenant(tenantID))
}

func TestTaskStatusValid(t *testing.T) {
	assert.True(t, TaskStatusTodo.Valid())
	assert.True(t, TaskStatusInProgress.Valid())
	assert.True(t, TaskStatusCompleted.Valid())
	assert.False(t, TaskStatus("done").Valid())
	assert.False(t, TaskStatus("").Valid())
}
