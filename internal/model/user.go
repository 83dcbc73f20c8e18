package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the closed set of user roles, ordered super_admin > tenant_admin > user.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleTenantAdmin Role = "tenant_admin"
	RoleUser        Role = "user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleTenantAdmin, RoleUser:
		return true
	}
	return false
}

// rank encodes the privilege order of roles.
func (r Role) rank() int {
	switch r {
	case RoleSuperAdmin:
		return 3
	case RoleTenantAdmin:
		return 2
	case RoleUser:
		return 1
	}
	return 0
}

// AtLeast reports whether r carries at least the privilege of other.
func (r Role) AtLeast(other Role) bool {
	return r.rank() >= other.rank()
}

// User represents an account. Super admins live outside every tenant
// (TenantID is nil); all other users belong to exactly one tenant.
type User struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID     *uuid.UUID `json:"tenant_id,omitempty" gorm:"type:uuid;index;uniqueIndex:idx_tenant_email"`
	Tenant       *Tenant    `json:"-" gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
	Email        string     `json:"email" gorm:"type:varchar(255);not null;uniqueIndex:idx_tenant_email"`
	PasswordHash string     `json:"-" gorm:"type:varchar(255);not null"`
	FullName     string     `json:"full_name" gorm:"type:varchar(255)"`
	Role         Role       `json:"role" gorm:"type:varchar(20);not null"`
	IsActive     bool       `json:"is_active" gorm:"default:true"`
	IsStaff      bool       `json:"is_staff" gorm:"default:false"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsSuperAdmin reports whether the user is a cross-tenant super admin.
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// IsTenantAdmin reports whether the user is the privileged role within a tenant.
func (u *User) IsTenantAdmin() bool {
	return u.Role == RoleTenantAdmin
}

// InTenant reports whether the user belongs to the given tenant.
func (u *User) InTenant(tenantID uuid.UUID) bool {
	return u.TenantID != nil && *u.TenantID == tenantID
}

// SameTenant reports whether both users belong to the same tenant.
// Two nil tenants (super admins) also compare equal.
func (u *User) SameTenant(other *User) bool {
	if u.TenantID == nil || other.TenantID == nil {
		return u.TenantID == nil && other.TenantID == nil
	}
	return *u.TenantID == *other.TenantID
}
