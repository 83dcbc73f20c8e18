package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantStatus represents the lifecycle status of a tenant
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusTrial     TenantStatus = "trial"
)

// SubscriptionPlan represents the tenant's subscription tier
type SubscriptionPlan string

const (
	PlanFree       SubscriptionPlan = "free"
	PlanPro        SubscriptionPlan = "pro"
	PlanEnterprise SubscriptionPlan = "enterprise"
)

// Tenant represents an isolated organization namespace.
// This is the core of our multi-tenant architecture: every other entity
// except super admins is partitioned by tenant.
type Tenant struct {
	ID               uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	Name             string           `json:"name" gorm:"type:varchar(255);not null"`
	Subdomain        string           `json:"subdomain" gorm:"type:varchar(100);uniqueIndex;not null"`
	Status           TenantStatus     `json:"status" gorm:"type:varchar(20);default:'active'"`
	SubscriptionPlan SubscriptionPlan `json:"subscription_plan" gorm:"type:varchar(20);default:'free'"`
	MaxUsers         int              `json:"max_users" gorm:"default:5"`
	MaxProjects      int              `json:"max_projects" gorm:"default:3"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// PlanLimits returns the (max_users, max_projects) pair for a subscription plan.
// Applied when a super admin changes a tenant's plan.
func PlanLimits(plan SubscriptionPlan) (int, int) {
	switch plan {
	case PlanPro:
		return 20, 20
	case PlanEnterprise:
		return 100, 100
	default:
		return 5, 3
	}
}
