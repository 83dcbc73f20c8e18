// Package quota enforces per-tenant resource limits. Checks run on the
// caller's transaction so the count and the subsequent insert commit
// atomically; the unique constraints in the store remain the backstop
// against concurrent creates racing past the count.
package quota

import (
	"taskhub/internal/model"
	"taskhub/internal/policy"

	"gorm.io/gorm"
)

// CheckUsers rejects the next user creation once the tenant is at its
// max_users limit.
func CheckUsers(tx *gorm.DB, tenant *model.Tenant) error {
	var count int64
	if err := tx.Model(&model.User{}).Where("tenant_id = ?", tenant.ID).Count(&count).Error; err != nil {
		return err
	}
	if count >= int64(tenant.MaxUsers) {
		return policy.Forbidden("User limit reached")
	}
	return nil
}

// CheckProjects rejects the next project creation once the tenant is at its
// max_projects limit.
func CheckProjects(tx *gorm.DB, tenant *model.Tenant) error {
	var count int64
	if err := tx.Model(&model.Project{}).Where("tenant_id = ?", tenant.ID).Count(&count).Error; err != nil {
		return err
	}
	if count >= int64(tenant.MaxProjects) {
		return policy.Forbidden("Project limit reached")
	}
	return nil
}
