package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLog is an append-only record of security-relevant actions. Rows are
// never mutated or deleted through the API. The user reference survives user
// deletion as a null.
type AuditLog struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID   *uuid.UUID `json:"tenant_id,omitempty" gorm:"type:uuid;index"`
	Tenant     *Tenant    `json:"-" gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
	UserID     *uuid.UUID `json:"user_id,omitempty" gorm:"type:uuid;index"`
	User       *User      `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
	Action     string     `json:"action" gorm:"type:varchar(255);not null"`
	EntityType string     `json:"entity_type" gorm:"type:varchar(50)"`
	EntityID   string     `json:"entity_id" gorm:"type:varchar(255)"`
	IPAddress  string     `json:"ip_address" gorm:"type:varchar(45)"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
