package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectStatus represents a project's lifecycle status
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusArchived ProjectStatus = "archived"
)

// Project is owned by exactly one tenant. The creator keeps edit rights even
// without the tenant_admin role.
type Project struct {
	ID          uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID     `json:"tenant_id" gorm:"type:uuid;index;not null"`
	Tenant      *Tenant       `json:"-" gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
	Name        string        `json:"name" gorm:"type:varchar(255);not null"`
	Description string        `json:"description" gorm:"type:text"`
	Status      ProjectStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	CreatedByID *uuid.UUID    `json:"created_by,omitempty" gorm:"type:uuid"`
	CreatedBy   *User         `json:"-" gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
