package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskStatus represents the workflow state of a task
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// TaskPriority represents task priority
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Task belongs to a project. TenantID is a denormalized copy of the project's
// tenant so isolation checks never need a join; the two must always agree.
type Task struct {
	ID           uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID    uuid.UUID    `json:"project_id" gorm:"type:uuid;index;not null"`
	Project      *Project     `json:"-" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
	TenantID     uuid.UUID    `json:"tenant_id" gorm:"type:uuid;index;not null"`
	Title        string       `json:"title" gorm:"type:varchar(255);not null"`
	Description  string       `json:"description" gorm:"type:text"`
	Status       TaskStatus   `json:"status" gorm:"type:varchar(20);default:'todo'"`
	Priority     TaskPriority `json:"priority" gorm:"type:varchar(20);default:'medium'"`
	AssignedToID *uuid.UUID   `json:"assigned_to_id,omitempty" gorm:"type:uuid"`
	AssignedTo   *User        `json:"-" gorm:"foreignKey:AssignedToID;constraint:OnDelete:SET NULL"`
	DueDate      *time.Time   `json:"due_date,omitempty" gorm:"type:date"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
