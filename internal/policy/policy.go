// Package policy is the central authorization rule set. Every endpoint asks it
// whether an actor may perform an action on a target resource. Tenant
// isolation is always checked before role authorization, so a wrong-tenant
// admin is told "Forbidden" rather than "Not authorized".
package policy

import (
	"taskhub/internal/model"

	"github.com/google/uuid"
)

// Action identifies a policy-controlled operation.
type Action string

const (
	ActionListTenants     Action = "tenant.list"
	ActionViewTenant      Action = "tenant.view"
	ActionUpdateTenant    Action = "tenant.update"
	ActionListTenantUsers Action = "tenant.users.list"
	ActionCreateUser      Action = "user.create"
	ActionUpdateUser      Action = "user.update"
	ActionDeleteUser      Action = "user.delete"
	ActionCreateProject   Action = "project.create"
	ActionViewProject     Action = "project.view"
	ActionEditProject     Action = "project.edit"
	ActionDeleteProject   Action = "project.delete"
	ActionCreateTask      Action = "task.create"
	ActionUpdateTaskState Action = "task.status"
	ActionEditTask        Action = "task.edit"
	ActionDeleteTask      Action = "task.delete"
)

// Resource carries the target of an authorization check. Only the fields the
// action needs are set; UpdateFields holds the raw keys of a tenant-update
// payload so the restricted-field rule can reject them by name.
type Resource struct {
	TenantID     uuid.UUID
	Tenant       *model.Tenant
	User         *model.User
	Project      *model.Project
	Task         *model.Task
	UpdateFields map[string]interface{}
}

type rule func(actor *model.User, res Resource) error

var rules = map[Action]rule{
	ActionListTenants:     canListTenants,
	ActionViewTenant:      canViewTenant,
	ActionUpdateTenant:    canUpdateTenant,
	ActionListTenantUsers: canAccessTenantUsers,
	ActionCreateUser:      canCreateUser,
	ActionUpdateUser:      canUpdateUser,
	ActionDeleteUser:      canDeleteUser,
	ActionCreateProject:   canCreateProject,
	ActionViewProject:     canViewProject,
	ActionEditProject:     canModifyProject,
	ActionDeleteProject:   canModifyProject,
	ActionCreateTask:      canCreateTask,
	ActionUpdateTaskState: canUpdateTaskStatus,
	ActionEditTask:        canEditTask,
	ActionDeleteTask:      canDeleteTask,
}

// Authorize evaluates the rule for action against the actor and target.
// A nil return means allow.
func Authorize(actor *model.User, action Action, res Resource) error {
	r, ok := rules[action]
	if !ok {
		return Forbidden("Not authorized")
	}
	return r(actor, res)
}

func canListTenants(actor *model.User, _ Resource) error {
	if !actor.IsSuperAdmin() {
		return Forbidden("Access denied. Super admin only.")
	}
	return nil
}

func canViewTenant(actor *model.User, res Resource) error {
	if !actor.IsSuperAdmin() && !actor.InTenant(res.TenantID) {
		return Forbidden("Access denied")
	}
	return nil
}

// restrictedTenantFields are rejected for tenant admins even when the value
// is unchanged. Order matters: the first offending field names the denial.
var restrictedTenantFields = []string{"status", "subscription_plan", "max_users", "max_projects", "subdomain"}

func canUpdateTenant(actor *model.User, res Resource) error {
	if err := canViewTenant(actor, res); err != nil {
		return err
	}
	if actor.IsSuperAdmin() {
		return nil
	}
	if !actor.IsTenantAdmin() {
		return Forbidden("Access denied")
	}
	for _, field := range restrictedTenantFields {
		if _, present := res.UpdateFields[field]; present {
			return Forbidden("You are not authorized to update " + field)
		}
	}
	return nil
}

func canAccessTenantUsers(actor *model.User, res Resource) error {
	if !actor.IsSuperAdmin() && !actor.InTenant(res.TenantID) {
		return Forbidden("Unauthorized")
	}
	return nil
}

func canCreateUser(actor *model.User, res Resource) error {
	if err := canAccessTenantUsers(actor, res); err != nil {
		return err
	}
	if !actor.Role.AtLeast(model.RoleTenantAdmin) {
		return Forbidden("Not authorized")
	}
	return nil
}

func canUpdateUser(actor *model.User, res Resource) error {
	if !actor.SameTenant(res.User) {
		return Forbidden("Forbidden")
	}
	if actor.ID != res.User.ID && !actor.IsTenantAdmin() {
		return Forbidden("Not authorized")
	}
	return nil
}

func canDeleteUser(actor *model.User, res Resource) error {
	if !actor.SameTenant(res.User) {
		return Forbidden("Forbidden")
	}
	if !actor.IsTenantAdmin() {
		return Forbidden("Not authorized")
	}
	if actor.ID == res.User.ID {
		return Forbidden("Tenant admin cannot delete themselves")
	}
	return nil
}

func canCreateProject(actor *model.User, _ Resource) error {
	// Super admins have no tenant to own the project.
	if actor.IsSuperAdmin() {
		return Forbidden("Super admin cannot create projects")
	}
	return nil
}

func projectIsolation(actor *model.User, project *model.Project) error {
	if !actor.IsSuperAdmin() && !actor.InTenant(project.TenantID) {
		return Forbidden("Forbidden")
	}
	return nil
}

func canViewProject(actor *model.User, res Resource) error {
	return projectIsolation(actor, res.Project)
}

func canModifyProject(actor *model.User, res Resource) error {
	if err := projectIsolation(actor, res.Project); err != nil {
		return err
	}
	isCreator := res.Project.CreatedByID != nil && *res.Project.CreatedByID == actor.ID
	if !actor.IsTenantAdmin() && !isCreator {
		return Forbidden("Not authorized")
	}
	return nil
}

func taskIsolation(actor *model.User, task *model.Task) error {
	if !actor.IsSuperAdmin() && !actor.InTenant(task.TenantID) {
		return Forbidden("Forbidden")
	}
	return nil
}

func canCreateTask(actor *model.User, res Resource) error {
	return projectIsolation(actor, res.Project)
}

func canUpdateTaskStatus(actor *model.User, res Resource) error {
	if err := taskIsolation(actor, res.Task); err != nil {
		return err
	}
	isAssignee := res.Task.AssignedToID != nil && *res.Task.AssignedToID == actor.ID
	if !actor.IsTenantAdmin() && !isAssignee {
		return Forbidden("Only the assigned user or admin can update this task")
	}
	return nil
}

func canEditTask(actor *model.User, res Resource) error {
	if err := taskIsolation(actor, res.Task); err != nil {
		return err
	}
	if !actor.IsTenantAdmin() {
		return Forbidden("Only admin can edit task details")
	}
	return nil
}

func canDeleteTask(actor *model.User, res Resource) error {
	if err := taskIsolation(actor, res.Task); err != nil {
		return err
	}
	if !actor.IsTenantAdmin() {
		return Forbidden("Only admin can delete tasks")
	}
	return nil
}
