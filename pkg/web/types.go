// Package web provides HTTP handlers and REST API endpoints for workflow
// instance management.
package web

import (
	"time"

	"github.com/vantagecrm/leadflow/pkg/models"
)

// StartInstanceRequest represents the request body for starting a workflow
// instance against a lead.
type StartInstanceRequest struct {
	TemplateID string `json:"template_id" validate:"required"`
	LeadID     string `json:"lead_id"     validate:"required"`
}

// DecisionRequest represents the request body for an approval gate
// decision. PauseWorkflow only applies to rejections.
type DecisionRequest struct {
	Notes         string `json:"notes,omitempty"`
	PauseWorkflow bool   `json:"pause_workflow,omitempty"`
}

// CreateTemplateRequest represents the request body for creating a workflow
// template.
type CreateTemplateRequest struct {
	Name     string          `json:"name"     validate:"required,min=3"`
	Industry models.Industry `json:"industry" validate:"required"`
	IsActive *bool           `json:"is_active,omitempty"`
	Tasks    []TaskRequest   `json:"tasks"    validate:"dive"`
}

// TaskRequest is one task definition within a template creation request.
type TaskRequest struct {
	Name         string            `json:"name"          validate:"required"`
	Type         models.TaskType   `json:"type"          validate:"required,oneof=automated hitl_gate conditional"`
	DisplayOrder int               `json:"display_order" validate:"min=1"`
	Config       models.TaskConfig `json:"config"`
}

// ToModel converts the request into a template owned by the given tenant.
// Templates default to active.
func (r *CreateTemplateRequest) ToModel(ownerID string) *models.WorkflowTemplate {
	template := &models.WorkflowTemplate{
		Name:     r.Name,
		Industry: r.Industry,
		OwnerID:  ownerID,
		IsActive: true,
	}

	if r.IsActive != nil {
		template.IsActive = *r.IsActive
	}

	for _, task := range r.Tasks {
		template.Tasks = append(template.Tasks, &models.TaskDefinition{
			Name:         task.Name,
			Type:         task.Type,
			DisplayOrder: task.DisplayOrder,
			Config:       task.Config,
		})
	}

	return template
}

// CreateLeadRequest represents the request body for creating a lead.
type CreateLeadRequest struct {
	Name       string          `json:"name"     validate:"required"`
	Industry   models.Industry `json:"industry" validate:"required"`
	Email      string          `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string          `json:"phone,omitempty"`
	Attributes map[string]any  `json:"attributes,omitempty"`
}

func (r *CreateLeadRequest) ToModel(ownerID string) *models.Lead {
	return &models.Lead{
		Name:       r.Name,
		Industry:   r.Industry,
		OwnerID:    ownerID,
		Email:      r.Email,
		Phone:      r.Phone,
		Attributes: r.Attributes,
	}
}

// InstanceResponse is a workflow instance with its execution history.
type InstanceResponse struct {
	ID            string                  `json:"id"`
	TemplateID    string                  `json:"template_id"`
	LeadID        string                  `json:"lead_id"`
	Status        models.InstanceStatus   `json:"status"`
	CurrentTaskID string                  `json:"current_task_id,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	CompletedAt   *time.Time              `json:"completed_at,omitempty"`
	Executions    []*models.TaskExecution `json:"executions,omitempty"`
}

// TransformInstanceResponse builds the API shape of an instance from the
// stored record and its executions.
func TransformInstanceResponse(instance *models.WorkflowInstance, executions []*models.TaskExecution) InstanceResponse {
	return InstanceResponse{
		ID:            instance.ID,
		TemplateID:    instance.TemplateID,
		LeadID:        instance.LeadID,
		Status:        instance.Status,
		CurrentTaskID: instance.CurrentTaskID,
		CreatedAt:     instance.CreatedAt,
		CompletedAt:   instance.CompletedAt,
		Executions:    executions,
	}
}
