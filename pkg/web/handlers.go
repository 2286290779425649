package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/vantagecrm/leadflow/pkg/engine"
	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/registry"
	"github.com/vantagecrm/leadflow/pkg/services"
)

// UserIDHeader carries the authenticated tenant identity, set by the
// gateway in front of this service.
const UserIDHeader = "X-User-ID"

type APIHandlers struct {
	engine          *engine.Engine
	templateService *services.Template
	leadService     *services.Lead
	statsService    *services.Stats
	validator       *validator.Validate
	registry        *registry.Registry
}

func NewAPIHandlers(
	eng *engine.Engine,
	templateService *services.Template,
	leadService *services.Lead,
	statsService *services.Stats,
	v *validator.Validate,
	reg *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		engine:          eng,
		templateService: templateService,
		leadService:     leadService,
		statsService:    statsService,
		validator:       v,
		registry:        reg,
	}
}

func (h *APIHandlers) userID(c fiber.Ctx) (string, bool) {
	userID := c.Get(UserIDHeader)

	return userID, userID != ""
}

// StartInstance starts a workflow instance for a template/lead pair.
func (h *APIHandlers) StartInstance(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	var req StartInstanceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.engine.StartInstance(c.Context(), req.TemplateID, req.LeadID, userID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"instance": TransformInstanceResponse(instance, nil),
	})
}

// GetInstance returns an instance with its execution history.
func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	instance, executions, err := h.engine.InstanceHistory(c.Context(), c.Params("id"), userID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"instance": TransformInstanceResponse(instance, executions),
	})
}

// ListInstances lists the tenant's instances.
func (h *APIHandlers) ListInstances(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	instances, err := h.engine.ListInstances(c.Context(), userID)
	if err != nil {
		return handleEngineError(c, err)
	}

	responses := make([]InstanceResponse, 0, len(instances))
	for _, instance := range instances {
		responses = append(responses, TransformInstanceResponse(instance, nil))
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"instances": responses,
	})
}

// ApproveGate approves an awaiting execution and resumes the instance.
func (h *APIHandlers) ApproveGate(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	var req DecisionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	execution, err := h.engine.ApproveGate(c.Context(), c.Params("id"), userID, req.Notes)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"execution": execution,
	})
}

// RejectGate rejects an awaiting execution, pausing or terminating the
// instance.
func (h *APIHandlers) RejectGate(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	var req DecisionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	execution, err := h.engine.RejectGate(c.Context(), c.Params("id"), userID, req.Notes, req.PauseWorkflow)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"execution": execution,
	})
}

// CreateTemplate creates a workflow template for the tenant.
func (h *APIHandlers) CreateTemplate(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	var req CreateTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	template, err := h.templateService.CreateTemplate(c.Context(), req.ToModel(userID))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"template": template,
	})
}

// GetTemplate returns one of the tenant's templates.
func (h *APIHandlers) GetTemplate(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	template, err := h.templateService.GetTemplate(c.Context(), c.Params("id"), userID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"template": template,
	})
}

// ListTemplates lists the tenant's templates, optionally filtered by
// industry.
func (h *APIHandlers) ListTemplates(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	var industry *models.Industry

	if industryStr := c.Query("industry"); industryStr != "" {
		value := models.Industry(industryStr)
		industry = &value
	}

	templates, err := h.templateService.ListTemplates(c.Context(), userID, industry)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"templates": templates,
	})
}

// CreateLead creates a lead for the tenant.
func (h *APIHandlers) CreateLead(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	var req CreateLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	lead, err := h.leadService.CreateLead(c.Context(), req.ToModel(userID))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"lead":    lead,
	})
}

// GetLead returns one of the tenant's leads.
func (h *APIHandlers) GetLead(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	lead, err := h.leadService.GetLead(c.Context(), c.Params("id"), userID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"lead":    lead,
	})
}

// ListLeads lists the tenant's leads.
func (h *APIHandlers) ListLeads(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	leads, err := h.leadService.ListLeads(c.Context(), userID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"leads":   leads,
	})
}

// GetStats returns the tenant's workflow counters.
func (h *APIHandlers) GetStats(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	stats, err := h.statsService.WorkflowStats(c.Context(), userID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"stats":   stats,
	})
}

// GetExecutors lists the available task executors with their parameter
// schemas.
func (h *APIHandlers) GetExecutors(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":   true,
		"executors": h.registry.AvailableExecutors(),
	})
}

// HealthCheck reports persistence health.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, healthy := h.templateService.HealthCheck(c.Context())
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unhealthy",
			"message": message,
		})
	}

	return c.JSON(fiber.Map{
		"status":  "healthy",
		"message": message,
	})
}
