package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/registry"
	"github.com/loopworklabs/loopwork/pkg/services"
)

type APIHandlers struct {
	workflowService  *services.WorkflowService
	executionService *services.ExecutionService
	validator        *validator.Validate
	registry         *registry.Registry
}

func NewAPIHandlers(
	workflowService *services.WorkflowService,
	executionService *services.ExecutionService,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		executionService: executionService,
		validator:        validator,
		registry:         registry,
	}
}

// Register mounts all routes on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	w := app.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/activate", h.ActivateWorkflow)
	w.Post("/:id/trigger", h.TriggerWorkflow)
	w.Get("/:id/executions", h.GetWorkflowExecutions)

	e := app.Group("/executions")
	e.Get("/:id", h.GetExecution)
	e.Post("/:id/cancel", h.CancelExecution)
	e.Get("/:id/activities", h.GetExecutionActivities)
}

// organization extracts the tenant header. Every data route requires it.
func organization(c fiber.Ctx) (string, bool) {
	org := c.Get(OrganizationHeader)

	return org, org != ""
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"action_types": h.registry.Types(),
		"timestamp":    time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	org, ok := organization(c)
	if !ok {
		return badRequest(c, "Organization header is required")
	}

	workflows, err := h.workflowService.List(c.Context(), org)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	org, ok := organization(c)
	if !ok {
		return badRequest(c, "Organization header is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), org, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	org, ok := organization(c)
	if !ok {
		return badRequest(c, "Organization header is required")
	}

	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), &models.Workflow{
		OrganizationID: org,
		Name:           req.Name,
		Description:    req.Description,
		Nodes:          req.Nodes,
		Edges:          req.Edges,
		Variables:      req.Variables,
		BusinessHours:  req.BusinessHours,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	org, ok := organization(c)
	if !ok {
		return badRequest(c, "Organization header is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.Update(c.Context(), org, c.Params("id"), &models.Workflow{
		OrganizationID: org,
		Name:           req.Name,
		Description:    req.Description,
		Nodes:          req.Nodes,
		Edges:          req.Edges,
		Variables:      req.Variables,
		BusinessHours:  req.BusinessHours,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	org, ok := organization(c)
	if !ok {
		return badRequest(c, "Organization header is required")
	}

	if err := h.workflowService.Delete(c.Context(), org, c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	org, ok := organization(c)
	if !ok {
		return badRequest(c, "Organization header is required")
	}

	activated, err := h.workflowService.Activate(c.Context(), org, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(activated)
}

// TriggerWorkflow accepts one trigger event and starts an execution. The
// response is 202: the run happens on a worker, not in the request.
func (h *APIHandlers) TriggerWorkflow(c fiber.Ctx) error {
	org, ok := organization(c)
	if !ok {
		return badRequest(c, "Organization header is required")
	}

	var req TriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	execution, err := h.executionService.Start(c.Context(), services.StartRequest{
		OrganizationID: org,
		WorkflowID:     c.Params("id"),
		EventID:        req.EventID,
		TriggerData:    req.Data,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(TriggerResponse{
		ExecutionID: execution.ID,
		Status:      string(execution.Status),
	})
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	org, ok := organization(c)
	if !ok {
		return badRequest(c, "Organization header is required")
	}

	executions, err := h.executionService.ListByWorkflow(c.Context(), org, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"executions": executions})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	org, ok := organization(c)
	if !ok {
		return badRequest(c, "Organization header is required")
	}

	execution, err := h.executionService.FetchByID(c.Context(), org, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	org, ok := organization(c)
	if !ok {
		return badRequest(c, "Organization header is required")
	}

	if err := h.executionService.Cancel(c.Context(), org, c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) GetExecutionActivities(c fiber.Ctx) error {
	org, ok := organization(c)
	if !ok {
		return badRequest(c, "Organization header is required")
	}

	activities, err := h.executionService.Activities(c.Context(), org, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"activities": activities})
}
