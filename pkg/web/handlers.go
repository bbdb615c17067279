package web

import (
	"encoding"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/registry"
	"github.com/dukex/flytestate/pkg/services"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	executionService *services.Execution
	registry         *registry.Registry
	parallelism      models.ParallelismPolicy
}

type HandlerOption func(*APIHandlers)

// WithParallelismPolicy sets how a max_parallelism of 0 is reported.
func WithParallelismPolicy(policy models.ParallelismPolicy) HandlerOption {
	return func(h *APIHandlers) {
		h.parallelism = policy
	}
}

func NewAPIHandlers(executionService *services.Execution, registry *registry.Registry, opts ...HandlerOption) *APIHandlers {
	h := &APIHandlers{
		executionService: executionService,
		registry:         registry,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Register mounts every route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	e := router.Group("/executions")
	e.Put("/", h.PutExecution)
	e.Get("/", h.GetExecutions)
	e.Get("/:project/:domain/:name", h.GetExecution)
	e.Get("/:project/:domain/:name/task-executions", h.GetTaskExecutions)

	router.Put("/task-executions", h.PutTaskExecution)
}

func (h *APIHandlers) PutExecution(c fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return badRequest(c, "Request body must be an encoded Execution")
	}

	_, err := h.executionService.Ingest(c.Context(), body)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PutTaskExecution(c fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return badRequest(c, "Request body must be an encoded TaskExecution")
	}

	_, err := h.executionService.IngestTaskExecution(c.Context(), body)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	req, err := parseListExecutionsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.executionService.ListExecutions(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	views := make([]models.ExecutionView, 0, len(result.Executions))
	for _, execution := range result.Executions {
		views = append(views, execution.View(h.parallelism))
	}

	return c.JSON(ExecutionListResponse{
		Executions: views,
		Pagination: Pagination{Limit: result.Limit, Offset: result.Offset},
		Sort:       result.Sort,
	})
}

func parseListExecutionsRequest(c fiber.Ctx) (services.ListExecutionsRequest, error) {
	req := services.ListExecutionsRequest{
		Org:     c.Query("org"),
		Project: c.Query("project"),
		Domain:  c.Query("domain"),
		Phase:   c.Query("phase"),
		Sort:    c.Query("sort"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return req, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return req, err
		}

		req.Offset = offset
	}

	return req, nil
}

// executionID reads the identifier from the path; the org comes from the
// optional org query parameter.
func executionID(c fiber.Ctx) models.WorkflowExecutionIdentifier {
	return models.WorkflowExecutionIdentifier{
		Org:     c.Query("org"),
		Project: c.Params("project"),
		Domain:  c.Params("domain"),
		Name:    c.Params("name"),
	}
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.executionService.FetchByID(c.Context(), executionID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return respond(c, execution.View(h.parallelism))
}

func (h *APIHandlers) GetTaskExecutions(c fiber.Ctx) error {
	taskExecutions, err := h.executionService.TaskExecutions(c.Context(), executionID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TaskExecutionListResponse{TaskExecutions: taskExecutions})
}

// respond writes record as JSON, or in its wire encoding when the client
// asks for protobuf.
func respond[T encoding.BinaryMarshaler](c fiber.Ctx, record T) error {
	if c.Accepts(fiber.MIMEApplicationJSON, MIMEApplicationProtobuf) != MIMEApplicationProtobuf {
		return c.JSON(record)
	}

	payload, err := record.MarshalBinary()
	if err != nil {
		return internalError(c, err)
	}

	c.Set(fiber.HeaderContentType, MIMEApplicationProtobuf)

	return c.Send(payload)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.executionService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "flytestate API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "flytestate API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
