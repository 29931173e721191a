package rest

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/graph"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/logger"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/metrics"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/parser"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/persistence"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/response"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// submitRequest is the body of POST /api/v1/executions. Exactly one of
// Definition and WorkflowID must identify the workflow; an inline
// definition wins when both are present.
type submitRequest struct {
	Definition *types.WorkflowDefinition `json:"definition,omitempty"`
	WorkflowID string                    `json:"workflow_id,omitempty"`
	Input      map[string]any            `json:"input,omitempty"`
}

// handleSubmit accepts a workflow for asynchronous execution. The
// definition is validated before the 202 so a bad workflow is refused
// synchronously; the execution itself runs in the background and is
// observed through GET /api/v1/executions/:id.
func (s *Server) handleSubmit(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body: "+err.Error())
	}

	def := req.Definition
	if def == nil {
		if req.WorkflowID == "" {
			return response.BadRequest(c, "either definition or workflow_id is required")
		}
		def = s.lookupDefinition(req.WorkflowID)
		if def == nil {
			return response.NotFound(c, fmt.Sprintf("workflow %q is not registered", req.WorkflowID))
		}
	}
	if err := validateDefinition(def); err != nil {
		return response.BadRequest(c, err.Error())
	}

	select {
	case s.sem <- struct{}{}:
	default:
		return response.TooManyRequests(c, "submission pool is full")
	}

	executionID := uuid.NewString()
	go func() {
		defer func() { <-s.sem }()
		if _, err := s.engine.ExecuteWithID(context.Background(), executionID, def, req.Input); err != nil {
			logger.Error("background execution refused",
				zap.String("execution_id", executionID),
				zap.String("workflow_id", def.ID),
				zap.Error(err))
		}
	}()

	return response.Accepted(c, fiber.Map{
		"execution_id": executionID,
		"workflow_id":  def.ID,
	})
}

// handleGetExecution returns the state of one execution, live or
// persisted.
func (s *Server) handleGetExecution(c *fiber.Ctx) error {
	id := c.Params("id")
	exec, err := s.engine.Lookup(c.Context(), id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return response.NotFound(c, fmt.Sprintf("execution %q not found", id))
		}
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, exec)
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	if s.coll == nil {
		return response.Success(c, metrics.Snapshot{})
	}
	return response.Success(c, s.coll.Snapshot())
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return response.Success(c, fiber.Map{
		"status":  "ok",
		"active":  s.engine.ActiveCount(),
		"pending": len(s.sem),
	})
}

// handleRegisterWorkflow stores a validated definition under its id so
// later submissions can reference it. Re-registering an id replaces
// the stored definition.
func (s *Server) handleRegisterWorkflow(c *fiber.Ctx) error {
	var def types.WorkflowDefinition
	if err := c.BodyParser(&def); err != nil {
		return response.BadRequest(c, "invalid request body: "+err.Error())
	}
	if err := validateDefinition(&def); err != nil {
		return response.BadRequest(c, err.Error())
	}

	s.storeDefinition(&def)
	logger.Info("workflow registered",
		zap.String("workflow_id", def.ID),
		zap.Int("steps", len(def.Steps)))
	return response.Success(c, fiber.Map{"workflow_id": def.ID})
}

func (s *Server) handleGetWorkflow(c *fiber.Ctx) error {
	id := c.Params("id")
	def := s.lookupDefinition(id)
	if def == nil {
		return response.NotFound(c, fmt.Sprintf("workflow %q is not registered", id))
	}
	return response.Success(c, def)
}

func (s *Server) storeDefinition(def *types.WorkflowDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions[def.ID] = def
}

func (s *Server) lookupDefinition(id string) *types.WorkflowDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.definitions[id]
}

// validateDefinition runs the structural checks and the cycle check so
// a bad definition is refused at submission time.
func validateDefinition(def *types.WorkflowDefinition) error {
	if err := parser.Validate(def); err != nil {
		return err
	}
	g, err := graph.Build(def.Steps)
	if err != nil {
		return err
	}
	if _, err := g.TopologicalOrder(); err != nil {
		return err
	}
	return nil
}
