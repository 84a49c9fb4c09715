package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/civinigrani/civigate/middleware"
	"github.com/civinigrani/civigate/models"
	"github.com/civinigrani/civigate/services/agent"
	"github.com/civinigrani/civigate/utils"
)

// AgentHandler handles agent query HTTP requests
type AgentHandler struct {
	orchestrator *agent.Orchestrator
	validate     *validator.Validate
	logger       *zap.Logger
}

// NewAgentHandler creates a new AgentHandler
func NewAgentHandler(orchestrator *agent.Orchestrator, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{
		orchestrator: orchestrator,
		validate:     validator.New(),
		logger:       logger,
	}
}

// HandleQuery handles POST /api/v1/agent/query.
// The orchestrator never fails the request: policy denials, scanner blocks
// and upstream errors all come back as a badged response with HTTP 200.
func (h *AgentHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "invalid request body", nil)
		return
	}

	// Headers take precedence over body fields when both are present.
	if identity := middleware.GetIdentityFromContext(ctx); identity != nil {
		if identity.Role != "" {
			req.Role = identity.Role
		}
		if identity.ID != "" && identity.ID != "anonymous" {
			req.IdentityID = identity.ID
		}
	}

	if err := h.validate.Struct(&req); err != nil {
		details := map[string]interface{}{}
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		_ = utils.WriteBadRequest(w, "validation failed", details)
		return
	}

	resp := h.orchestrator.Run(ctx, req)

	h.logger.Info("agent query handled",
		zap.String("request_id", resp.RequestID),
		zap.String("role", string(req.Role)),
		zap.String("badge", string(resp.Badge)))

	_ = utils.WriteOK(w, resp)
}
