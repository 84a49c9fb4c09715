package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/civinigrani/civigate/models"
	"github.com/civinigrani/civigate/utils"
)

// CatalogProvider exposes the governed operation catalog.
type CatalogProvider interface {
	Catalog() []models.Operation
}

// ToolsHandler serves the operation catalog
type ToolsHandler struct {
	catalog CatalogProvider
	logger  *zap.Logger
}

// NewToolsHandler creates a new ToolsHandler
func NewToolsHandler(catalog CatalogProvider, logger *zap.Logger) *ToolsHandler {
	return &ToolsHandler{catalog: catalog, logger: logger}
}

// HandleList handles GET /api/v1/tools
func (h *ToolsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ops := h.catalog.Catalog()
	_ = utils.WriteOK(w, map[string]interface{}{
		"operations": ops,
		"count":      len(ops),
	})
}
