package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/civinigrani/civigate/models"
	"github.com/civinigrani/civigate/utils"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// TrailReader reads back recent audit records, newest first.
type TrailReader interface {
	Recent(n int) ([]*models.AuditRecord, error)
}

// AuditHandler serves the audit trail read surface
type AuditHandler struct {
	reader TrailReader
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(reader TrailReader, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{reader: reader, logger: logger}
}

// HandleRecent handles GET /api/v1/audit/records
func (h *AuditHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			_ = utils.WriteBadRequest(w, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	records, err := h.reader.Recent(limit)
	if err != nil {
		h.logger.Error("failed to read audit trail", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "failed to read audit trail")
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}
