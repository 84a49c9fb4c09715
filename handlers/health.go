package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/civinigrani/civigate/app"
)

// HealthCheck returns a simple health check handler
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// ReadinessCheck reports whether the gateway can serve governed queries.
func ReadinessCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"status": "ready",
			"checks": map[string]string{},
		}
		checks := response["checks"].(map[string]string)

		if deps.Engine == nil || len(deps.Engine.Catalog()) == 0 {
			response["status"] = "not_ready"
			checks["policy_engine"] = "no_operations"
		} else {
			checks["policy_engine"] = "healthy"
		}

		if deps.AuditService == nil {
			response["status"] = "not_ready"
			checks["audit_trail"] = "not_initialized"
		} else {
			checks["audit_trail"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if response["status"] == "ready" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(response)
	}
}
