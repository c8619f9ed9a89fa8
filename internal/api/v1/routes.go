package v1

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/toolhive-replication-server/internal/api/common"
	"github.com/stacklok/toolhive-replication-server/internal/auth"
	"github.com/stacklok/toolhive-replication-server/internal/service"
	"github.com/stacklok/toolhive-replication-server/internal/status"
	"github.com/stacklok/toolhive-replication-server/internal/verification"
	"github.com/stacklok/toolhive-replication-server/internal/versions"
)

// maxStatusBodySize bounds the body of a pushed node status
const maxStatusBodySize = 1 << 20

// Routes handles HTTP requests of the replication API
type Routes struct {
	service service.ReplicationService
}

// NewRoutes creates a new Routes instance with the given service
func NewRoutes(svc service.ReplicationService) *Routes {
	return &Routes{service: svc}
}

// HealthRouter creates a router for health check endpoints
func HealthRouter(svc service.ReplicationService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()
	r.Get("/health", healthHandler)
	r.Get("/readiness", routes.readiness)
	r.Get("/version", versionHandler)

	return r
}

// StatusRouter creates a router for the node status endpoints
func StatusRouter(svc service.ReplicationService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()
	r.Get("/", routes.getStatus)
	r.Post("/", routes.reportStatus)

	return r
}

// Router creates a router for the endpoints secondaries replicate through
func Router(svc service.ReplicationService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()
	r.Get("/events", routes.listEvents)
	r.Get("/checksums/{type}/*", routes.getChecksum)

	return r
}

// healthHandler reports liveness
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readiness reports whether the node can serve requests
func (routes *Routes) readiness(w http.ResponseWriter, r *http.Request) {
	if err := routes.service.CheckReadiness(r.Context()); err != nil {
		common.WriteErrorResponse(w, "node not ready: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	common.WriteJSONResponse(w, HealthResponse{Status: "ready"}, http.StatusOK)
}

// versionHandler returns build information
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}

// getStatus returns the status of this node. Collection failures are reported
// as a structured payload with success=false.
func (routes *Routes) getStatus(w http.ResponseWriter, r *http.Request) {
	if !authorized(r, auth.ScopeNode) {
		common.WriteErrorResponse(w, "token does not grant node access", http.StatusForbidden)
		return
	}

	resp, err := routes.service.Status(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to collect status", "error", err)
		common.WriteJSONResponse(w, status.Response{
			Success: false,
			Health:  status.HealthUnknown,
			Error:   err.Error(),
		}, http.StatusOK)
		return
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// reportStatus accepts the status pushed by a secondary
func (routes *Routes) reportStatus(w http.ResponseWriter, r *http.Request) {
	var st status.NodeStatus
	if err := json.NewDecoder(io.LimitReader(r.Body, maxStatusBodySize)).Decode(&st); err != nil {
		writeStatusError(w, "invalid status payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.Issuer != st.Node {
		writeStatusError(w, "token was not issued by node "+st.Node, http.StatusForbidden)
		return
	}

	resp, err := routes.service.ReportStatus(r.Context(), &st)
	if err != nil {
		code := statusCode(err)
		if code == http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "Failed to record node status", "node", st.Node, "error", err)
		}
		writeStatusError(w, err.Error(), code)
		return
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// listEvents returns change events after the cursor of a secondary
func (routes *Routes) listEvents(w http.ResponseWriter, r *http.Request) {
	if !authorized(r, auth.ScopeNode) {
		common.WriteErrorResponse(w, "token does not grant node access", http.StatusForbidden)
		return
	}

	query := r.URL.Query()
	opts := service.ListEventsOptions{Consumer: query.Get("consumer")}

	if after := query.Get("after"); after != "" {
		v, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			common.WriteErrorResponse(w, "invalid after parameter: must be an integer", http.StatusBadRequest)
			return
		}
		opts.After = v
	}
	if limit := query.Get("limit"); limit != "" {
		v, err := strconv.Atoi(limit)
		if err != nil || v < 0 {
			common.WriteErrorResponse(w, "invalid limit parameter: must be a non-negative integer", http.StatusBadRequest)
			return
		}
		opts.Limit = v
	}

	// A node may only advance its own cursor
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && opts.Consumer != "" && claims.Issuer != opts.Consumer {
		common.WriteErrorResponse(w, "token was not issued by consumer "+opts.Consumer, http.StatusForbidden)
		return
	}

	events, cursor, err := routes.service.ListEvents(r.Context(), opts)
	if err != nil {
		writeError(r, w, err)
		return
	}
	common.WriteJSONResponse(w, EventsResponse{Events: events, Cursor: cursor}, http.StatusOK)
}

// getChecksum returns the checksum the primary recorded for a resource
func (routes *Routes) getChecksum(w http.ResponseWriter, r *http.Request) {
	key, err := common.ResourceKeyParams(r)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !authorized(r, key.String()) {
		common.WriteErrorResponse(w, "token does not grant access to "+key.String(), http.StatusForbidden)
		return
	}

	rec, err := routes.service.GetChecksum(r.Context(), key)
	if err != nil {
		writeError(r, w, err)
		return
	}
	common.WriteJSONResponse(w, ChecksumResponse{Checksum: rec.Checksum, VerifiedAt: rec.VerifiedAt}, http.StatusOK)
}

// authorized reports whether the request token grants scope.
// Requests served without the auth middleware carry no claims and are allowed.
func authorized(r *http.Request, scope string) bool {
	claims, ok := auth.ClaimsFromContext(r.Context())
	return !ok || claims.Allows(scope)
}

// statusCode maps service errors to HTTP status codes
func statusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, status.ErrUnknownNode):
		return http.StatusForbidden
	case errors.Is(err, verification.ErrMissingOnPrimary):
		return http.StatusNotFound
	case errors.Is(err, verification.ErrNotRecorded),
		errors.Is(err, status.ErrIncompatibleVersion):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotPrimary):
		return http.StatusMisdirectedRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(r *http.Request, w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		common.WriteErrorResponse(w, "internal error", code)
		return
	}
	common.WriteJSONResponse(w, ErrorResponse{Error: err.Error(), Code: errorCode(err)}, code)
}

// errorCode names the verification errors clients act on
func errorCode(err error) string {
	switch {
	case errors.Is(err, verification.ErrMissingOnPrimary):
		return ErrorCodeMissingOnPrimary
	case errors.Is(err, verification.ErrNotRecorded):
		return ErrorCodeNotRecorded
	default:
		return ""
	}
}

// writeStatusError writes a status payload with success=false
func writeStatusError(w http.ResponseWriter, message string, code int) {
	common.WriteJSONResponse(w, status.Response{Success: false, Error: message}, code)
}
