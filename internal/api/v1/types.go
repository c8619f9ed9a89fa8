// Package v1 provides the replication HTTP endpoints: health, node status,
// change events and primary checksums.
package v1

import (
	"time"

	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
}

// Error codes that let clients tell domain errors from routing errors
const (
	ErrorCodeMissingOnPrimary = "missing_on_primary"
	ErrorCodeNotRecorded      = "not_recorded"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// EventsResponse is the body of GET /api/v1/events
type EventsResponse struct {
	Events []eventlog.Event `json:"events"`
	// Cursor is the id of the last returned event, or the requested cursor
	// when no events are pending
	Cursor int64 `json:"cursor"`
}

// ChecksumResponse is the body of GET /api/v1/checksums/{type}/{id}
type ChecksumResponse struct {
	Checksum   string    `json:"checksum"`
	VerifiedAt time.Time `json:"verifiedAt"`
}
