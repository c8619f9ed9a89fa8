// Package service provides the business logic behind the replication HTTP API
package service

import (
	"context"
	"errors"

	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
	"github.com/stacklok/toolhive-replication-server/internal/status"
	"github.com/stacklok/toolhive-replication-server/internal/verification"
)

const (
	// DefaultEventLimit is the page size of an event listing without a limit
	DefaultEventLimit = 500
	// MaxEventLimit bounds the page size of an event listing
	MaxEventLimit = 5000
)

var (
	// ErrNotPrimary is returned for operations only the primary serves
	ErrNotPrimary = errors.New("node is not the primary")
	// ErrInvalidRequest is returned for malformed request parameters
	ErrInvalidRequest = errors.New("invalid request")
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go ReplicationService

// ReplicationService defines the operations the HTTP API exposes
type ReplicationService interface {
	// CheckReadiness checks if the node is ready to serve requests
	CheckReadiness(ctx context.Context) error

	// Status returns the status of this node and, on the primary, of every known secondary
	Status(ctx context.Context) (*status.Response, error)

	// ReportStatus records the status pushed by a secondary
	ReportStatus(ctx context.Context, st *status.NodeStatus) (*status.Response, error)

	// ListEvents returns events after opts.After and advances the consumer cursor
	ListEvents(ctx context.Context, opts ListEventsOptions) ([]eventlog.Event, int64, error)

	// GetChecksum returns the checksum the primary recorded for key
	GetChecksum(ctx context.Context, key resource.Key) (*verification.Record, error)
}

// ListEventsOptions is the options for the ListEvents operation
type ListEventsOptions struct {
	// Consumer names the secondary draining the log. When set, After is
	// saved as its cursor so the primary can prune what it applied.
	Consumer string
	After    int64
	Limit    int
}
