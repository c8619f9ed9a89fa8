package service

import (
	"context"
	"fmt"

	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
	"github.com/stacklok/toolhive-replication-server/internal/status"
	"github.com/stacklok/toolhive-replication-server/internal/verification"
)

// StatusCollector builds the status of this node
type StatusCollector interface {
	Collect(ctx context.Context) (*status.NodeStatus, error)
}

// StatusAggregator tracks the statuses pushed by secondaries
type StatusAggregator interface {
	Report(ctx context.Context, st *status.NodeStatus) error
	Nodes() []status.NodeStatus
	Overall(local status.Health) status.Health
}

// EventSource serves the primary event log
type EventSource interface {
	Drain(ctx context.Context, cursor int64, limit int) ([]eventlog.Event, int64, error)
	SaveCursor(ctx context.Context, consumer string, id int64) error
}

// ChecksumLookup returns recorded primary checksums
type ChecksumLookup interface {
	Lookup(ctx context.Context, key resource.Key) (*verification.Record, error)
}

// replicationSvc implements the ReplicationService interface
type replicationSvc struct {
	collector  StatusCollector
	aggregator StatusAggregator
	events     EventSource
	checksums  ChecksumLookup
	readiness  func(ctx context.Context) error
}

var _ ReplicationService = (*replicationSvc)(nil)

// Option is a functional option for configuring the service
type Option func(*replicationSvc)

// WithAggregator serves statuses pushed by secondaries. Primary only.
func WithAggregator(a StatusAggregator) Option {
	return func(s *replicationSvc) {
		s.aggregator = a
	}
}

// WithEventSource serves the event log. Primary only.
func WithEventSource(e EventSource) Option {
	return func(s *replicationSvc) {
		s.events = e
	}
}

// WithChecksums serves recorded checksums. Primary only.
func WithChecksums(c ChecksumLookup) Option {
	return func(s *replicationSvc) {
		s.checksums = c
	}
}

// WithReadinessCheck adds a check run by CheckReadiness, such as a database ping
func WithReadinessCheck(check func(ctx context.Context) error) Option {
	return func(s *replicationSvc) {
		s.readiness = check
	}
}

// New creates a new replication service backed by collector
func New(collector StatusCollector, opts ...Option) (ReplicationService, error) {
	if collector == nil {
		return nil, fmt.Errorf("status collector is required")
	}

	s := &replicationSvc{collector: collector}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *replicationSvc) CheckReadiness(ctx context.Context) error {
	if s.readiness == nil {
		return nil
	}
	return s.readiness(ctx)
}

func (s *replicationSvc) Status(ctx context.Context) (*status.Response, error) {
	local, err := s.collector.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect node status: %w", err)
	}

	resp := &status.Response{
		Success: true,
		Node:    local.Node,
		Role:    local.Role,
		Version: local.Version,
		Health:  local.Health,
		Fields:  &local.Fields,
	}
	if s.aggregator != nil {
		resp.Secondaries = s.aggregator.Nodes()
		resp.Health = s.aggregator.Overall(local.Health)
	}
	return resp, nil
}

func (s *replicationSvc) ReportStatus(ctx context.Context, st *status.NodeStatus) (*status.Response, error) {
	if s.aggregator == nil {
		return nil, ErrNotPrimary
	}
	if st == nil {
		return nil, fmt.Errorf("%w: empty status", ErrInvalidRequest)
	}
	if err := s.aggregator.Report(ctx, st); err != nil {
		return nil, err
	}

	local, err := s.collector.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect node status: %w", err)
	}
	return &status.Response{
		Success: true,
		Node:    local.Node,
		Role:    local.Role,
		Version: local.Version,
		Health:  local.Health,
	}, nil
}

func (s *replicationSvc) ListEvents(ctx context.Context, opts ListEventsOptions) ([]eventlog.Event, int64, error) {
	if s.events == nil {
		return nil, 0, ErrNotPrimary
	}
	if opts.After < 0 {
		return nil, 0, fmt.Errorf("%w: negative cursor %d", ErrInvalidRequest, opts.After)
	}

	limit := opts.Limit
	switch {
	case limit <= 0:
		limit = DefaultEventLimit
	case limit > MaxEventLimit:
		limit = MaxEventLimit
	}

	if opts.Consumer != "" && opts.After > 0 {
		if err := s.events.SaveCursor(ctx, opts.Consumer, opts.After); err != nil {
			return nil, 0, fmt.Errorf("failed to save cursor of %s: %w", opts.Consumer, err)
		}
	}
	return s.events.Drain(ctx, opts.After, limit)
}

func (s *replicationSvc) GetChecksum(ctx context.Context, key resource.Key) (*verification.Record, error) {
	if s.checksums == nil {
		return nil, ErrNotPrimary
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return s.checksums.Lookup(ctx, key)
}
