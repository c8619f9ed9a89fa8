package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/stacklok/toolhive-replication-server/internal/versions"
)

var (
	// ErrUnknownNode is returned when a node that is not a configured secondary reports
	ErrUnknownNode = errors.New("unknown node")

	// ErrIncompatibleVersion is returned when a node runs a different major version
	ErrIncompatibleVersion = errors.New("incompatible version")
)

// DefaultStaleAfter is how long a reported status stays current
const DefaultStaleAfter = 10 * time.Minute

// Aggregator keeps the last status pushed by each secondary
type Aggregator struct {
	persistence Persistence
	secondaries map[string]bool
	version     string
	staleAfter  time.Duration
	now         func() time.Time

	mu    sync.RWMutex
	nodes map[string]*NodeStatus
}

// AggregatorOption configures an Aggregator
type AggregatorOption func(*Aggregator)

// WithStaleAfter sets how long a reported status stays current
func WithStaleAfter(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.staleAfter = d
		}
	}
}

// WithAggregatorClock overrides the time source
func WithAggregatorClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		a.now = now
	}
}

// NewAggregator loads previously reported statuses and accepts reports from secondaries.
// An empty secondaries list accepts any node.
func NewAggregator(
	ctx context.Context, persistence Persistence, secondaries []string, version string, opts ...AggregatorOption,
) (*Aggregator, error) {
	a := &Aggregator{
		persistence: persistence,
		secondaries: make(map[string]bool, len(secondaries)),
		version:     version,
		staleAfter:  DefaultStaleAfter,
		now:         time.Now,
		nodes:       make(map[string]*NodeStatus),
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, name := range secondaries {
		a.secondaries[name] = true
	}

	stored, err := persistence.LoadAllStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load node statuses: %w", err)
	}
	for node, st := range stored {
		if a.accepts(node) {
			a.nodes[node] = st
		}
	}
	return a, nil
}

func (a *Aggregator) accepts(node string) bool {
	return len(a.secondaries) == 0 || a.secondaries[node]
}

// Report records the status pushed by a secondary
func (a *Aggregator) Report(ctx context.Context, st *NodeStatus) error {
	if st == nil || st.Node == "" {
		return fmt.Errorf("node name is required")
	}
	if !a.accepts(st.Node) {
		return fmt.Errorf("%w: %s", ErrUnknownNode, st.Node)
	}
	if !versions.SameMajor(st.Version, a.version) {
		return fmt.Errorf("%w: node %s runs %s, primary runs %s", ErrIncompatibleVersion, st.Node, st.Version, a.version)
	}
	if versions.IsNewerVersion(st.Version, a.version) {
		slog.WarnContext(ctx, "Secondary runs a newer version than the primary",
			"node", st.Node, "version", st.Version, "primary_version", a.version)
	}

	received := *st
	received.ReportedAt = a.now().UTC()
	if err := a.persistence.SaveStatus(ctx, received.Node, &received); err != nil {
		return fmt.Errorf("failed to persist status of node %s: %w", received.Node, err)
	}

	a.mu.Lock()
	a.nodes[received.Node] = &received
	a.mu.Unlock()
	return nil
}

// Nodes returns the statuses of every secondary ordered by name.
// Configured secondaries that never reported or stopped reporting are unknown.
func (a *Aggregator) Nodes() []NodeStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make(map[string]bool, len(a.nodes)+len(a.secondaries))
	for name := range a.nodes {
		names[name] = true
	}
	for name := range a.secondaries {
		names[name] = true
	}

	now := a.now()
	result := make([]NodeStatus, 0, len(names))
	for name := range names {
		st, ok := a.nodes[name]
		if !ok {
			result = append(result, NodeStatus{Node: name, Health: HealthUnknown})
			continue
		}
		current := *st
		if now.Sub(current.ReportedAt) > a.staleAfter {
			current.Health = HealthUnknown
		}
		result = append(result, current)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Node < result[j].Node })
	return result
}

// Overall combines the local health with the health of every secondary
func (a *Aggregator) Overall(local Health) Health {
	overall := local
	for _, st := range a.Nodes() {
		overall = overall.Worst(st.Health)
	}
	return overall
}
