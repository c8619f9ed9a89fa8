package status

import "time"

// Health summarises how well a node is replicating
type Health string

const (
	// HealthHealthy means every tracked resource is in sync
	HealthHealthy Health = "healthy"

	// HealthDegraded means some resources are failing or mismatched
	HealthDegraded Health = "degraded"

	// HealthUnhealthy means no tracked resource is usable
	HealthUnhealthy Health = "unhealthy"

	// HealthUnknown is reported for nodes that stopped reporting
	HealthUnknown Health = "unknown"
)

// rank orders health values from best to worst
func (h Health) rank() int {
	switch h {
	case HealthHealthy:
		return 0
	case HealthDegraded:
		return 1
	case HealthUnknown:
		return 2
	case HealthUnhealthy:
		return 3
	default:
		return 2
	}
}

// Worst returns the worse of h and other
func (h Health) Worst(other Health) Health {
	if other.rank() > h.rank() {
		return other
	}
	return h
}

// Fields are the counters reported by a node
type Fields struct {
	// Registries is the number of tracked resources
	Registries int `json:"registries"`

	// Synced counts resources whose last sync succeeded
	Synced int `json:"synced"`

	// Failed counts resources whose last sync failed
	Failed int `json:"failed"`

	// PendingResync counts resources flagged by events or mismatches
	PendingResync int `json:"pendingResync"`

	// ForceRedownload counts resources waiting for a full redownload
	ForceRedownload int `json:"forceRedownload"`

	// ChecksumMismatch counts resources whose checksum differs from the primary
	ChecksumMismatch int `json:"checksumMismatch"`

	// MissingOnPrimary counts resources the primary no longer has
	MissingOnPrimary int `json:"missingOnPrimary"`

	// Verified counts resources with a matching checksum
	Verified int `json:"verified"`

	// LastSuccessfulSyncAt is the most recent successful sync of any resource
	LastSuccessfulSyncAt *time.Time `json:"lastSuccessfulSyncAt,omitempty"`

	// LastVerifiedAt is the most recent successful verification of any resource
	LastVerifiedAt *time.Time `json:"lastVerifiedAt,omitempty"`

	// EventCursor is the id of the last change event applied by a secondary
	EventCursor int64 `json:"eventCursor,omitempty"`
}

// NodeStatus is the status a node reports about itself
type NodeStatus struct {
	Node       string    `json:"node"`
	Role       string    `json:"role"`
	Version    string    `json:"version,omitempty"`
	Health     Health    `json:"health"`
	Fields     Fields    `json:"fields"`
	ReportedAt time.Time `json:"reportedAt"`
}

// Response is the body of GET /status and POST /status.
// A response with Success=false carries the reason in Error.
type Response struct {
	Success     bool         `json:"success"`
	Node        string       `json:"node,omitempty"`
	Role        string       `json:"role,omitempty"`
	Version     string       `json:"version,omitempty"`
	Health      Health       `json:"health,omitempty"`
	Fields      *Fields      `json:"fields,omitempty"`
	Secondaries []NodeStatus `json:"secondaries,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Evaluate derives the health of a node from its counters
func Evaluate(f Fields) Health {
	switch {
	case f.Registries == 0:
		return HealthHealthy
	case f.Failed+f.ForceRedownload >= f.Registries && f.Synced == 0:
		return HealthUnhealthy
	case f.Failed > 0, f.ForceRedownload > 0, f.ChecksumMismatch > 0, f.MissingOnPrimary > 0:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}
