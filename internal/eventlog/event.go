// Package eventlog records change events on the primary and applies them on secondaries.
//
// The log is append-only and totally ordered by event id. Consumers keep a
// cursor with the last id they processed and drain everything after it.
// Delivery is at-least-once, so every handler must be idempotent.
package eventlog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

// Type is the discriminator of a change event
type Type string

const (
	// TypeRepositoryCreated is raised when a resource starts being tracked on the primary
	TypeRepositoryCreated Type = "repository_created"
	// TypeRepositoryUpdated is raised when refs of a resource change on the primary
	TypeRepositoryUpdated Type = "repository_updated"
	// TypeRepositoryDeleted is raised when a resource is permanently removed
	TypeRepositoryDeleted Type = "repository_deleted"
	// TypeRepositoryRenamed is raised when a resource moves to a new id
	TypeRepositoryRenamed Type = "repository_renamed"
	// TypeStorageMigrated is raised when a resource moves between storages on the primary
	TypeStorageMigrated Type = "storage_migrated"
	// TypeCacheInvalidated is raised when primary caches for a resource were flushed
	TypeCacheInvalidated Type = "cache_invalidated"
	// TypeVerificationReset is raised when the primary discards its recorded checksum
	TypeVerificationReset Type = "verification_reset"
)

// Types lists every event type
var Types = []Type{
	TypeRepositoryCreated,
	TypeRepositoryUpdated,
	TypeRepositoryDeleted,
	TypeRepositoryRenamed,
	TypeStorageMigrated,
	TypeCacheInvalidated,
	TypeVerificationReset,
}

// Valid reports whether t is a known event type
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Event is a single change notification
type Event struct {
	ID        int64           `json:"id"`
	Type      Type            `json:"type"`
	Resource  resource.Key    `json:"resource"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// UpdatedPayload describes which refs changed
type UpdatedPayload struct {
	ChangedRefs []string `json:"changedRefs,omitempty"`
}

// RenamedPayload carries the id the resource had before the rename
type RenamedPayload struct {
	OldID string `json:"oldId"`
}

// StorageMigratedPayload carries the storage names of a migration
type StorageMigratedPayload struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// DecodePayload unmarshals the payload of e into v.
// An empty payload leaves v untouched and unknown fields are ignored.
func (e Event) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("invalid payload for event %d (%s): %w", e.ID, e.Type, err)
	}
	return nil
}

// encodePayload marshals payload, mapping nil to an empty object
func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage(`{}`), nil
		}
		if !json.Valid(p) {
			return nil, fmt.Errorf("payload is not valid JSON")
		}
		return p, nil
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		return data, nil
	}
}
