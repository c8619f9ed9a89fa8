// Package storage creates the storage-dependent components of a node as a
// family, so registries, leases, events and checksum records always share
// one backend.
package storage

import (
	"context"
	"fmt"

	"github.com/stacklok/toolhive-replication-server/internal/config"
	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
	"github.com/stacklok/toolhive-replication-server/internal/lease"
	"github.com/stacklok/toolhive-replication-server/internal/registry"
	"github.com/stacklok/toolhive-replication-server/internal/status"
	"github.com/stacklok/toolhive-replication-server/internal/verification"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks github.com/stacklok/toolhive-replication-server/internal/app/storage Factory

// Factory creates storage-dependent components.
// Implementations return components backed by the same storage type.
type Factory interface {
	// CreateRegistryStore creates the store of replication state per resource
	CreateRegistryStore(ctx context.Context) (registry.Store, error)

	// CreateLeaseManager creates the manager of per-resource work leases
	CreateLeaseManager(ctx context.Context) (lease.Manager, error)

	// CreateEventStore creates the store of the primary change event log
	CreateEventStore(ctx context.Context) (eventlog.Store, error)

	// CreateCursorStore creates where a secondary keeps its event cursor
	CreateCursorStore(ctx context.Context) (eventlog.CursorStore, error)

	// CreateRecordStore creates the store of primary checksum records
	CreateRecordStore(ctx context.Context) (verification.RecordStore, error)

	// CreateStatusPersistence creates where the primary keeps reported node statuses
	CreateStatusPersistence(ctx context.Context) (status.Persistence, error)

	// Ping reports whether the storage backend is reachable
	Ping(ctx context.Context) error

	// Cleanup releases resources held by the factory, such as connection pools
	Cleanup()
}

// NewStorageFactory creates a factory for the configured storage type
func NewStorageFactory(ctx context.Context, cfg *config.Config) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		return NewDatabaseFactory(ctx, cfg)
	case config.StorageTypeFile:
		return NewFileFactory(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.GetStorageType())
	}
}
