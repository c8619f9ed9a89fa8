package app

import (
	"github.com/stacklok/toolhive-replication-server/internal/registry"
	"github.com/stacklok/toolhive-replication-server/internal/service"
	"github.com/stacklok/toolhive-replication-server/internal/sync/coordinator"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Coordinator runs the background replication loops
	Coordinator coordinator.Coordinator

	// Service answers the replication API
	Service service.ReplicationService

	// Store holds the replication state of every resource
	Store registry.Store
}
