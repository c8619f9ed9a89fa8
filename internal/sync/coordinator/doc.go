// Package coordinator runs the background replication loops of a node.
//
// The orchestration layer sits on top of internal/sync and schedules the
// periodic passes a node performs for its role:
//
//   - Primary: record checksums of tracked resources, append change events
//     for the changes found, and prune events every secondary consumed
//   - Secondary: consume change events from the primary, sync due
//     registries, verify synced copies, and push node status to the primary
//
// Every loop runs once at start-up and then on its configured interval with a
// small random jitter, so nodes that share a database do not poll in lockstep.
//
// # Lifecycle
//
//	coord := coordinator.New(cfg, store,
//	    coordinator.WithSyncer(orchestrator),
//	    coordinator.WithConsumer(consumer),
//	)
//	go coord.Start(ctx)
//	// ... run server ...
//	coord.Stop()
//
// Start seeds a registry for every configured resource before any loop runs.
//
// # Error Handling
//
// Failed iterations are logged and retried on the next tick. Errors wrapping
// config.ErrConfiguration, such as a missing primary URL, stop every loop and
// are returned from Start.
package coordinator
