// Package registry holds the durable replication state of every tracked resource.
//
// A Registry records, for one resource on a secondary, when it was last
// synced, how many attempts failed in a row, whether a full redownload or a
// resync is pending, and the outcome of the last checksum verification.
//
// # Stores
//
// Two Store implementations are provided:
//
//   - NewFileStore keeps one JSON document per resource below a directory.
//     Writes go to a temporary file that is renamed over the previous copy.
//     Attempts interrupted by a crash are marked as failed while loading.
//   - NewDBStore keeps registries in the replication_registries table.
//     Updates run in a transaction that locks the row.
//
// Both serialize Update per resource, so a read-modify-write never loses a
// concurrent change. Leases, not the store, decide which worker may sync or
// verify a resource.
//
// # Seeding
//
// Seed creates a registry for every configured resource that has none yet and
// leaves existing state untouched, so restarts keep retry counters:
//
//	if err := registry.Seed(ctx, store, keys); err != nil {
//		return err
//	}
package registry
