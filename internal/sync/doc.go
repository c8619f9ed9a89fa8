// Package sync replicates resources from the primary onto this node.
//
// The Orchestrator runs a single sync attempt for a resource:
//
//   - Load the registry of the resource and classify it with the retry policy
//     (retry, redownload or reset).
//   - Reset drops the registry so a later trigger starts from scratch.
//   - Otherwise take the resource lease without waiting. A held lease means
//     another worker is busy with the resource and the attempt is skipped.
//   - Persist the attempt together with its retry schedule, then run an
//     incremental fetch (retry) or a full staged redownload (redownload).
//   - Record the outcome. An upstream that no longer has the resource counts
//     as a success and marks the registry missing on the primary. Structural
//     corruption forces a redownload on the next attempt.
//
// Only configuration errors such as a missing primary URL or a token that
// cannot be issued are returned as errors. Every other failure is recorded on
// the registry and retried on the schedule of the retry policy.
//
// # Coordinator Package
//
// The sync/coordinator subpackage schedules the background loops that drive
// sync, verification, event handling and status reporting.
package sync
