// Package integration runs a primary and a secondary node in-process and
// exercises the replication API between them: status reporting, checksum
// lookups, change event draining and token authentication.
package integration
