package eventlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/stacklok/toolhive-replication-server/internal/registry"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

// ReplicaHandlers returns the handlers a secondary applies to primary events.
// Local copies of resources live below repoRoot.
func ReplicaHandlers(store registry.Store, repoRoot string) map[Type]HandlerFunc {
	r := &replica{store: store, repoRoot: repoRoot}
	return map[Type]HandlerFunc{
		TypeRepositoryCreated: r.markChanged,
		TypeRepositoryUpdated: r.markChanged,
		TypeRepositoryDeleted: r.deleted,
		TypeRepositoryRenamed: r.renamed,
		TypeStorageMigrated:   r.resync,
		TypeCacheInvalidated:  r.cacheInvalidated,
		TypeVerificationReset: r.verificationReset,
	}
}

type replica struct {
	store    registry.Store
	repoRoot string
}

// markChanged schedules a sync and drops the stale checksum
func (r *replica) markChanged(ctx context.Context, e Event) error {
	_, err := r.store.Update(ctx, e.Resource, func(reg *registry.Registry) bool {
		reg.ResyncPending = true
		reg.MissingOnPrimary = false
		reg.ResetChecksum()
		return true
	})
	return err
}

func (r *replica) resync(ctx context.Context, e Event) error {
	_, err := r.store.Update(ctx, e.Resource, func(reg *registry.Registry) bool {
		reg.ResyncPending = true
		return true
	})
	return err
}

func (r *replica) deleted(ctx context.Context, e Event) error {
	return r.forget(ctx, e.Resource)
}

// renamed stops tracking the old id and schedules a sync of the new one
func (r *replica) renamed(ctx context.Context, e Event) error {
	var payload RenamedPayload
	if err := e.DecodePayload(&payload); err != nil {
		return err
	}
	if payload.OldID != "" && payload.OldID != e.Resource.ID {
		oldKey := resource.Key{Type: e.Resource.Type, ID: payload.OldID}
		if err := oldKey.Validate(); err != nil {
			slog.WarnContext(ctx, "Ignoring invalid previous id of renamed resource", "id", e.ID, "error", err)
		} else if err := r.forget(ctx, oldKey); err != nil {
			return err
		}
	}
	return r.resync(ctx, e)
}

func (r *replica) verificationReset(ctx context.Context, e Event) error {
	if _, err := r.store.Get(ctx, e.Resource); err != nil {
		if errors.Is(err, registry.ErrRegistryNotFound) {
			return nil
		}
		return err
	}
	_, err := r.store.Update(ctx, e.Resource, func(reg *registry.Registry) bool {
		reg.ResetChecksum()
		return true
	})
	return err
}

func (*replica) cacheInvalidated(ctx context.Context, e Event) error {
	slog.InfoContext(ctx, "Primary invalidated caches", "resource", e.Resource.String(), "id", e.ID)
	return nil
}

// forget removes the local copy and the registry of key
func (r *replica) forget(ctx context.Context, key resource.Key) error {
	if err := os.RemoveAll(key.DiskPath(r.repoRoot)); err != nil {
		return fmt.Errorf("failed to remove local copy of %s: %w", key, err)
	}
	if err := r.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete registry %s: %w", key, err)
	}
	slog.InfoContext(ctx, "Stopped tracking resource", "resource", key.String())
	return nil
}
