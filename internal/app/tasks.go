package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stacklok/toolhive-replication-server/internal/app/storage"
	"github.com/stacklok/toolhive-replication-server/internal/config"
	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
	"github.com/stacklok/toolhive-replication-server/internal/verification"
)

// PruneEvents removes change events every secondary has consumed, or every
// event when full is set. It runs on the primary only.
func PruneEvents(ctx context.Context, cfg *config.Config, factory storage.Factory, full bool) (int64, error) {
	if !cfg.IsPrimary() {
		return 0, fmt.Errorf("%w: events can only be pruned on the primary", config.ErrConfiguration)
	}

	events, err := factory.CreateEventStore(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to create event store: %w", err)
	}

	n, err := eventlog.NewLog(events).Prune(ctx, eventlog.PruneOptions{
		Full:      full,
		BatchSize: cfg.GetPruneBatchSize(),
	})
	if err != nil {
		return n, err
	}
	slog.InfoContext(ctx, "Pruned change events", "count", n, "full", full)
	return n, nil
}

// AppendEvent records a change event raised by an operator on the primary,
// for changes that checksum recording cannot detect.
func AppendEvent(
	ctx context.Context,
	cfg *config.Config,
	factory storage.Factory,
	eventType eventlog.Type,
	key resource.Key,
	payload json.RawMessage,
) (int64, error) {
	if !cfg.IsPrimary() {
		return 0, fmt.Errorf("%w: events can only be appended on the primary", config.ErrConfiguration)
	}
	if len(payload) > 0 && !json.Valid(payload) {
		return 0, fmt.Errorf("payload is not valid JSON")
	}
	if eventType == eventlog.TypeRepositoryRenamed {
		var renamed eventlog.RenamedPayload
		if err := (eventlog.Event{Type: eventType, Payload: payload}).DecodePayload(&renamed); err != nil {
			return 0, err
		}
		if _, err := resource.NewKey(key.Type, renamed.OldID); err != nil {
			return 0, fmt.Errorf("rename needs the previous id as oldId: %w", err)
		}
		if renamed.OldID == key.ID {
			return 0, fmt.Errorf("rename of %s keeps the same id", key)
		}
	}

	events, err := factory.CreateEventStore(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to create event store: %w", err)
	}
	id, err := eventlog.NewLog(events).Append(ctx, eventType, key, payload)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Appended change event", "id", id, "type", eventType, "resource", key.String())
	return id, nil
}

// VerifyOnce runs a single verification pass on a secondary. With a key
// only that resource is verified, otherwise every registry that is due.
func VerifyOnce(
	ctx context.Context,
	cfg *config.Config,
	factory storage.Factory,
	key *resource.Key,
) (verification.Summary, error) {
	if !cfg.IsSecondary() {
		return nil, fmt.Errorf("%w: verification runs on secondaries only", config.ErrConfiguration)
	}

	store, err := factory.CreateRegistryStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry store: %w", err)
	}
	leases, err := factory.CreateLeaseManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create lease manager: %w", err)
	}
	_, client, err := newPrimaryClient(cfg)
	if err != nil {
		return nil, err
	}

	verifier := newVerifier(cfg, store, leases, client, newRetryPolicy(cfg), nil, nil)

	if key == nil {
		return verifier.VerifyDue(ctx)
	}

	outcome, err := verifier.Verify(ctx, *key)
	if err != nil {
		return nil, err
	}
	return verification.Summary{outcome: 1}, nil
}
