package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/toolhive-replication-server/internal/db/sqlc"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

type dbStore struct {
	pool *pgxpool.Pool
}

// NewDBStore creates a PostgreSQL-backed Store
func NewDBStore(pool *pgxpool.Pool) Store {
	return &dbStore{pool: pool}
}

func (d *dbStore) Get(ctx context.Context, key resource.Key) (*Registry, error) {
	row, err := sqlc.New(d.pool).GetRegistry(ctx, sqlc.GetRegistryParams{
		ResourceType: string(key.Type),
		ResourceID:   key.ID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRegistryNotFound
		}
		return nil, err
	}
	return fromDB(row), nil
}

func (d *dbStore) List(ctx context.Context) ([]*Registry, error) {
	rows, err := sqlc.New(d.pool).ListRegistries(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*Registry, 0, len(rows))
	for _, row := range rows {
		result = append(result, fromDB(row))
	}
	return result, nil
}

func (d *dbStore) Update(ctx context.Context, key resource.Key, updateFn func(reg *Registry) bool) (*Registry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	queries := sqlc.New(d.pool).WithTx(tx)
	params := sqlc.GetRegistryForUpdateParams{ResourceType: string(key.Type), ResourceID: key.ID}

	// Inserting first gives concurrent creators a row to lock on
	if _, err := queries.InsertRegistryIfMissing(ctx, sqlc.InsertRegistryIfMissingParams(params)); err != nil {
		return nil, fmt.Errorf("failed to create registry %s: %w", key, err)
	}

	row, err := queries.GetRegistryForUpdate(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to lock registry %s: %w", key, err)
	}

	reg := fromDB(row)
	if !updateFn(reg) {
		// Rolling back drops a row inserted above
		return fromDB(row), nil
	}
	reg.Key = key

	if err := queries.UpdateRegistry(ctx, toDB(reg)); err != nil {
		return nil, fmt.Errorf("failed to update registry %s: %w", key, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return reg, nil
}

func (d *dbStore) Delete(ctx context.Context, key resource.Key) error {
	_, err := sqlc.New(d.pool).DeleteRegistry(ctx, sqlc.DeleteRegistryParams{
		ResourceType: string(key.Type),
		ResourceID:   key.ID,
	})
	return err
}

// fromDB converts a database row to a Registry
func fromDB(row sqlc.ReplicationRegistry) *Registry {
	reg := &Registry{
		Key:                    resource.Key{Type: resource.Type(row.ResourceType), ID: row.ResourceID},
		LastSyncedAt:           row.LastSyncedAt,
		LastSuccessfulSyncAt:   row.LastSuccessfulSyncAt,
		RetryCount:             int(row.RetryCount),
		RetryAt:                row.RetryAt,
		ForceRedownload:        row.ForceRedownload,
		ResyncPending:          row.ResyncPending,
		MissingOnPrimary:       row.MissingOnPrimary,
		ChecksumMismatch:       row.ChecksumMismatch,
		VerificationRetryCount: int(row.VerificationRetryCount),
		VerificationRetryAt:    row.VerificationRetryAt,
		LastVerifiedAt:         row.LastVerifiedAt,
	}
	if row.LastSyncFailure != nil {
		reg.LastSyncFailure = *row.LastSyncFailure
	}
	if row.VerificationChecksum != nil {
		reg.VerificationChecksum = *row.VerificationChecksum
	}
	if row.LastVerificationFailure != nil {
		reg.LastVerificationFailure = *row.LastVerificationFailure
	}
	return reg
}

// toDB converts a Registry to update parameters
func toDB(reg *Registry) sqlc.UpdateRegistryParams {
	return sqlc.UpdateRegistryParams{
		ResourceType:            string(reg.Key.Type),
		ResourceID:              reg.Key.ID,
		LastSyncedAt:            reg.LastSyncedAt,
		LastSuccessfulSyncAt:    reg.LastSuccessfulSyncAt,
		RetryCount:              clampInt32(reg.RetryCount),
		RetryAt:                 reg.RetryAt,
		ForceRedownload:         reg.ForceRedownload,
		ResyncPending:           reg.ResyncPending,
		LastSyncFailure:         nullableString(reg.LastSyncFailure),
		MissingOnPrimary:        reg.MissingOnPrimary,
		VerificationChecksum:    nullableString(reg.VerificationChecksum),
		ChecksumMismatch:        reg.ChecksumMismatch,
		VerificationRetryCount:  clampInt32(reg.VerificationRetryCount),
		VerificationRetryAt:     reg.VerificationRetryAt,
		LastVerifiedAt:          reg.LastVerifiedAt,
		LastVerificationFailure: nullableString(reg.LastVerificationFailure),
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func clampInt32(v int) int32 {
	const maxInt32, minInt32 = 1<<31 - 1, -1 << 31
	switch {
	case v > maxInt32:
		return maxInt32
	case v < minInt32:
		return minInt32
	default:
		return int32(v)
	}
}
