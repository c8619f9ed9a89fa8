package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/toolhive-replication-server/internal/config"
	"github.com/stacklok/toolhive-replication-server/internal/db"
	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
	"github.com/stacklok/toolhive-replication-server/internal/lease"
	"github.com/stacklok/toolhive-replication-server/internal/registry"
	"github.com/stacklok/toolhive-replication-server/internal/status"
	"github.com/stacklok/toolhive-replication-server/internal/verification"
)

// DatabaseFactory creates components persisted in PostgreSQL.
// Several processes may share one database; leases are database rows.
type DatabaseFactory struct {
	pool    *pgxpool.Pool
	dataDir string
}

var _ Factory = (*DatabaseFactory)(nil)

// NewDatabaseFactory connects to the configured database
func NewDatabaseFactory(ctx context.Context, cfg *config.Config) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required for database storage type")
	}

	slog.Info("Creating database-backed storage factory")

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return NewDatabaseFactoryWithPool(pool, cfg.GetDataDir()), nil
}

// NewDatabaseFactoryWithPool wraps an existing pool. Cleanup closes it.
func NewDatabaseFactoryWithPool(pool *pgxpool.Pool, dataDir string) *DatabaseFactory {
	return &DatabaseFactory{pool: pool, dataDir: dataDir}
}

// CreateRegistryStore creates a registry store on the pool
func (d *DatabaseFactory) CreateRegistryStore(_ context.Context) (registry.Store, error) {
	return registry.NewDBStore(d.pool), nil
}

// CreateLeaseManager creates a lease manager on the pool
func (d *DatabaseFactory) CreateLeaseManager(_ context.Context) (lease.Manager, error) {
	return lease.NewDBManager(d.pool), nil
}

// CreateEventStore creates an event store on the pool
func (d *DatabaseFactory) CreateEventStore(_ context.Context) (eventlog.Store, error) {
	return eventlog.NewDBStore(d.pool), nil
}

// CreateCursorStore keeps the cursor in the event cursor table
func (d *DatabaseFactory) CreateCursorStore(_ context.Context) (eventlog.CursorStore, error) {
	return eventlog.NewDBStore(d.pool), nil
}

// CreateRecordStore creates a checksum record store on the pool
func (d *DatabaseFactory) CreateRecordStore(_ context.Context) (verification.RecordStore, error) {
	return verification.NewDBRecordStore(d.pool), nil
}

// CreateStatusPersistence keeps reported statuses on the local filesystem.
// They are rebuilt from the next push of every secondary.
func (d *DatabaseFactory) CreateStatusPersistence(_ context.Context) (status.Persistence, error) {
	return status.NewFilePersistence(filepath.Join(d.dataDir, stateDirName, statusDirName)), nil
}

// Ping checks the database connection
func (d *DatabaseFactory) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}
	return nil
}

// Cleanup closes the connection pool
func (d *DatabaseFactory) Cleanup() {
	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}
