package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/toolhive-replication-server/internal/db/pgtypes"
	"github.com/stacklok/toolhive-replication-server/internal/db/sqlc"
)

var _ Manager = (*DBManager)(nil)

// DBManager grants leases stored in PostgreSQL. A lease is taken with a single
// insert that only replaces an existing row once it has expired, so it is
// safe across processes and nodes sharing the database.
type DBManager struct {
	pool *pgxpool.Pool
}

// NewDBManager creates a PostgreSQL-backed lease manager
func NewDBManager(pool *pgxpool.Pool) *DBManager {
	return &DBManager{pool: pool}
}

// TryAcquire implements Manager
func (d *DBManager) TryAcquire(ctx context.Context, key string, timeout time.Duration) (*Lease, bool, error) {
	timeout = timeoutOrDefault(timeout)

	row, err := sqlc.New(d.pool).AcquireLease(ctx, sqlc.AcquireLeaseParams{
		LeaseKey:     key,
		Token:        uuid.New(),
		LeaseTimeout: pgtypes.NewInterval(timeout),
	})
	if err != nil {
		// The conflicting row was still live
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}

	return &Lease{
		Key:       row.LeaseKey,
		Token:     row.Token.String(),
		Timeout:   timeout,
		ExpiresAt: row.ExpiresAt,
	}, true, nil
}

// Renew implements Manager
func (d *DBManager) Renew(ctx context.Context, l *Lease) (bool, error) {
	token, err := uuid.Parse(l.Token)
	if err != nil {
		return false, fmt.Errorf("invalid lease token: %w", err)
	}

	expiresAt, err := sqlc.New(d.pool).RenewLease(ctx, sqlc.RenewLeaseParams{LeaseKey: l.Key, Token: token})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to renew lease %s: %w", l.Key, err)
	}
	l.ExpiresAt = expiresAt
	return true, nil
}

// Release implements Manager
func (d *DBManager) Release(ctx context.Context, l *Lease) error {
	token, err := uuid.Parse(l.Token)
	if err != nil {
		return fmt.Errorf("invalid lease token: %w", err)
	}

	if _, err := sqlc.New(d.pool).ReleaseLease(ctx, sqlc.ReleaseLeaseParams{LeaseKey: l.Key, Token: token}); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", l.Key, err)
	}
	return nil
}
