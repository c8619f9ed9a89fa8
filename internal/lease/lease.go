// Package lease provides exclusive, expiring, non-blocking leases keyed by resource.
package lease

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout bounds how long a crashed holder can block a resource.
const DefaultTimeout = 8 * time.Hour

// ErrLeaseLost is reported when a holder can no longer renew its lease.
var ErrLeaseLost = errors.New("lease lost")

// Lease is a held lease. Token distinguishes this holder from later holders of the same key.
type Lease struct {
	Key       string
	Token     string
	Timeout   time.Duration
	ExpiresAt time.Time
}

// Manager grants leases.
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/stacklok/toolhive-replication-server/internal/lease Manager
type Manager interface {
	// TryAcquire takes the lease for key without waiting. When another holder
	// owns an unexpired lease it returns held=false and no error.
	TryAcquire(ctx context.Context, key string, timeout time.Duration) (l *Lease, held bool, err error)
	// Renew extends a held lease by its timeout. It returns false when the
	// lease was lost to another holder.
	Renew(ctx context.Context, l *Lease) (bool, error)
	// Release gives up the lease. Releasing a lost lease is not an error.
	Release(ctx context.Context, l *Lease) error
}

func timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}
