package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

// ErrRegistryNotFound is returned when no registry exists for a resource.
var ErrRegistryNotFound = errors.New("registry not found")

// NoAttempts is the retry count of a registry with no recorded attempts.
const NoAttempts = -1

// Registry is the replication state of a single resource.
// Timestamps are nil until the corresponding event happened.
type Registry struct {
	Key resource.Key `json:"key"`

	LastSyncedAt         *time.Time `json:"lastSyncedAt,omitempty"`
	LastSuccessfulSyncAt *time.Time `json:"lastSuccessfulSyncAt,omitempty"`
	RetryCount           int        `json:"retryCount"`
	RetryAt              *time.Time `json:"retryAt,omitempty"`
	ForceRedownload      bool       `json:"forceRedownload,omitempty"`
	ResyncPending        bool       `json:"resyncPending,omitempty"`
	LastSyncFailure      string     `json:"lastSyncFailure,omitempty"`
	MissingOnPrimary     bool       `json:"missingOnPrimary,omitempty"`

	VerificationChecksum    string     `json:"verificationChecksum,omitempty"`
	ChecksumMismatch        bool       `json:"checksumMismatch,omitempty"`
	VerificationRetryCount  int        `json:"verificationRetryCount"`
	VerificationRetryAt     *time.Time `json:"verificationRetryAt,omitempty"`
	LastVerifiedAt          *time.Time `json:"lastVerifiedAt,omitempty"`
	LastVerificationFailure string     `json:"lastVerificationFailure,omitempty"`
}

// New returns the initial state of a registry for key.
func New(key resource.Key) *Registry {
	return &Registry{Key: key, RetryCount: NoAttempts}
}

// Clone returns a deep copy of r.
func (r *Registry) Clone() *Registry {
	if r == nil {
		return nil
	}
	c := *r
	c.LastSyncedAt = cloneTime(r.LastSyncedAt)
	c.LastSuccessfulSyncAt = cloneTime(r.LastSuccessfulSyncAt)
	c.RetryAt = cloneTime(r.RetryAt)
	c.VerificationRetryAt = cloneTime(r.VerificationRetryAt)
	c.LastVerifiedAt = cloneTime(r.LastVerifiedAt)
	return &c
}

// ResetChecksum drops every verification result so the resource is verified afresh.
func (r *Registry) ResetChecksum() {
	r.VerificationChecksum = ""
	r.ChecksumMismatch = false
	r.VerificationRetryCount = 0
	r.VerificationRetryAt = nil
	r.LastVerifiedAt = nil
	r.LastVerificationFailure = ""
}

// Failed reports whether the last sync attempt did not succeed.
func (r *Registry) Failed() bool {
	return r.LastSyncFailure != "" || r.ForceRedownload
}

// DueForSync reports whether the scheduler should run a sync at now.
// A never-synced registry, a pending resync and an elapsed retry are always due.
// A healthy registry becomes due again once resyncInterval has passed.
func (r *Registry) DueForSync(now time.Time, resyncInterval time.Duration) bool {
	switch {
	case r.RetryAt != nil:
		return !now.Before(*r.RetryAt)
	case r.ResyncPending, r.ForceRedownload, r.LastSuccessfulSyncAt == nil:
		return true
	case resyncInterval > 0:
		return !now.Before(r.LastSuccessfulSyncAt.Add(resyncInterval))
	default:
		return false
	}
}

// DueForVerification reports whether the verification pass should check r at now.
// Registries that were never synced successfully or have a sync pending are skipped.
func (r *Registry) DueForVerification(now time.Time, reverifyAfter time.Duration) bool {
	if r.LastSuccessfulSyncAt == nil || r.ForceRedownload || r.ResyncPending || r.MissingOnPrimary {
		return false
	}
	if r.VerificationRetryAt != nil {
		return !now.Before(*r.VerificationRetryAt)
	}
	if r.LastVerifiedAt == nil {
		return true
	}
	// A sync after the last verification changes the local copy
	if r.LastSuccessfulSyncAt.After(*r.LastVerifiedAt) {
		return true
	}
	return reverifyAfter > 0 && !now.Before(r.LastVerifiedAt.Add(reverifyAfter))
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Store persists registries.
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/stacklok/toolhive-replication-server/internal/registry Store
type Store interface {
	// Get returns the registry for key, or ErrRegistryNotFound.
	Get(ctx context.Context, key resource.Key) (*Registry, error)
	// List returns every registry, ordered by key.
	List(ctx context.Context) ([]*Registry, error)
	// Update atomically applies updateFn to the registry for key and persists
	// the result when updateFn returns true. A missing registry is created
	// from New(key). The returned registry reflects the stored state.
	Update(ctx context.Context, key resource.Key, updateFn func(reg *Registry) bool) (*Registry, error)
	// Delete removes the registry for key. Deleting a missing registry is not an error.
	Delete(ctx context.Context, key resource.Key) error
}

// Seed creates registries for keys that are not tracked yet.
// Existing registries are left untouched.
func Seed(ctx context.Context, store Store, keys []resource.Key) error {
	for _, key := range keys {
		_, err := store.Get(ctx, key)
		switch {
		case errors.Is(err, ErrRegistryNotFound):
			if _, err := store.Update(ctx, key, func(_ *Registry) bool { return true }); err != nil {
				return fmt.Errorf("failed to seed registry %s: %w", key, err)
			}
		case err != nil:
			return fmt.Errorf("failed to load registry %s: %w", key, err)
		}
	}
	return nil
}
