package verification

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

var (
	// ErrNotRecorded is returned when the primary has no checksum for a resource yet
	ErrNotRecorded = errors.New("checksum not recorded on primary")

	// ErrMissingOnPrimary is returned when the primary no longer has the resource
	ErrMissingOnPrimary = errors.New("resource missing on primary")
)

// PrimaryChecksums looks up the checksum the primary recorded for a resource.
//
//go:generate mockgen -destination=mocks/mock_primary.go -package=mocks github.com/stacklok/toolhive-replication-server/internal/verification PrimaryChecksums
type PrimaryChecksums interface {
	PrimaryChecksum(ctx context.Context, key resource.Key) (string, error)
}

// Record is the checksum the primary computed for a resource
type Record struct {
	Key        resource.Key `json:"key"`
	Checksum   string       `json:"checksum"`
	VerifiedAt time.Time    `json:"verifiedAt"`
}

// RecordStore persists primary checksums
type RecordStore interface {
	// Get returns the record for key, or ErrNotRecorded.
	Get(ctx context.Context, key resource.Key) (*Record, error)
	Put(ctx context.Context, rec Record) error
	// Delete removes the record for key. Missing records are not an error.
	Delete(ctx context.Context, key resource.Key) error
}

// LocalChecksums answers checksum lookups on the primary itself
type LocalChecksums struct {
	records  RecordStore
	repoRoot string
}

var _ PrimaryChecksums = (*LocalChecksums)(nil)

// NewLocalChecksums serves PrimaryChecksums from the primary's own records.
// A resource without a record is reported missing when its copy does not exist.
func NewLocalChecksums(records RecordStore, repoRoot string) *LocalChecksums {
	return &LocalChecksums{records: records, repoRoot: repoRoot}
}

// PrimaryChecksum implements PrimaryChecksums
func (l *LocalChecksums) PrimaryChecksum(ctx context.Context, key resource.Key) (string, error) {
	rec, err := l.Lookup(ctx, key)
	if err != nil {
		return "", err
	}
	return rec.Checksum, nil
}

// Lookup returns the full record for key
func (l *LocalChecksums) Lookup(ctx context.Context, key resource.Key) (*Record, error) {
	rec, err := l.records.Get(ctx, key)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotRecorded) {
		return nil, err
	}

	if _, statErr := os.Stat(key.DiskPath(l.repoRoot)); errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingOnPrimary, key)
	}
	return nil, err
}

// Change describes how a primary checksum moved since the previous record
type Change int

const (
	// ChangeNone means the checksum is unchanged
	ChangeNone Change = iota
	// ChangeCreated means the resource was recorded for the first time
	ChangeCreated
	// ChangeUpdated means the checksum differs from the previous record
	ChangeUpdated
	// ChangeDeleted means the resource copy disappeared
	ChangeDeleted
)

func (c Change) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "none"
	}
}

// Recorder computes and stores checksums of the primary's own copies
type Recorder struct {
	records  RecordStore
	calc     Calculator
	repoRoot string
	now      func() time.Time
}

// NewRecorder creates a Recorder for copies below repoRoot
func NewRecorder(records RecordStore, calc Calculator, repoRoot string) *Recorder {
	return &Recorder{records: records, calc: calc, repoRoot: repoRoot, now: time.Now}
}

// Record refreshes the checksum of key and reports how it changed
func (r *Recorder) Record(ctx context.Context, key resource.Key) (Change, error) {
	previous, err := r.records.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrNotRecorded) {
		return ChangeNone, err
	}

	checksum, err := r.calc.Checksum(ctx, key.DiskPath(r.repoRoot))
	if errors.Is(err, ErrLocalCopyMissing) {
		if previous == nil {
			return ChangeNone, nil
		}
		if err := r.records.Delete(ctx, key); err != nil {
			return ChangeNone, err
		}
		return ChangeDeleted, nil
	}
	if err != nil {
		return ChangeNone, err
	}

	if err := r.records.Put(ctx, Record{Key: key, Checksum: checksum, VerifiedAt: r.now().UTC()}); err != nil {
		return ChangeNone, err
	}

	switch {
	case previous == nil:
		return ChangeCreated, nil
	case previous.Checksum != checksum:
		return ChangeUpdated, nil
	default:
		return ChangeNone, nil
	}
}
