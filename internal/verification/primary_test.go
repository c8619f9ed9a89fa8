package verification_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-replication-server/internal/resource"
	"github.com/stacklok/toolhive-replication-server/internal/verification"
	"github.com/stacklok/toolhive-replication-server/internal/verification/mocks"
)

var projectRepo = resource.Key{Type: resource.TypeRepository, ID: "group/project"}

func newRecordStore(t *testing.T) *verification.FileRecordStore {
	t.Helper()
	store, err := verification.NewFileRecordStore(filepath.Join(t.TempDir(), "checksums.json"))
	require.NoError(t, err)
	return store
}

func TestFileRecordStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "primary", "checksums.json")
	store, err := verification.NewFileRecordStore(path)
	require.NoError(t, err)

	_, err = store.Get(ctx, projectRepo)
	assert.ErrorIs(t, err, verification.ErrNotRecorded)

	verifiedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, verification.Record{Key: projectRepo, Checksum: "abc", VerifiedAt: verifiedAt}))

	reopened, err := verification.NewFileRecordStore(path)
	require.NoError(t, err)
	rec, err := reopened.Get(ctx, projectRepo)
	require.NoError(t, err)
	assert.Equal(t, "abc", rec.Checksum)
	assert.True(t, verifiedAt.Equal(rec.VerifiedAt))

	require.NoError(t, reopened.Delete(ctx, projectRepo))
	require.NoError(t, reopened.Delete(ctx, projectRepo))
	_, err = reopened.Get(ctx, projectRepo)
	assert.ErrorIs(t, err, verification.ErrNotRecorded)

	assert.Error(t, store.Put(ctx, verification.Record{Key: resource.Key{Type: "gist", ID: "x"}}))
}

func TestLocalChecksums(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repoRoot := t.TempDir()
	records := newRecordStore(t)
	checksums := verification.NewLocalChecksums(records, repoRoot)

	_, err := checksums.PrimaryChecksum(ctx, projectRepo)
	assert.ErrorIs(t, err, verification.ErrMissingOnPrimary)

	require.NoError(t, os.MkdirAll(projectRepo.DiskPath(repoRoot), 0750))
	_, err = checksums.PrimaryChecksum(ctx, projectRepo)
	assert.ErrorIs(t, err, verification.ErrNotRecorded)

	require.NoError(t, records.Put(ctx, verification.Record{Key: projectRepo, Checksum: "abc", VerifiedAt: time.Now()}))
	got, err := checksums.PrimaryChecksum(ctx, projectRepo)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestRecorder_Record(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctrl := gomock.NewController(t)
	calc := mocks.NewMockCalculator(ctrl)
	repoRoot := t.TempDir()
	path := projectRepo.DiskPath(repoRoot)

	gomock.InOrder(
		calc.EXPECT().Checksum(gomock.Any(), path).Return("", verification.ErrLocalCopyMissing),
		calc.EXPECT().Checksum(gomock.Any(), path).Return("abc", nil),
		calc.EXPECT().Checksum(gomock.Any(), path).Return("abc", nil),
		calc.EXPECT().Checksum(gomock.Any(), path).Return("def", nil),
		calc.EXPECT().Checksum(gomock.Any(), path).Return("", errors.New("bad object")),
		calc.EXPECT().Checksum(gomock.Any(), path).Return("", verification.ErrLocalCopyMissing),
	)

	records := newRecordStore(t)
	recorder := verification.NewRecorder(records, calc, repoRoot)

	want := []verification.Change{
		verification.ChangeNone,
		verification.ChangeCreated,
		verification.ChangeNone,
		verification.ChangeUpdated,
	}
	for i, expected := range want {
		change, err := recorder.Record(ctx, projectRepo)
		require.NoError(t, err, "call %d", i)
		assert.Equal(t, expected, change, "call %d", i)
	}

	_, err := recorder.Record(ctx, projectRepo)
	require.Error(t, err)
	rec, err := records.Get(ctx, projectRepo)
	require.NoError(t, err)
	assert.Equal(t, "def", rec.Checksum, "failed calculations keep the last record")

	change, err := recorder.Record(ctx, projectRepo)
	require.NoError(t, err)
	assert.Equal(t, verification.ChangeDeleted, change)
	_, err = records.Get(ctx, projectRepo)
	assert.ErrorIs(t, err, verification.ErrNotRecorded)
}
