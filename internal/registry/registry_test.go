package registry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-replication-server/internal/registry"
	"github.com/stacklok/toolhive-replication-server/internal/registry/mocks"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

var testKey = resource.Key{Type: resource.TypeRepository, ID: "group/project"}

func ptr(t time.Time) *time.Time { return &t }

func TestNew(t *testing.T) {
	t.Parallel()

	reg := registry.New(testKey)
	assert.Equal(t, testKey, reg.Key)
	assert.Equal(t, registry.NoAttempts, reg.RetryCount)
	assert.False(t, reg.Failed())
}

func TestRegistry_CloneIsDeep(t *testing.T) {
	t.Parallel()

	now := time.Now()
	reg := registry.New(testKey)
	reg.RetryAt = ptr(now)

	c := reg.Clone()
	*c.RetryAt = now.Add(time.Hour)
	assert.Equal(t, now, *reg.RetryAt)

	var nilReg *registry.Registry
	assert.Nil(t, nilReg.Clone())
}

func TestRegistry_ResetChecksum(t *testing.T) {
	t.Parallel()

	now := time.Now()
	reg := &registry.Registry{
		Key:                     testKey,
		VerificationChecksum:    "abc",
		ChecksumMismatch:        true,
		VerificationRetryCount:  3,
		VerificationRetryAt:     ptr(now),
		LastVerifiedAt:          ptr(now),
		LastVerificationFailure: "mismatch",
		ResyncPending:           true,
	}
	reg.ResetChecksum()

	assert.Empty(t, reg.VerificationChecksum)
	assert.False(t, reg.ChecksumMismatch)
	assert.Zero(t, reg.VerificationRetryCount)
	assert.Nil(t, reg.VerificationRetryAt)
	assert.Nil(t, reg.LastVerifiedAt)
	assert.Empty(t, reg.LastVerificationFailure)
	assert.True(t, reg.ResyncPending, "sync flags are not verification state")
}

func TestRegistry_DueForSync(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	synced := now.Add(-time.Hour)

	tests := []struct {
		name string
		reg  registry.Registry
		want bool
	}{
		{name: "never synced", reg: registry.Registry{RetryCount: -1}, want: true},
		{name: "healthy and fresh", reg: registry.Registry{LastSuccessfulSyncAt: &synced}, want: false},
		{name: "resync pending", reg: registry.Registry{LastSuccessfulSyncAt: &synced, ResyncPending: true}, want: true},
		{name: "forced redownload", reg: registry.Registry{LastSuccessfulSyncAt: &synced, ForceRedownload: true}, want: true},
		{name: "retry in future", reg: registry.Registry{RetryAt: ptr(now.Add(time.Minute)), ResyncPending: true}, want: false},
		{name: "retry elapsed", reg: registry.Registry{RetryAt: ptr(now.Add(-time.Minute))}, want: true},
		{name: "retry exactly now", reg: registry.Registry{RetryAt: ptr(now)}, want: true},
		{name: "stale after resync interval", reg: registry.Registry{LastSuccessfulSyncAt: ptr(now.Add(-7 * time.Hour))}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.reg.DueForSync(now, 6*time.Hour))
		})
	}
}

func TestRegistry_DueForVerification(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	synced := now.Add(-2 * time.Hour)
	verified := now.Add(-time.Hour)

	tests := []struct {
		name string
		reg  registry.Registry
		want bool
	}{
		{name: "never synced", reg: registry.Registry{}, want: false},
		{name: "synced, never verified", reg: registry.Registry{LastSuccessfulSyncAt: &synced}, want: true},
		{name: "resync pending", reg: registry.Registry{LastSuccessfulSyncAt: &synced, ResyncPending: true}, want: false},
		{name: "forced redownload", reg: registry.Registry{LastSuccessfulSyncAt: &synced, ForceRedownload: true}, want: false},
		{name: "missing on primary", reg: registry.Registry{LastSuccessfulSyncAt: &synced, MissingOnPrimary: true}, want: false},
		{name: "verified after sync", reg: registry.Registry{LastSuccessfulSyncAt: &synced, LastVerifiedAt: &verified}, want: false},
		{
			name: "synced after verification",
			reg:  registry.Registry{LastSuccessfulSyncAt: ptr(now.Add(-time.Minute)), LastVerifiedAt: &verified},
			want: true,
		},
		{
			name: "verification retry pending",
			reg:  registry.Registry{LastSuccessfulSyncAt: &synced, VerificationRetryAt: ptr(now.Add(time.Minute))},
			want: false,
		},
		{
			name: "verification retry elapsed",
			reg:  registry.Registry{LastSuccessfulSyncAt: &synced, VerificationRetryAt: ptr(now.Add(-time.Minute))},
			want: true,
		},
		{
			name: "reverification period elapsed",
			reg:  registry.Registry{LastSuccessfulSyncAt: ptr(now.Add(-48 * time.Hour)), LastVerifiedAt: ptr(now.Add(-25 * time.Hour))},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.reg.DueForVerification(now, 24*time.Hour))
		})
	}
}

func TestSeed(t *testing.T) {
	t.Parallel()

	existing := resource.Key{Type: resource.TypeWiki, ID: "group/project"}

	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	store.EXPECT().Get(gomock.Any(), testKey).Return(nil, registry.ErrRegistryNotFound)
	store.EXPECT().Update(gomock.Any(), testKey, gomock.Any()).DoAndReturn(
		func(_ context.Context, key resource.Key, fn func(*registry.Registry) bool) (*registry.Registry, error) {
			reg := registry.New(key)
			require.True(t, fn(reg))
			return reg, nil
		})
	store.EXPECT().Get(gomock.Any(), existing).Return(registry.New(existing), nil)

	require.NoError(t, registry.Seed(context.Background(), store, []resource.Key{testKey, existing}))
}

func TestSeed_PropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Get(gomock.Any(), testKey).Return(nil, errors.New("disk on fire"))

	err := registry.Seed(context.Background(), store, []resource.Key{testKey})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}
