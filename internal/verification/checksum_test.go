package verification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepository creates a repository with a single commit on master
func initRepository(t *testing.T, dir string) (*git.Repository, plumbing.Hash) {
	t.Helper()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# replica\n"), 0600))
	_, err = wt.Add("README.md")
	require.NoError(t, err)

	hash, err := wt.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "Replica", Email: "replica@example.com", When: time.Unix(1700000000, 0)},
	})
	require.NoError(t, err)
	return repo, hash
}

func TestGitCalculator_Checksum(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	repo, hash := initRepository(t, dir)
	calc := NewGitCalculator()

	got, err := calc.Checksum(ctx, dir)
	require.NoError(t, err)

	// HEAD is symbolic and must not contribute
	want := sha256.Sum256([]byte("refs/heads/master " + hash.String() + "\n"))
	assert.Equal(t, hex.EncodeToString(want[:]), got)

	again, err := calc.Checksum(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference("refs/tags/v1.0.0", hash)))
	tagged, err := calc.Checksum(ctx, dir)
	require.NoError(t, err)
	assert.NotEqual(t, got, tagged)
}

func TestGitCalculator_MissingRepository(t *testing.T) {
	t.Parallel()

	_, err := NewGitCalculator().Checksum(context.Background(), filepath.Join(t.TempDir(), "absent.git"))
	assert.ErrorIs(t, err, ErrLocalCopyMissing)
}

func TestGitCalculator_CancelledContext(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	initRepository(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGitCalculator().Checksum(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}
