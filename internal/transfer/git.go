package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/google/uuid"

	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

const (
	stagingInfix   = ".tmp-"
	previousSuffix = ".previous"
)

// mirrorRefSpec mirrors every ref of the primary
var mirrorRefSpec = config.RefSpec("+refs/*:refs/*")

// GitTransfer keeps bare mirrors of resources below a root directory
type GitTransfer struct {
	repoRoot   string
	beforeSwap func(staged string) error
}

var _ Transfer = (*GitTransfer)(nil)

// Option configures a GitTransfer
type Option func(*GitTransfer)

// WithBeforeSwap runs fn after a full fetch was staged and verified, right
// before it replaces the canonical copy. An error aborts the swap.
func WithBeforeSwap(fn func(staged string) error) Option {
	return func(g *GitTransfer) {
		g.beforeSwap = fn
	}
}

// NewGitTransfer creates a GitTransfer storing mirrors below repoRoot
func NewGitTransfer(repoRoot string, opts ...Option) *GitTransfer {
	g := &GitTransfer{repoRoot: repoRoot}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fetch implements Transfer
func (g *GitTransfer) Fetch(ctx context.Context, key resource.Key, remoteURL, authHeader string) error {
	canonical := key.DiskPath(g.repoRoot)
	if err := recoverInterruptedSwap(canonical); err != nil {
		return err
	}

	repo, err := git.PlainOpen(canonical)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		slog.DebugContext(ctx, "No local copy, cloning", "resource", key.String())
		return g.FetchFull(ctx, key, remoteURL, authHeader)
	}
	if err != nil {
		return errors.Join(ErrStructuralCorruption, fmt.Errorf("failed to open %s: %w", canonical, err))
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		RemoteURL:  remoteURL,
		RefSpecs:   []config.RefSpec{mirrorRefSpec},
		Auth:       newHeaderAuth(authHeader),
		Force:      true,
		Prune:      true,
		Tags:       git.AllTags,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return classify(fmt.Errorf("failed to fetch %s: %w", key, err))
	}
	return nil
}

// FetchFull implements Transfer. The clone is staged next to the canonical
// copy and swapped in only after it opened cleanly, so a crash at any point
// leaves either the old or the new copy in place.
func (g *GitTransfer) FetchFull(ctx context.Context, key resource.Key, remoteURL, authHeader string) error {
	canonical := key.DiskPath(g.repoRoot)
	if err := recoverInterruptedSwap(canonical); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(canonical), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	removeStaleStaging(ctx, canonical)

	staged := canonical + stagingInfix + uuid.NewString()
	if err := cloneMirror(ctx, staged, remoteURL, authHeader); err != nil {
		_ = os.RemoveAll(staged)
		return classify(fmt.Errorf("failed to clone %s: %w", key, err))
	}

	if err := verifyUsable(staged); err != nil {
		_ = os.RemoveAll(staged)
		return fmt.Errorf("staged copy of %s is unusable: %w", key, err)
	}

	if g.beforeSwap != nil {
		if err := g.beforeSwap(staged); err != nil {
			_ = os.RemoveAll(staged)
			return fmt.Errorf("swap of %s aborted: %w", key, err)
		}
	}

	return swap(canonical, staged)
}

// cloneMirror clones remoteURL as a bare mirror into dir
func cloneMirror(ctx context.Context, dir, remoteURL, authHeader string) error {
	storage := filesystem.NewStorage(osfs.New(dir), cache.NewObjectLRUDefault())
	_, err := git.CloneContext(ctx, storage, nil, &git.CloneOptions{
		URL:        remoteURL,
		RemoteName: git.DefaultRemoteName,
		Auth:       newHeaderAuth(authHeader),
		Mirror:     true,
		Tags:       git.AllTags,
	})
	return err
}

// verifyUsable opens the repository and walks its refs
func verifyUsable(dir string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return err
	}
	refs, err := repo.References()
	if err != nil {
		return err
	}
	defer refs.Close()
	return refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		_, err := repo.Storer.EncodedObject(plumbing.AnyObject, ref.Hash())
		return err
	})
}

// swap replaces canonical with staged through a holding location
func swap(canonical, staged string) error {
	previous := canonical + previousSuffix
	if err := os.RemoveAll(previous); err != nil {
		return fmt.Errorf("failed to clear %s: %w", previous, err)
	}

	hadCanonical := true
	if err := os.Rename(canonical, previous); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			_ = os.RemoveAll(staged)
			return fmt.Errorf("failed to move %s aside: %w", canonical, err)
		}
		hadCanonical = false
	}

	if err := os.Rename(staged, canonical); err != nil {
		if hadCanonical {
			_ = os.Rename(previous, canonical)
		}
		_ = os.RemoveAll(staged)
		return fmt.Errorf("failed to move staged copy into %s: %w", canonical, err)
	}

	if hadCanonical {
		if err := os.RemoveAll(previous); err != nil {
			slog.Warn("Failed to remove previous copy", "path", previous, "error", err)
		}
	}
	return nil
}

// recoverInterruptedSwap restores the previous copy when a swap stopped
// after moving the canonical copy aside
func recoverInterruptedSwap(canonical string) error {
	previous := canonical + previousSuffix
	if _, err := os.Stat(previous); err != nil {
		return nil
	}
	if _, err := os.Stat(canonical); err == nil {
		return os.RemoveAll(previous)
	}
	slog.Warn("Restoring copy from interrupted swap", "path", canonical)
	if err := os.Rename(previous, canonical); err != nil {
		return fmt.Errorf("failed to restore %s: %w", canonical, err)
	}
	return nil
}

// removeStaleStaging deletes staging directories left by crashed full fetches
func removeStaleStaging(ctx context.Context, canonical string) {
	matches, err := filepath.Glob(canonical + stagingInfix + "*")
	if err != nil {
		return
	}
	for _, m := range matches {
		slog.DebugContext(ctx, "Removing stale staging directory", "path", m)
		_ = os.RemoveAll(m)
	}
}
