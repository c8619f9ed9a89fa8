// Package verification proves that local copies of resources match the primary.
//
// Both nodes compute a checksum over the refs of their copy. The primary
// records its value and secondaries compare against it on a schedule.
package verification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrLocalCopyMissing is returned when there is no repository at the checksum path
var ErrLocalCopyMissing = errors.New("local copy does not exist")

// Calculator computes the content checksum of a resource copy.
//
//go:generate mockgen -destination=mocks/mock_calculator.go -package=mocks github.com/stacklok/toolhive-replication-server/internal/verification Calculator
type Calculator interface {
	Checksum(ctx context.Context, path string) (string, error)
}

// GitCalculator digests every direct ref of a git repository.
// Symbolic refs such as HEAD are skipped since they only alias other refs.
type GitCalculator struct{}

var _ Calculator = GitCalculator{}

// NewGitCalculator creates a GitCalculator
func NewGitCalculator() GitCalculator {
	return GitCalculator{}
}

// Checksum returns the hex sha256 over the sorted "<ref> <hash>\n" lines of the repository at path
func (GitCalculator) Checksum(ctx context.Context, path string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", fmt.Errorf("%w: %s", ErrLocalCopyMissing, path)
		}
		return "", fmt.Errorf("failed to open repository %s: %w", path, err)
	}

	refs, err := repo.References()
	if err != nil {
		return "", fmt.Errorf("failed to list refs of %s: %w", path, err)
	}
	defer refs.Close()

	var lines []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		lines = append(lines, ref.Name().String()+" "+ref.Hash().String()+"\n")
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to read refs of %s: %w", path, err)
	}

	sort.Strings(lines)
	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
