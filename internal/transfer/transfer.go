// Package transfer copies resource repositories from the primary.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/idxfile"
	"github.com/go-git/go-git/v5/plumbing/format/packfile"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/stacklok/toolhive-replication-server/internal/config"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

var (
	// ErrUpstreamAbsent is returned when the primary does not have the resource
	ErrUpstreamAbsent = errors.New("resource does not exist upstream")

	// ErrStructuralCorruption is returned when the local copy cannot be used
	ErrStructuralCorruption = errors.New("local copy is structurally invalid")
)

// Transfer fetches resources from a remote.
// authHeader is sent verbatim as the Authorization header.
//
//go:generate mockgen -destination=mocks/mock_transfer.go -package=mocks github.com/stacklok/toolhive-replication-server/internal/transfer Transfer
type Transfer interface {
	// Fetch updates the local copy incrementally, cloning it when missing.
	Fetch(ctx context.Context, key resource.Key, remoteURL, authHeader string) error
	// FetchFull replaces the local copy with a fresh clone.
	FetchFull(ctx context.Context, key resource.Key, remoteURL, authHeader string) error
}

// corruptionMarkers are fragments of go-git errors raised while reading broken object storage
var corruptionMarkers = []string{
	"object not found",
	"malformed pack",
	"packfile",
	"zlib",
	"invalid object",
	"corrupt",
	"bad signature",
}

// classify maps go-git errors onto the transfer error taxonomy
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUpstreamAbsent), errors.Is(err, ErrStructuralCorruption), errors.Is(err, config.ErrConfiguration):
		return err
	case errors.Is(err, transport.ErrAuthenticationRequired), errors.Is(err, transport.ErrAuthorizationFailed):
		// Rejected credentials need operator action, retrying cannot help
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	case errors.Is(err, transport.ErrRepositoryNotFound), errors.Is(err, transport.ErrEmptyRemoteRepository):
		return errors.Join(ErrUpstreamAbsent, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, plumbing.ErrObjectNotFound),
		errors.Is(err, plumbing.ErrInvalidType),
		errors.Is(err, packfile.ErrBadSignature),
		errors.Is(err, packfile.ErrUnsupportedVersion),
		errors.Is(err, idxfile.ErrMalformedIdxFile),
		errors.Is(err, git.ErrRepositoryIncomplete):
		return errors.Join(ErrStructuralCorruption, err)
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range corruptionMarkers {
		if strings.Contains(msg, marker) {
			return errors.Join(ErrStructuralCorruption, err)
		}
	}
	return err
}
