// Package content provides the client for the remote versioned-file store.
//
// Every mutation is a read-then-conditional-write: a write must present the
// version tag obtained from the most recent read of the same target, and the
// remote store rejects stale tags atomically. The client never retries and
// never attempts its own compare-and-swap.
package content

import (
	"context"
	"errors"

	"github.com/repodash/repodash/pkg/types"
)

var (
	// ErrNotFound indicates the remote path, repository or version id does
	// not exist.
	ErrNotFound = errors.New("remote file or version not found")

	// ErrVersionConflict indicates the conditional write presented a stale
	// version tag and lost a concurrent-write race.
	ErrVersionConflict = errors.New("version tag does not match the current remote version")

	// ErrRemoteUnavailable indicates a network, auth or remote-side failure.
	ErrRemoteUnavailable = errors.New("remote content store unavailable")
)

// Store is the contract against the remote versioned-file store.
type Store interface {
	// FetchCurrent returns the target's current content and version tag.
	FetchCurrent(ctx context.Context, target types.TargetDescriptor) (*types.Snapshot, error)

	// FetchHistory returns one page of past revisions, newest first.
	FetchHistory(ctx context.Context, target types.TargetDescriptor, page, pageSize int) ([]types.HistoryEntry, error)

	// FetchContentAtVersion returns the raw content at a historical version.
	FetchContentAtVersion(ctx context.Context, target types.TargetDescriptor, versionID string) ([]byte, error)

	// Write stores newContent conditioned on expectedVersionTag matching the
	// store's current tag for the target. On success it returns the new tag
	// and the store records exactly one new history entry carrying message.
	Write(ctx context.Context, target types.TargetDescriptor, newContent []byte, expectedVersionTag, message string) (string, error)
}
