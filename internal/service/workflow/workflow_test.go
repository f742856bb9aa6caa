package workflow

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/repodash/repodash/internal/config"
	"github.com/repodash/repodash/internal/events"
	"github.com/repodash/repodash/internal/model"
	"github.com/repodash/repodash/internal/service/audit"
	"github.com/repodash/repodash/internal/service/content"
	"github.com/repodash/repodash/internal/service/lock"
	"github.com/repodash/repodash/pkg/logger"
	"github.com/repodash/repodash/pkg/types"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeStore is an in-memory versioned store with the same optimistic
// concurrency check as the real remote: a write only succeeds when it
// presents the store's current tag.
type fakeStore struct {
	mu       sync.Mutex
	contents map[string][]byte            // target key -> current content
	tags     map[string]string            // target key -> current tag
	versions map[string]map[string][]byte // target key -> version id -> content
	history  map[string][]types.HistoryEntry
	writes   int
	seq      int

	fetchErr error
	writeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		contents: make(map[string][]byte),
		tags:     make(map[string]string),
		versions: make(map[string]map[string][]byte),
		history:  make(map[string][]types.HistoryEntry),
	}
}

func (f *fakeStore) seed(key string, content []byte, tag string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contents[key] = content
	f.tags[key] = tag
	if f.versions[key] == nil {
		f.versions[key] = make(map[string][]byte)
	}
	f.versions[key][tag] = content
	f.history[key] = append([]types.HistoryEntry{{
		VersionID: tag,
		Message:   "seed",
		Author:    "test",
		Date:      time.Now(),
	}}, f.history[key]...)
}

func (f *fakeStore) FetchCurrent(_ context.Context, target types.TargetDescriptor) (*types.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	c, ok := f.contents[target.Key]
	if !ok {
		return nil, content.ErrNotFound
	}
	return &types.Snapshot{Content: c, VersionTag: f.tags[target.Key]}, nil
}

func (f *fakeStore) FetchHistory(_ context.Context, target types.TargetDescriptor, page, pageSize int) ([]types.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.history[target.Key]
	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (f *fakeStore) FetchContentAtVersion(_ context.Context, target types.TargetDescriptor, versionID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.versions[target.Key][versionID]
	if !ok {
		return nil, content.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) Write(_ context.Context, target types.TargetDescriptor, newContent []byte, expectedVersionTag, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.writeErr != nil {
		return "", f.writeErr
	}
	if f.tags[target.Key] != expectedVersionTag {
		return "", content.ErrVersionConflict
	}
	f.seq++
	newTag := fmt.Sprintf("tag-%d", f.seq)
	f.contents[target.Key] = newContent
	f.tags[target.Key] = newTag
	f.versions[target.Key][newTag] = newContent
	f.history[target.Key] = append([]types.HistoryEntry{{
		VersionID: newTag,
		Message:   message,
		Author:    "dashboard",
		Date:      time.Now(),
	}}, f.history[target.Key]...)
	return newTag, nil
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

type fixture struct {
	svc   *Service
	store *fakeStore
	lock  *lock.Service
	audit *audit.Service
	bus   *events.Broadcaster
	db    *gorm.DB
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.LockTransition{}, &model.AuditRecord{}))

	targets, err := config.NewTargets([]types.TargetDescriptor{
		{Key: "t1", Repo: "acme/one", FilePath: "a.txt", Token: "tok", Name: "Bot Cookie"},
		{Key: "t2", Repo: "acme/two", FilePath: "b.txt", Token: "tok", Name: "Page Cookie"},
	})
	require.NoError(t, err)

	store := newFakeStore()
	store.seed("t1", []byte("initial one"), "abc123")
	store.seed("t2", []byte("initial two"), "zzz999")

	lockSvc := lock.NewService(db, logger.NewNoop())
	require.NoError(t, lockSvc.Load())
	auditSvc := audit.NewService(db, logger.NewNoop())
	bus := events.NewBroadcaster()

	svc, err := NewService(&ServiceConfig{
		Targets:     targets,
		Store:       store,
		Lock:        lockSvc,
		Audit:       auditSvc,
		Broadcaster: bus,
		Logger:      logger.NewNoop(),
	})
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, lock: lockSvc, audit: auditSvc, bus: bus, db: db}
}

func recentKinds(t *testing.T, f *fixture) []types.AuditKind {
	t.Helper()
	entries, err := f.audit.QueryRecent(100)
	require.NoError(t, err)
	kinds := make([]types.AuditKind, len(entries))
	for i, e := range entries {
		kinds[i] = e.Kind
	}
	return kinds
}

func TestSubmitEditSuccess(t *testing.T) {
	f := setup(t)

	tag, err := f.svc.SubmitEdit(context.Background(), "t1", []byte("hello"), "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, tag)

	snap, err := f.svc.GetSnapshot(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), snap.Content)
	require.Equal(t, tag, snap.VersionTag)

	kinds := recentKinds(t, f)
	require.Equal(t, []types.AuditKind{types.AuditFileUpdate}, kinds)

	entries, err := f.audit.QueryRecent(1)
	require.NoError(t, err)
	require.Equal(t, "t1", entries[0].Payload["target"])
	require.Equal(t, float64(len("hello")), entries[0].Payload["length"])
	require.Equal(t, "10.0.0.1", entries[0].Payload["ip"])
}

func TestSubmitEditStaleTagLosesRace(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// First writer wins and moves the tag past abc123.
	_, err := f.svc.SubmitEdit(ctx, "t1", []byte("hello"), "a")
	require.NoError(t, err)

	// Second writer presenting the stale tag loses: the fake arbitrates
	// exactly like the remote store does.
	_, err = f.store.Write(ctx, mustTarget(t, f, "t1"), []byte("world"), "abc123", "msg")
	require.ErrorIs(t, err, content.ErrVersionConflict)
}

func TestSubmitEditConflictIsTerminal(t *testing.T) {
	f := setup(t)
	f.store.writeErr = content.ErrVersionConflict

	ch := f.bus.Subscribe()
	defer f.bus.Unsubscribe(ch)

	writesBefore := f.store.writeCount()
	_, err := f.svc.SubmitEdit(context.Background(), "t1", []byte("x"), "a")
	require.ErrorIs(t, err, content.ErrVersionConflict)

	// Single shot: no refetch-and-retry loop.
	require.Equal(t, writesBefore+1, f.store.writeCount())

	// No success audit record and no notification on failure.
	require.Empty(t, recentKinds(t, f))
	select {
	case e := <-ch:
		t.Fatalf("unexpected event on failed edit: %+v", e)
	default:
	}
}

func TestSubmitEditUnknownTarget(t *testing.T) {
	f := setup(t)

	_, err := f.svc.SubmitEdit(context.Background(), "nope", []byte("x"), "a")
	require.ErrorIs(t, err, ErrInvalidTarget)

	// Terminal with no side effects at all.
	require.Equal(t, 0, f.store.writeCount())
	require.Empty(t, recentKinds(t, f))
}

func TestSubmitEditWhileLocked(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.lock.SetLocked(true, "admin"))

	_, err := f.svc.SubmitEdit(context.Background(), "t1", []byte("x"), "10.0.0.9")
	require.ErrorIs(t, err, ErrSystemLocked)

	// Exactly one blocked-edit record and zero write calls.
	require.Equal(t, []types.AuditKind{types.AuditBlockedEdit}, recentKinds(t, f))
	require.Equal(t, 0, f.store.writeCount())
}

func TestRestoreVersionWhileLocked(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.lock.SetLocked(true, "admin"))

	_, err := f.svc.RestoreVersion(context.Background(), "t1", "abc123", "a")
	require.ErrorIs(t, err, ErrSystemLocked)
	require.Equal(t, []types.AuditKind{types.AuditBlockedRestore}, recentKinds(t, f))
	require.Equal(t, 0, f.store.writeCount())
}

func TestClearTargetWhileLocked(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.lock.SetLocked(true, "admin"))

	_, err := f.svc.ClearTarget(context.Background(), "t1", "a")
	require.ErrorIs(t, err, ErrSystemLocked)
	require.Equal(t, []types.AuditKind{types.AuditBlockedClear}, recentKinds(t, f))
	require.Equal(t, 0, f.store.writeCount())
}

func TestRestoreVersionRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// Move the file forward so abc123 is a historical version.
	_, err := f.svc.SubmitEdit(ctx, "t1", []byte("newer content"), "a")
	require.NoError(t, err)

	want, err := f.store.FetchContentAtVersion(ctx, mustTarget(t, f, "t1"), "abc123")
	require.NoError(t, err)

	_, err = f.svc.RestoreVersion(ctx, "t1", "abc123", "a")
	require.NoError(t, err)

	snap, err := f.svc.GetSnapshot(ctx, "t1")
	require.NoError(t, err)
	require.True(t, bytes.Equal(want, snap.Content), "restored content must be byte-identical")

	entries, err := f.audit.QueryRecent(1)
	require.NoError(t, err)
	require.Equal(t, types.AuditFileRestore, entries[0].Kind)
	require.Equal(t, "abc123", entries[0].Payload["version"])
}

func TestRestoreVersionUnknownVersion(t *testing.T) {
	f := setup(t)

	_, err := f.svc.RestoreVersion(context.Background(), "t1", "missing", "a")
	require.ErrorIs(t, err, content.ErrNotFound)
	require.Empty(t, recentKinds(t, f))
}

func TestRestoreCommitMessageUsesShortVersion(t *testing.T) {
	f := setup(t)
	f.store.seed("t1", []byte("v"), "0123456789abcdef")

	_, err := f.svc.RestoreVersion(context.Background(), "t1", "0123456789abcdef", "a")
	require.NoError(t, err)

	history, err := f.svc.ListHistory(context.Background(), "t1", 1, 1)
	require.NoError(t, err)
	require.Equal(t, "Restored Bot Cookie to previous version (0123456)", history[0].Message)
}

func TestClearTargetWritesEmptyContent(t *testing.T) {
	f := setup(t)

	_, err := f.svc.ClearTarget(context.Background(), "t1", "a")
	require.NoError(t, err)

	snap, err := f.svc.GetSnapshot(context.Background(), "t1")
	require.NoError(t, err)
	require.Empty(t, snap.Content)

	entries, err := f.audit.QueryRecent(1)
	require.NoError(t, err)
	require.Equal(t, types.AuditFileClear, entries[0].Kind)
}

func TestNotificationFanOut(t *testing.T) {
	f := setup(t)

	const n = 3
	chans := make([]chan events.Event, n)
	for i := range chans {
		chans[i] = f.bus.Subscribe()
		defer f.bus.Unsubscribe(chans[i])
	}

	_, err := f.svc.SubmitEdit(context.Background(), "t1", []byte("x"), "a")
	require.NoError(t, err)

	for i, ch := range chans {
		select {
		case e := <-ch:
			require.Equal(t, events.EventFileUpdated, e.Name)
			require.Equal(t, "t1", e.TargetKey)
			require.Equal(t, "Bot Cookie", e.DisplayName)
			require.Equal(t, "updated", e.Action)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i)
		}
		// Exactly one event per successful edit.
		select {
		case e := <-ch:
			t.Fatalf("subscriber %d received an extra event: %+v", i, e)
		default:
		}
	}
}

func TestConcurrentEditsOnDifferentTargetsAreIndependent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = f.svc.SubmitEdit(ctx, "t1", []byte("one"), "a")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = f.svc.SubmitEdit(ctx, "t2", []byte("two"), "b")
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
}

func TestListHistoryPaged(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.SubmitEdit(ctx, "t1", []byte("second"), "a")
	require.NoError(t, err)
	_, err = f.svc.SubmitEdit(ctx, "t1", []byte("third"), "a")
	require.NoError(t, err)

	page, err := f.svc.ListHistory(ctx, "t1", 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.True(t, page[0].Date.After(page[1].Date) || page[0].Date.Equal(page[1].Date),
		"history must be newest first")
	require.Equal(t, "Updated Bot Cookie via dashboard", page[0].Message)
}

func TestStatusReportsPerTargetConnectivity(t *testing.T) {
	f := setup(t)

	status := f.svc.Status(context.Background())
	require.False(t, status.Locked)
	require.True(t, status.Targets["t1"].Connected)
	require.True(t, status.Targets["t2"].Connected)

	f.store.fetchErr = content.ErrRemoteUnavailable
	require.NoError(t, f.lock.SetLocked(true, "admin"))

	status = f.svc.Status(context.Background())
	require.True(t, status.Locked)
	require.False(t, status.Targets["t1"].Connected)
	require.NotEmpty(t, status.Targets["t1"].Error)
}

func TestAuditFailureDoesNotFailEdit(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.Migrator().DropTable(&model.AuditRecord{}))

	_, err := f.svc.SubmitEdit(context.Background(), "t1", []byte("x"), "a")
	require.NoError(t, err)
}

func mustTarget(t *testing.T, f *fixture, key string) types.TargetDescriptor {
	t.Helper()
	target, ok := f.svc.Targets().Get(key)
	require.True(t, ok)
	return target
}
