// Package workflow orchestrates the lock-gated update and restore operations
// against the remote content store.
//
// Each invocation runs strictly sequentially: lock check, fetch of the
// current version tag, conditional write, then the post-commit effects
// (audit record, viewer notification). The remote store is the sole arbiter
// of same-target write races via its version-tag check; no local locking is
// used and conflicts are never retried.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/repodash/repodash/internal/config"
	"github.com/repodash/repodash/internal/events"
	"github.com/repodash/repodash/internal/metrics"
	"github.com/repodash/repodash/internal/service/audit"
	"github.com/repodash/repodash/internal/service/content"
	"github.com/repodash/repodash/internal/service/lock"
	"github.com/repodash/repodash/pkg/logger"
	"github.com/repodash/repodash/pkg/types"
)

var (
	// ErrInvalidTarget indicates the target key does not resolve to a
	// configured target.
	ErrInvalidTarget = errors.New("unknown target")

	// ErrSystemLocked indicates the operation was rejected because the
	// system lock is engaged.
	ErrSystemLocked = errors.New("system is locked by an administrator")
)

const (
	actionUpdated  = "updated"
	actionRestored = "restored"
	actionCleared  = "cleared"
)

// Service runs the update/restore workflow for all configured targets.
type Service struct {
	targets *config.Targets
	store   content.Store
	lock    *lock.Service
	audit   *audit.Service
	events  *events.Broadcaster
	log     logger.Logger
}

// ServiceConfig holds the collaborators of the workflow Service.
type ServiceConfig struct {
	Targets     *config.Targets
	Store       content.Store
	Lock        *lock.Service
	Audit       *audit.Service
	Broadcaster *events.Broadcaster
	Logger      logger.Logger
}

// NewService creates a workflow Service.
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg.Targets == nil || cfg.Store == nil || cfg.Lock == nil || cfg.Audit == nil || cfg.Broadcaster == nil {
		return nil, fmt.Errorf("workflow service is missing a collaborator")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNoop()
	}
	return &Service{
		targets: cfg.Targets,
		store:   cfg.Store,
		lock:    cfg.Lock,
		audit:   cfg.Audit,
		events:  cfg.Broadcaster,
		log:     log,
	}, nil
}

// SubmitEdit overwrites the target's content with newContent, conditioned on
// the version tag read just before the write. Returns the new version tag.
func (s *Service) SubmitEdit(ctx context.Context, targetKey string, newContent []byte, actorID string) (string, error) {
	target, ok := s.targets.Get(targetKey)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidTarget, targetKey)
	}

	if s.lock.Current() {
		s.audit.Record(types.AuditBlockedEdit, map[string]any{
			"target": target.Key,
			"name":   target.Name,
			"ip":     actorID,
		})
		return "", ErrSystemLocked
	}

	snap, err := s.store.FetchCurrent(ctx, target)
	if err != nil {
		metrics.RecordWrite(target.Key, actionUpdated, false)
		return "", err
	}

	message := fmt.Sprintf("Updated %s via dashboard", target.Name)
	newTag, err := s.store.Write(ctx, target, newContent, snap.VersionTag, message)
	if err != nil {
		s.recordWriteFailure(target.Key, actionUpdated, err)
		return "", err
	}

	s.afterCommit(target, actionUpdated, types.AuditFileUpdate, map[string]any{
		"target": target.Key,
		"name":   target.Name,
		"ip":     actorID,
		"length": len(newContent),
	})
	return newTag, nil
}

// RestoreVersion overwrites the target's content with the content it had at
// versionID. Returns the new version tag.
func (s *Service) RestoreVersion(ctx context.Context, targetKey, versionID, actorID string) (string, error) {
	target, ok := s.targets.Get(targetKey)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidTarget, targetKey)
	}

	if s.lock.Current() {
		s.audit.Record(types.AuditBlockedRestore, map[string]any{
			"target":  target.Key,
			"name":    target.Name,
			"ip":      actorID,
			"version": versionID,
		})
		return "", ErrSystemLocked
	}

	oldContent, err := s.store.FetchContentAtVersion(ctx, target, versionID)
	if err != nil {
		metrics.RecordWrite(target.Key, actionRestored, false)
		return "", err
	}

	snap, err := s.store.FetchCurrent(ctx, target)
	if err != nil {
		metrics.RecordWrite(target.Key, actionRestored, false)
		return "", err
	}

	message := fmt.Sprintf("Restored %s to previous version (%s)", target.Name, shortVersion(versionID))
	newTag, err := s.store.Write(ctx, target, oldContent, snap.VersionTag, message)
	if err != nil {
		s.recordWriteFailure(target.Key, actionRestored, err)
		return "", err
	}

	s.afterCommit(target, actionRestored, types.AuditFileRestore, map[string]any{
		"target":  target.Key,
		"name":    target.Name,
		"ip":      actorID,
		"version": versionID,
	})
	return newTag, nil
}

// ClearTarget overwrites the target's content with an empty blob.
func (s *Service) ClearTarget(ctx context.Context, targetKey, actorID string) (string, error) {
	target, ok := s.targets.Get(targetKey)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidTarget, targetKey)
	}

	if s.lock.Current() {
		s.audit.Record(types.AuditBlockedClear, map[string]any{
			"target": target.Key,
			"name":   target.Name,
			"ip":     actorID,
		})
		return "", ErrSystemLocked
	}

	snap, err := s.store.FetchCurrent(ctx, target)
	if err != nil {
		metrics.RecordWrite(target.Key, actionCleared, false)
		return "", err
	}

	message := fmt.Sprintf("Cleared %s via dashboard", target.Name)
	newTag, err := s.store.Write(ctx, target, []byte{}, snap.VersionTag, message)
	if err != nil {
		s.recordWriteFailure(target.Key, actionCleared, err)
		return "", err
	}

	s.afterCommit(target, actionCleared, types.AuditFileClear, map[string]any{
		"target": target.Key,
		"name":   target.Name,
		"ip":     actorID,
	})
	return newTag, nil
}

// ListHistory returns one page of the target's revision history, newest first.
func (s *Service) ListHistory(ctx context.Context, targetKey string, page, pageSize int) ([]types.HistoryEntry, error) {
	target, ok := s.targets.Get(targetKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTarget, targetKey)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return s.store.FetchHistory(ctx, target, page, pageSize)
}

// GetSnapshot returns the target's current content and version tag.
func (s *Service) GetSnapshot(ctx context.Context, targetKey string) (*types.Snapshot, error) {
	target, ok := s.targets.Get(targetKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTarget, targetKey)
	}
	return s.store.FetchCurrent(ctx, target)
}

// Status probes every target's connectivity and reports the lock flag.
func (s *Service) Status(ctx context.Context) *types.StatusResponse {
	resp := &types.StatusResponse{
		Targets: make(map[string]types.TargetStatus, s.targets.Len()),
		Locked:  s.lock.Current(),
	}
	for _, target := range s.targets.All() {
		if _, err := s.store.FetchCurrent(ctx, target); err != nil {
			resp.Targets[target.Key] = types.TargetStatus{Connected: false, Error: err.Error()}
		} else {
			resp.Targets[target.Key] = types.TargetStatus{Connected: true}
		}
	}
	return resp
}

// Targets exposes the configured target set for rendering.
func (s *Service) Targets() *config.Targets { return s.targets }

// afterCommit runs the post-commit effects of a successful write. Each effect
// has its own error boundary: the audit service swallows its failures and the
// broadcaster is non-blocking, so nothing here can unwind the success path.
func (s *Service) afterCommit(target types.TargetDescriptor, action string, kind types.AuditKind, payload map[string]any) {
	metrics.RecordWrite(target.Key, action, true)
	s.audit.Record(kind, payload)
	s.events.Publish(events.Event{
		Name:        events.EventFileUpdated,
		TargetKey:   target.Key,
		DisplayName: target.Name,
		Action:      action,
	})
	s.log.Info(
		"target written",
		logger.Field{Key: "target", Value: target.Key},
		logger.Field{Key: "action", Value: action},
	)
}

func (s *Service) recordWriteFailure(targetKey, action string, err error) {
	metrics.RecordWrite(targetKey, action, false)
	if errors.Is(err, content.ErrVersionConflict) {
		metrics.RecordVersionConflict(targetKey)
	}
}

// shortVersion abbreviates a version id for commit messages.
func shortVersion(versionID string) string {
	if len(versionID) > 7 {
		return versionID[:7]
	}
	return versionID
}
