// Package deploy triggers the external deploy webhook.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/repodash/repodash/internal/service/audit"
	"github.com/repodash/repodash/internal/service/lock"
	"github.com/repodash/repodash/pkg/logger"
	"github.com/repodash/repodash/pkg/types"
)

var (
	// ErrNotConfigured indicates no deploy hook URL is set.
	ErrNotConfigured = errors.New("deploy hook is not configured")

	// ErrSystemLocked indicates the trigger was rejected because the
	// system lock is engaged.
	ErrSystemLocked = errors.New("system is locked by an administrator")

	// ErrHookFailed indicates the hook endpoint rejected the request or
	// was unreachable.
	ErrHookFailed = errors.New("deploy hook request failed")
)

// Service fires the deploy webhook. A trigger is a single POST with no body
// and no retry; the hook provider handles its own queueing.
type Service struct {
	hookURL    string
	httpClient *http.Client
	lock       *lock.Service
	audit      *audit.Service
	log        logger.Logger
}

// NewService creates a deploy Service. hookURL may be empty, in which case
// every Trigger returns ErrNotConfigured.
func NewService(hookURL string, lockSvc *lock.Service, auditSvc *audit.Service, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNoop()
	}
	return &Service{
		hookURL:    hookURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		lock:       lockSvc,
		audit:      auditSvc,
		log:        log,
	}
}

// Configured reports whether a hook URL is set.
func (s *Service) Configured() bool { return s.hookURL != "" }

// Trigger fires the deploy hook once. Blocked while the system lock is
// engaged, like every other mutating operation. Every attempt against a
// configured hook leaves an audit record carrying its outcome.
func (s *Service) Trigger(ctx context.Context, actorID string) error {
	if s.hookURL == "" {
		return ErrNotConfigured
	}
	if s.lock.Current() {
		s.recordOutcome(actorID, "blocked")
		return ErrSystemLocked
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.hookURL, nil)
	if err != nil {
		return fmt.Errorf("build deploy request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.recordOutcome(actorID, "failed")
		return fmt.Errorf("%w: %s", ErrHookFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		s.recordOutcome(actorID, "failed")
		return fmt.Errorf("%w: hook returned %d", ErrHookFailed, resp.StatusCode)
	}

	s.recordOutcome(actorID, "success")
	s.log.Info("deploy hook triggered", logger.Field{Key: "ip", Value: actorID})
	return nil
}

func (s *Service) recordOutcome(actorID, outcome string) {
	s.audit.Record(types.AuditAdminAction, map[string]any{
		"action":  "deploy-triggered",
		"outcome": outcome,
		"ip":      actorID,
	})
}
