// Package lock manages the process-wide system lock flag.
//
// The current value is cached in memory for fast reads on every workflow
// invocation; every change appends a LockTransition row so the full history
// of lock changes is durable.
package lock

import (
	"fmt"
	"sync"

	"github.com/repodash/repodash/internal/metrics"
	"github.com/repodash/repodash/internal/model"
	"github.com/repodash/repodash/pkg/logger"
	"gorm.io/gorm"
)

// Service is the lock state store.
type Service struct {
	db  *gorm.DB
	log logger.Logger

	mu     sync.RWMutex
	locked bool
}

// NewService creates a lock Service. Call Load before serving requests.
func NewService(db *gorm.DB, log logger.Logger) *Service {
	return &Service{db: db, log: log}
}

// Load primes the cached flag from the most recent persisted transition.
// An empty history means unlocked.
func (s *Service) Load() error {
	var t model.LockTransition
	err := s.db.Order("id DESC").First(&t).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			s.setCached(false)
			return nil
		}
		return fmt.Errorf("failed to load lock state: %w", err)
	}
	s.setCached(t.Locked)
	return nil
}

// Current returns the cached lock flag. It never blocks on the database.
func (s *Service) Current() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locked
}

// SetLocked appends a new transition record and then updates the cached flag.
// If persistence fails, the cached flag is left untouched so the in-memory
// value never diverges from durable truth.
func (s *Service) SetLocked(locked bool, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := model.LockTransition{Locked: locked, Actor: actor}
	if err := s.db.Create(&t).Error; err != nil {
		return fmt.Errorf("failed to persist lock transition: %w", err)
	}

	s.locked = locked
	metrics.SetSystemLocked(locked)
	s.log.Info(
		"system lock changed",
		logger.Field{Key: "locked", Value: locked},
		logger.Field{Key: "actor", Value: actor},
	)
	return nil
}

// History returns the most recent lock transitions, newest first.
func (s *Service) History(limit int) ([]model.LockTransition, error) {
	var transitions []model.LockTransition
	if err := s.db.Order("id DESC").Limit(limit).Find(&transitions).Error; err != nil {
		return nil, fmt.Errorf("failed to query lock history: %w", err)
	}
	return transitions, nil
}

func (s *Service) setCached(locked bool) {
	s.mu.Lock()
	s.locked = locked
	s.mu.Unlock()
	metrics.SetSystemLocked(locked)
}
