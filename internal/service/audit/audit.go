// Package audit maintains the append-only audit log.
package audit

import (
	"encoding/json"
	"fmt"

	"github.com/repodash/repodash/internal/metrics"
	"github.com/repodash/repodash/internal/model"
	"github.com/repodash/repodash/pkg/logger"
	"github.com/repodash/repodash/pkg/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service appends and queries audit records.
type Service struct {
	db  *gorm.DB
	log logger.Logger
}

// NewService creates an audit Service.
func NewService(db *gorm.DB, log logger.Logger) *Service {
	return &Service{db: db, log: log}
}

// Record appends one audit record. Failures are logged and swallowed: an
// audit write must never block or mask the primary operation.
func (s *Service) Record(kind types.AuditKind, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Error(
			"failed to encode audit payload",
			logger.Field{Key: "kind", Value: string(kind)},
			logger.Field{Key: "error", Value: err.Error()},
		)
		return
	}

	record := model.AuditRecord{
		Kind:    string(kind),
		Payload: datatypes.JSON(raw),
	}
	if err := s.db.Create(&record).Error; err != nil {
		s.log.Error(
			"failed to write audit record",
			logger.Field{Key: "kind", Value: string(kind)},
			logger.Field{Key: "error", Value: err.Error()},
		)
		return
	}
	metrics.RecordAuditRecord(string(kind))
}

// QueryRecent returns the most recent audit records, newest first.
func (s *Service) QueryRecent(limit int) ([]types.AuditEntry, error) {
	var records []model.AuditRecord
	if err := s.db.Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}

	entries := make([]types.AuditEntry, len(records))
	for i, r := range records {
		entry := types.AuditEntry{
			ID:        r.ID,
			Kind:      types.AuditKind(r.Kind),
			CreatedAt: r.CreatedAt,
		}
		if len(r.Payload) > 0 {
			if err := json.Unmarshal(r.Payload, &entry.Payload); err != nil {
				s.log.Warn(
					"skipping undecodable audit payload",
					logger.Field{Key: "id", Value: r.ID},
				)
			}
		}
		entries[i] = entry
	}
	return entries, nil
}

// QuerySince returns records with an ID greater than afterID, oldest first.
// Used by the archiver to export in stable batches.
func (s *Service) QuerySince(afterID uint, limit int) ([]model.AuditRecord, error) {
	var records []model.AuditRecord
	err := s.db.Where("id > ?", afterID).Order("id ASC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records after %d: %w", afterID, err)
	}
	return records, nil
}
