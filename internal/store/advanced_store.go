package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vbonduro/opname/internal/domain"
)

// AdvancedDataStore keeps free-form JSON documents per (audit, key).
type AdvancedDataStore struct {
	db *sql.DB
}

func NewAdvancedDataStore(db *sql.DB) *AdvancedDataStore {
	return &AdvancedDataStore{db: db}
}

func (s *AdvancedDataStore) Put(ctx context.Context, auditID, key, payload string) (*domain.AdvancedData, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO advanced_data (audit_id, data_key, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (audit_id, data_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, auditID, key, payload, now)
	if err != nil {
		return nil, fmt.Errorf("failed to store advanced data: %w", err)
	}
	return &domain.AdvancedData{AuditID: auditID, Key: key, Payload: payload, UpdatedAt: now}, nil
}

func (s *AdvancedDataStore) Get(ctx context.Context, auditID, key string) (*domain.AdvancedData, error) {
	d := &domain.AdvancedData{}
	err := s.db.QueryRowContext(ctx, `
		SELECT audit_id, data_key, payload, updated_at FROM advanced_data WHERE audit_id = ? AND data_key = ?
	`, auditID, key).Scan(&d.AuditID, &d.Key, &d.Payload, &d.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get advanced data: %w", err)
	}

	return d, nil
}
