package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/vbonduro/opname/internal/domain"
)

type SectionStore struct {
	db *sql.DB
	tx *TxRunner
}

func NewSectionStore(db *sql.DB) *SectionStore {
	return &SectionStore{db: db, tx: NewTxRunner(db)}
}

// SaveAnswers replaces every answer of (auditID, sectionName) with answers
// and marks the section completed, creating it if needed. It runs as one
// transaction: either all of it is visible afterwards or none of it is.
// The section is marked completed even when answers is empty.
func (s *SectionStore) SaveAnswers(ctx context.Context, auditID, sectionName, sectionType string, answers []domain.Answer) (*domain.Section, error) {
	now := time.Now().UTC()

	err := s.tx.RunInTx(ctx, func(tx *sql.Tx) error {
		exists, err := auditExists(ctx, tx, auditID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.NewNotFoundError("audit", auditID)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM answers WHERE audit_id = ? AND section_name = ?
		`, auditID, sectionName); err != nil {
			return fmt.Errorf("failed to delete answers: %w", err)
		}

		if err := insertAnswers(ctx, tx, auditID, sectionName, answers); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sections (audit_id, section_name, section_type, completed, updated_at)
			VALUES (?, ?, ?, 1, ?)
			ON CONFLICT (audit_id, section_name) DO UPDATE SET completed = 1, updated_at = excluded.updated_at
		`, auditID, sectionName, sectionType, now); err != nil {
			return fmt.Errorf("failed to upsert section: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, auditID, sectionName)
}

func (s *SectionStore) Get(ctx context.Context, auditID, sectionName string) (*domain.Section, error) {
	section := &domain.Section{}
	err := s.db.QueryRowContext(ctx, `
		SELECT audit_id, section_name, section_type, completed, updated_at FROM sections
		WHERE audit_id = ? AND section_name = ?
	`, auditID, sectionName).Scan(&section.AuditID, &section.Name, &section.Type, &section.Completed, &section.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}

	return section, nil
}

func (s *SectionStore) ListByAudit(ctx context.Context, auditID string) ([]*domain.Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT audit_id, section_name, section_type, completed, updated_at FROM sections
		WHERE audit_id = ? ORDER BY section_name ASC
	`, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var sections []*domain.Section
	for rows.Next() {
		section := &domain.Section{}
		if err := rows.Scan(&section.AuditID, &section.Name, &section.Type, &section.Completed, &section.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, section)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sections: %w", err)
	}

	return sections, nil
}
