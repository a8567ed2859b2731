package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/opname/internal/domain"
)

type ContactStore struct {
	db *sql.DB
}

func NewContactStore(db *sql.DB) *ContactStore {
	return &ContactStore{db: db}
}

func (s *ContactStore) Create(ctx context.Context, c *domain.Contact) (*domain.Contact, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, audit_id, name, role, email, phone, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, c.AuditID, c.Name, c.Role, c.Email, c.Phone, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	created := *c
	created.ID = id
	created.CreatedAt = now
	return &created, nil
}

func (s *ContactStore) ListByAudit(ctx context.Context, auditID string) ([]*domain.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, audit_id, name, role, email, phone, created_at FROM contacts
		WHERE audit_id = ? ORDER BY name ASC
	`, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var contacts []*domain.Contact
	for rows.Next() {
		c := &domain.Contact{}
		if err := rows.Scan(&c.ID, &c.AuditID, &c.Name, &c.Role, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return contacts, nil
}

func (s *ContactStore) Delete(ctx context.Context, auditID, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM contacts WHERE id = ? AND audit_id = ?
	`, id, auditID)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.NewNotFoundError("contact", id)
	}

	return nil
}
