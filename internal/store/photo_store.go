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

// PhotoStore persists metadata of audit-level and section-level photos. The
// image bytes live in the media root, see package photostore.
type PhotoStore struct {
	db *sql.DB
}

func NewPhotoStore(db *sql.DB) *PhotoStore {
	return &PhotoStore{db: db}
}

// CreateAuditPhoto inserts a photo row at the end of the audit's photo order.
func (s *PhotoStore) CreateAuditPhoto(ctx context.Context, p *domain.AuditPhoto) (*domain.AuditPhoto, error) {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_photos (id, audit_id, filename, path, mime_type, size, sort_order, description, created_at)
		SELECT ?, ?, ?, ?, ?, ?, COALESCE(MAX(sort_order) + 1, 0), ?, ?
		FROM audit_photos WHERE audit_id = ?
	`, id, p.AuditID, p.Filename, p.Path, p.MimeType, p.Size, p.Description, time.Now().UTC(), p.AuditID)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit photo: %w", err)
	}

	return s.GetAuditPhoto(ctx, id)
}

// CreateSectionPhoto inserts a photo row at the end of the order of photos
// for the same section and question.
func (s *PhotoStore) CreateSectionPhoto(ctx context.Context, p *domain.SectionPhoto) (*domain.SectionPhoto, error) {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO section_photos (id, audit_id, section_name, question_id, filename, path, mime_type, size,
			sort_order, description, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(MAX(sort_order) + 1, 0), ?, ?
		FROM section_photos WHERE audit_id = ? AND section_name = ? AND question_id = ?
	`, id, p.AuditID, p.SectionName, p.QuestionID, p.Filename, p.Path, p.MimeType, p.Size, p.Description,
		time.Now().UTC(), p.AuditID, p.SectionName, p.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("failed to create section photo: %w", err)
	}

	return s.GetSectionPhoto(ctx, id)
}

const (
	auditPhotoColumns   = `id, audit_id, filename, path, mime_type, size, sort_order, description, created_at`
	sectionPhotoColumns = `id, audit_id, filename, path, mime_type, size, sort_order, description, created_at,
		section_name, question_id`
)

func (s *PhotoStore) GetAuditPhoto(ctx context.Context, id string) (*domain.AuditPhoto, error) {
	photo, err := scanAuditPhoto(s.db.QueryRowContext(ctx, `
		SELECT `+auditPhotoColumns+` FROM audit_photos WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit photo: %w", err)
	}
	return photo, nil
}

func (s *PhotoStore) GetSectionPhoto(ctx context.Context, id string) (*domain.SectionPhoto, error) {
	photo, err := scanSectionPhoto(s.db.QueryRowContext(ctx, `
		SELECT `+sectionPhotoColumns+` FROM section_photos WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section photo: %w", err)
	}
	return photo, nil
}

func (s *PhotoStore) ListAuditPhotos(ctx context.Context, auditID string) ([]*domain.AuditPhoto, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+auditPhotoColumns+` FROM audit_photos WHERE audit_id = ? ORDER BY sort_order ASC, created_at ASC
	`, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit photos: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var photos []*domain.AuditPhoto
	for rows.Next() {
		photo, err := scanAuditPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit photo: %w", err)
		}
		photos = append(photos, photo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit photos: %w", err)
	}

	return photos, nil
}

// ListSectionPhotos lists the photos of one section, or of every section of
// the audit when sectionName is empty.
func (s *PhotoStore) ListSectionPhotos(ctx context.Context, auditID, sectionName string) ([]*domain.SectionPhoto, error) {
	query := `SELECT ` + sectionPhotoColumns + ` FROM section_photos WHERE audit_id = ?`
	args := []any{auditID}
	if sectionName != "" {
		query += ` AND section_name = ?`
		args = append(args, sectionName)
	}
	query += ` ORDER BY section_name ASC, question_id ASC, sort_order ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list section photos: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var photos []*domain.SectionPhoto
	for rows.Next() {
		photo, err := scanSectionPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan section photo: %w", err)
		}
		photos = append(photos, photo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating section photos: %w", err)
	}

	return photos, nil
}

func (s *PhotoStore) DeleteAuditPhoto(ctx context.Context, id string) error {
	return s.delete(ctx, `DELETE FROM audit_photos WHERE id = ?`, "audit photo", id)
}

func (s *PhotoStore) DeleteSectionPhoto(ctx context.Context, id string) error {
	return s.delete(ctx, `DELETE FROM section_photos WHERE id = ?`, "section photo", id)
}

func (s *PhotoStore) delete(ctx context.Context, query, entity, id string) error {
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", entity, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.NewNotFoundError(entity, id)
	}

	return nil
}

func scanAuditPhoto(row rowScanner) (*domain.AuditPhoto, error) {
	p := &domain.AuditPhoto{}
	err := row.Scan(&p.ID, &p.AuditID, &p.Filename, &p.Path, &p.MimeType, &p.Size, &p.SortOrder, &p.Description, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanSectionPhoto(row rowScanner) (*domain.SectionPhoto, error) {
	p := &domain.SectionPhoto{}
	err := row.Scan(&p.ID, &p.AuditID, &p.Filename, &p.Path, &p.MimeType, &p.Size, &p.SortOrder, &p.Description,
		&p.CreatedAt, &p.SectionName, &p.QuestionID)
	if err != nil {
		return nil, err
	}
	return p, nil
}
