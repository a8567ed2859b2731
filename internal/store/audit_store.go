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

type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

const auditColumns = `id, audit_type, status, name, address, postcode, city, latitude, longitude,
	building_area, energy_label, building_type, construction_year, notes, created_at, updated_at`

// Create inserts a new audit. A missing ID is generated; missing type and
// status default to basic and in_progress.
func (s *AuditStore) Create(ctx context.Context, a *domain.Audit) (*domain.Audit, error) {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	auditType := a.Type
	if auditType == "" {
		auditType = domain.AuditTypeBasic
	}
	status := a.Status
	if status == "" {
		status = domain.StatusInProgress
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audits (id, audit_type, status, name, address, postcode, city, latitude, longitude,
			building_area, energy_label, building_type, construction_year, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, auditType, status, a.Name, a.Address, a.Postcode, a.City, a.Latitude, a.Longitude,
		a.Area, a.EnergyLabel, a.BuildingType, a.ConstructionYear, a.Notes, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *AuditStore) GetByID(ctx context.Context, id string) (*domain.Audit, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audits WHERE id = ?`, id)
	audit, err := scanAudit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit: %w", err)
	}
	return audit, nil
}

func (s *AuditStore) List(ctx context.Context) ([]*domain.Audit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+auditColumns+` FROM audits ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var audits []*domain.Audit
	for rows.Next() {
		audit, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit: %w", err)
		}
		audits = append(audits, audit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audits: %w", err)
	}

	return audits, nil
}

// ListIDs returns the identifiers of every audit.
func (s *AuditStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM audits`)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit ids: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan audit id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit ids: %w", err)
	}

	return ids, nil
}

// Update overwrites the type, status and building fields of an audit.
func (s *AuditStore) Update(ctx context.Context, a *domain.Audit) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE audits SET audit_type = ?, status = ?, name = ?, address = ?, postcode = ?, city = ?,
			latitude = ?, longitude = ?, building_area = ?, energy_label = ?, building_type = ?,
			construction_year = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, a.Type, a.Status, a.Name, a.Address, a.Postcode, a.City, a.Latitude, a.Longitude, a.Area,
		a.EnergyLabel, a.BuildingType, a.ConstructionYear, a.Notes, time.Now().UTC(), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update audit: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.NewNotFoundError("audit", a.ID)
	}

	return nil
}

// Delete removes the audit row; sections, answers, photos, contacts and
// advanced data go with it through ON DELETE CASCADE.
func (s *AuditStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM audits WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete audit: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.NewNotFoundError("audit", id)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudit(row rowScanner) (*domain.Audit, error) {
	a := &domain.Audit{}
	var (
		lat, lng, area sql.NullFloat64
		year           sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.Type, &a.Status, &a.Name, &a.Address, &a.Postcode, &a.City, &lat, &lng,
		&area, &a.EnergyLabel, &a.BuildingType, &year, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Latitude = nullFloat(lat)
	a.Longitude = nullFloat(lng)
	a.Area = nullFloat(area)
	if year.Valid {
		a.ConstructionYear = &year.Int64
	}
	return a, nil
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// auditExists reports whether an audit row with id is visible to q.
func auditExists(ctx context.Context, q DBTX, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM audits WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check audit: %w", err)
	}
	return true, nil
}
