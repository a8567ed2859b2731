package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/vbonduro/opname/internal/answer"
	"github.com/vbonduro/opname/internal/domain"
	"github.com/vbonduro/opname/internal/photostore"
)

// LegacySectionType marks sections recreated from a legacy snapshot.
const LegacySectionType = "legacy"

// LegacyBuilding is the building part of a legacy snapshot.
type LegacyBuilding struct {
	Type             domain.AuditType `json:"audit_type" validate:"omitempty,oneof=basic advanced"`
	Name             string           `json:"name" validate:"required"`
	Address          string           `json:"address"`
	Postcode         string           `json:"postcode"`
	City             string           `json:"city"`
	Latitude         *float64         `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude        *float64         `json:"longitude" validate:"omitempty,min=-180,max=180"`
	Area             *float64         `json:"building_area"`
	EnergyLabel      string           `json:"energy_label"`
	BuildingType     string           `json:"building_type"`
	ConstructionYear *int64           `json:"construction_year"`
	Notes            string           `json:"notes"`
}

// Snapshot is a flat pre-relational save: building fields, an optional
// building photo as data URL and one answer map per section.
type Snapshot struct {
	Building      LegacyBuilding
	BuildingPhoto string
	Sections      map[string]map[string]any
}

// ParseSnapshot reads a legacy snapshot. Building fields are read from the
// top-level keys; every other object-valued key is taken as a section.
// Numeric building fields may be given as numbers or numeric strings.
func ParseSnapshot(r io.Reader) (*Snapshot, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, domain.NewValidationError("invalid legacy snapshot", "", err)
	}

	snap := &Snapshot{Sections: map[string]map[string]any{}}
	b := &snap.Building
	var err error
	b.Type = domain.AuditType(stringField(raw, "audit_type"))
	b.Name = stringField(raw, "name")
	b.Address = stringField(raw, "address")
	b.Postcode = stringField(raw, "postcode")
	b.City = stringField(raw, "city")
	b.EnergyLabel = stringField(raw, "energy_label")
	b.BuildingType = stringField(raw, "building_type")
	b.Notes = stringField(raw, "notes")
	snap.BuildingPhoto = stringField(raw, "building_photo")

	if b.Latitude, err = floatField(raw, "latitude"); err != nil {
		return nil, err
	}
	if b.Longitude, err = floatField(raw, "longitude"); err != nil {
		return nil, err
	}
	if b.Area, err = floatField(raw, "building_area"); err != nil {
		return nil, err
	}
	year, err := floatField(raw, "construction_year")
	if err != nil {
		return nil, err
	}
	if year != nil {
		y := int64(*year)
		b.ConstructionYear = &y
	}

	for k, v := range raw {
		if m, ok := v.(map[string]any); ok {
			snap.Sections[k] = m
		}
	}
	return snap, nil
}

func stringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return fmt.Sprint(v)
	}
}

func floatField(raw map[string]any, key string) (*float64, error) {
	var (
		f   float64
		err error
	)
	switch v := raw[key].(type) {
	case nil:
		return nil, nil
	case json.Number:
		f, err = v.Float64()
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		f, err = strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64)
	default:
		err = fmt.Errorf("unexpected %T", v)
	}
	if err != nil {
		return nil, domain.NewValidationError("invalid legacy snapshot", key, err)
	}
	return &f, nil
}

// MigrationReport summarizes one legacy migration.
type MigrationReport struct {
	AuditID       string   `json:"audit_id"`
	Sections      int      `json:"sections"`
	Answers       int      `json:"answers"`
	Photos        int      `json:"photos"`
	ImageFailures int      `json:"image_failures"`
	Ignored       []string `json:"ignored_sections,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// LegacyMigrator replays legacy snapshots through the answer normalizer and
// the media pipeline into a new, completed audit.
type LegacyMigrator struct {
	audits   auditRepository
	sections sectionRepository
	writer   *photoWriter
	allowed  map[string]bool
	logger   *slog.Logger
}

func NewLegacyMigrator(audits auditRepository, sections sectionRepository, photos photoRepository,
	pipeline ingester, files photostore.PhotoStore, allowedSections []string, logger *slog.Logger) *LegacyMigrator {
	logger = logger.With("component", "legacy_migrator")
	allowed := make(map[string]bool, len(allowedSections))
	for _, s := range allowedSections {
		allowed[s] = true
	}
	return &LegacyMigrator{
		audits:   audits,
		sections: sections,
		writer:   &photoWriter{media: pipeline, photos: photos, files: files, logger: logger},
		allowed:  allowed,
		logger:   logger,
	}
}

// Migrate creates a new audit from snap. Every call creates a new audit;
// snapshots are not matched against existing ones. Image failures are logged,
// counted and skipped. A database failure stops the migration and is
// returned together with the report of what was written so far.
func (m *LegacyMigrator) Migrate(ctx context.Context, snap *Snapshot) (*MigrationReport, error) {
	if err := validateStruct("invalid legacy snapshot", snap.Building); err != nil {
		return nil, err
	}

	b := snap.Building
	audit, err := m.audits.Create(ctx, &domain.Audit{
		Type:   b.Type,
		Status: domain.StatusCompleted,
		Building: domain.Building{
			Name:             b.Name,
			Address:          b.Address,
			Postcode:         b.Postcode,
			City:             b.City,
			Latitude:         b.Latitude,
			Longitude:        b.Longitude,
			Area:             b.Area,
			EnergyLabel:      b.EnergyLabel,
			BuildingType:     b.BuildingType,
			ConstructionYear: b.ConstructionYear,
			Notes:            b.Notes,
		},
	})
	if err != nil {
		return nil, domain.NewStorageError("failed to create audit", err)
	}
	report := &MigrationReport{AuditID: audit.ID}
	m.logger.Info("legacy migration started", "audit_id", audit.ID, "sections", len(snap.Sections))

	if snap.BuildingPhoto != "" {
		m.migrateBuildingPhoto(ctx, audit.ID, snap.BuildingPhoto, report)
	}

	names := make([]string, 0, len(snap.Sections))
	for name := range snap.Sections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := snap.Sections[name]
		if !m.allowed[name] {
			report.Ignored = append(report.Ignored, name)
			continue
		}
		if len(values) == 0 {
			continue
		}

		norm := answer.Normalize(values)
		photos, imgErrs := m.writer.addEmbedded(ctx, audit.ID, name, norm.Images)
		report.Photos += len(photos)
		report.ImageFailures += len(imgErrs)
		for _, e := range imgErrs {
			report.Errors = append(report.Errors, e.Error())
		}

		for i := range norm.Answers {
			norm.Answers[i].AuditID = audit.ID
			norm.Answers[i].SectionName = name
		}
		if _, err := m.sections.SaveAnswers(ctx, audit.ID, name, LegacySectionType, norm.Answers); err != nil {
			m.logger.Error("legacy migration aborted", "audit_id", audit.ID, "section", name, "error", err)
			return report, domain.NewStorageError(fmt.Sprintf("failed to save section %s", name), err)
		}
		report.Sections++
		report.Answers += len(norm.Answers)
	}

	m.logger.Info("legacy migration complete",
		"audit_id", audit.ID,
		"sections", report.Sections,
		"answers", report.Answers,
		"photos", report.Photos,
		"image_failures", report.ImageFailures,
	)
	return report, nil
}

func (m *LegacyMigrator) migrateBuildingPhoto(ctx context.Context, auditID, dataURL string, report *MigrationReport) {
	data, mimeType, err := answer.DecodeDataURL(dataURL)
	if err == nil {
		_, err = m.writer.addAuditPhoto(ctx, auditID, data, mimeType, "building")
	}
	if err != nil {
		m.logger.Warn("building photo skipped", "audit_id", auditID, "error", err)
		report.ImageFailures++
		report.Errors = append(report.Errors, fmt.Sprintf("building_photo: %v", err))
		return
	}
	report.Photos++
}
