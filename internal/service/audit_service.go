package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/vbonduro/opname/internal/answer"
	"github.com/vbonduro/opname/internal/domain"
	"github.com/vbonduro/opname/internal/media"
	"github.com/vbonduro/opname/internal/photostore"
)

type AuditService struct {
	audits   auditRepository
	sections sectionRepository
	answers  answerRepository
	photos   photoRepository
	contacts contactRepository
	advanced advancedRepository
	files    photostore.PhotoStore
	writer   *photoWriter
	logger   *slog.Logger
}

func NewAuditService(repos Repositories, pipeline ingester, files photostore.PhotoStore, logger *slog.Logger) *AuditService {
	logger = logger.With("component", "audit_service")
	return &AuditService{
		audits:   repos.Audits,
		sections: repos.Sections,
		answers:  repos.Answers,
		photos:   repos.Photos,
		contacts: repos.Contacts,
		advanced: repos.Advanced,
		files:    files,
		writer:   &photoWriter{media: pipeline, photos: repos.Photos, files: files, logger: logger},
		logger:   logger,
	}
}

// AuditInput carries the building attributes of a new audit.
type AuditInput struct {
	Type             domain.AuditType   `json:"audit_type" validate:"omitempty,oneof=basic advanced"`
	Status           domain.AuditStatus `json:"status" validate:"omitempty,oneof=in_progress completed draft"`
	Name             string             `json:"name" validate:"required,max=200"`
	Address          string             `json:"address" validate:"max=300"`
	Postcode         string             `json:"postcode" validate:"max=16"`
	City             string             `json:"city" validate:"max=120"`
	Latitude         *float64           `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude        *float64           `json:"longitude" validate:"omitempty,min=-180,max=180"`
	Area             *float64           `json:"building_area" validate:"omitempty,gte=0"`
	EnergyLabel      string             `json:"energy_label" validate:"max=8"`
	BuildingType     string             `json:"building_type" validate:"max=120"`
	ConstructionYear *int64             `json:"construction_year" validate:"omitempty,min=1000,max=2200"`
	Notes            string             `json:"notes"`
}

func (in AuditInput) audit() *domain.Audit {
	return &domain.Audit{
		Type:   in.Type,
		Status: in.Status,
		Building: domain.Building{
			Name:             in.Name,
			Address:          in.Address,
			Postcode:         in.Postcode,
			City:             in.City,
			Latitude:         in.Latitude,
			Longitude:        in.Longitude,
			Area:             in.Area,
			EnergyLabel:      in.EnergyLabel,
			BuildingType:     in.BuildingType,
			ConstructionYear: in.ConstructionYear,
			Notes:            in.Notes,
		},
	}
}

// AuditPatch changes the fields that are set and leaves the rest alone.
type AuditPatch struct {
	Type             *domain.AuditType   `json:"audit_type" validate:"omitempty,oneof=basic advanced"`
	Status           *domain.AuditStatus `json:"status" validate:"omitempty,oneof=in_progress completed draft"`
	Name             *string             `json:"name" validate:"omitempty,min=1,max=200"`
	Address          *string             `json:"address" validate:"omitempty,max=300"`
	Postcode         *string             `json:"postcode" validate:"omitempty,max=16"`
	City             *string             `json:"city" validate:"omitempty,max=120"`
	Latitude         *float64            `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude        *float64            `json:"longitude" validate:"omitempty,min=-180,max=180"`
	Area             *float64            `json:"building_area" validate:"omitempty,gte=0"`
	EnergyLabel      *string             `json:"energy_label" validate:"omitempty,max=8"`
	BuildingType     *string             `json:"building_type" validate:"omitempty,max=120"`
	ConstructionYear *int64              `json:"construction_year" validate:"omitempty,min=1000,max=2200"`
	Notes            *string             `json:"notes"`
}

func (p AuditPatch) apply(a *domain.Audit) {
	setIf(&a.Type, p.Type)
	setIf(&a.Status, p.Status)
	setIf(&a.Name, p.Name)
	setIf(&a.Address, p.Address)
	setIf(&a.Postcode, p.Postcode)
	setIf(&a.City, p.City)
	setIf(&a.EnergyLabel, p.EnergyLabel)
	setIf(&a.BuildingType, p.BuildingType)
	setIf(&a.Notes, p.Notes)
	if p.Latitude != nil {
		a.Latitude = p.Latitude
	}
	if p.Longitude != nil {
		a.Longitude = p.Longitude
	}
	if p.Area != nil {
		a.Area = p.Area
	}
	if p.ConstructionYear != nil {
		a.ConstructionYear = p.ConstructionYear
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (s *AuditService) CreateAudit(ctx context.Context, in AuditInput) (*domain.Audit, error) {
	if err := validateStruct("invalid audit", in); err != nil {
		return nil, err
	}
	audit, err := s.audits.Create(ctx, in.audit())
	if err != nil {
		return nil, domain.NewStorageError("failed to create audit", err)
	}
	s.logger.Info("audit created", "audit_id", audit.ID, "audit_type", audit.Type)
	return audit, nil
}

// GetAudit returns the audit or a not-found error.
func (s *AuditService) GetAudit(ctx context.Context, id string) (*domain.Audit, error) {
	audit, err := s.audits.GetByID(ctx, id)
	if err != nil {
		return nil, domain.NewStorageError("failed to get audit", err)
	}
	if audit == nil {
		return nil, domain.NewNotFoundError("audit", id)
	}
	return audit, nil
}

func (s *AuditService) ListAudits(ctx context.Context) ([]*domain.Audit, error) {
	audits, err := s.audits.List(ctx)
	if err != nil {
		return nil, domain.NewStorageError("failed to list audits", err)
	}
	return audits, nil
}

func (s *AuditService) UpdateAudit(ctx context.Context, id string, patch AuditPatch) (*domain.Audit, error) {
	if err := validateStruct("invalid audit update", patch); err != nil {
		return nil, err
	}
	audit, err := s.GetAudit(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.apply(audit)
	if err := s.audits.Update(ctx, audit); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.NewStorageError("failed to update audit", err)
	}
	return s.GetAudit(ctx, id)
}

// DeleteAudit removes the audit's media directory, then the audit row. The
// file removal is best effort: a failure is logged and never blocks the row
// delete, whose foreign keys cascade to every dependent record.
func (s *AuditService) DeleteAudit(ctx context.Context, id string) error {
	if _, err := s.GetAudit(ctx, id); err != nil {
		return err
	}

	dir := media.AuditDir(id)
	if err := s.files.RemoveTree(ctx, dir); err != nil {
		s.logger.Error("failed to remove audit media", "audit_id", id, "dir", dir, "error", err)
	}

	if err := s.audits.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return domain.NewStorageError("failed to delete audit", err)
	}
	s.logger.Info("audit deleted", "audit_id", id)
	return nil
}

// SectionSubmission is one save of a section form. Values maps question ids
// to raw answers; Labels optionally names them.
type SectionSubmission struct {
	Name   string            `json:"section" validate:"required,max=120"`
	Type   string            `json:"section_type" validate:"max=60"`
	Values map[string]any    `json:"values"`
	Labels map[string]string `json:"labels"`
}

// SectionResult reports a saved section and the photos extracted from it.
// ImageErrors lists embedded images that could not be stored.
type SectionResult struct {
	Section     *domain.Section        `json:"section"`
	Answers     int                    `json:"answers"`
	Photos      []*domain.SectionPhoto `json:"photos"`
	ImageErrors []string               `json:"image_errors,omitempty"`
}

// SubmitSection normalizes the submitted values, stores embedded images as
// section photos and replaces the section's answers in one transaction.
func (s *AuditService) SubmitSection(ctx context.Context, auditID string, sub SectionSubmission) (*SectionResult, error) {
	if err := validateStruct("invalid section", sub); err != nil {
		return nil, err
	}
	audit, err := s.GetAudit(ctx, auditID)
	if err != nil {
		return nil, err
	}
	sectionType := sub.Type
	if sectionType == "" {
		sectionType = string(audit.Type)
	}

	norm := answer.Normalize(sub.Values, answer.WithLabels(sub.Labels))
	photos, imgErrs := s.writer.addEmbedded(ctx, auditID, sub.Name, norm.Images)

	for i := range norm.Answers {
		norm.Answers[i].AuditID = auditID
		norm.Answers[i].SectionName = sub.Name
	}
	section, err := s.sections.SaveAnswers(ctx, auditID, sub.Name, sectionType, norm.Answers)
	if err != nil {
		if domain.KindOf(err) != "" {
			return nil, err
		}
		return nil, domain.NewStorageError("failed to save section", err)
	}

	s.logger.Info("section saved",
		"audit_id", auditID,
		"section", sub.Name,
		"answers", len(norm.Answers),
		"photos", len(photos),
		"image_errors", len(imgErrs),
	)

	result := &SectionResult{Section: section, Answers: len(norm.Answers), Photos: photos}
	for _, e := range imgErrs {
		result.ImageErrors = append(result.ImageErrors, e.Error())
	}
	return result, nil
}

func (s *AuditService) UploadAuditPhoto(ctx context.Context, auditID string, data []byte, mimeType, description string) (*domain.AuditPhoto, error) {
	s.logger.Info("upload audit photo started", "audit_id", auditID, "mime_type", mimeType, "bytes", len(data))
	if _, err := s.GetAudit(ctx, auditID); err != nil {
		return nil, err
	}
	return s.writer.addAuditPhoto(ctx, auditID, data, mimeType, description)
}

func (s *AuditService) UploadSectionPhoto(ctx context.Context, auditID, sectionName, questionID string, data []byte, mimeType, description string) (*domain.SectionPhoto, error) {
	s.logger.Info("upload section photo started",
		"audit_id", auditID, "section", sectionName, "question_id", questionID, "mime_type", mimeType, "bytes", len(data))
	if sectionName == "" {
		return nil, domain.NewValidationError("section name required", "", nil)
	}
	if _, err := s.GetAudit(ctx, auditID); err != nil {
		return nil, err
	}
	return s.writer.addSectionPhoto(ctx, auditID, sectionName, questionID, data, mimeType, description)
}

// DeleteAuditPhoto deletes the photo row, then its file. A file that cannot
// be removed is logged and left for the consistency check.
func (s *AuditService) DeleteAuditPhoto(ctx context.Context, auditID, photoID string) error {
	photo, err := s.photos.GetAuditPhoto(ctx, photoID)
	if err != nil {
		return domain.NewStorageError("failed to get photo", err)
	}
	if photo == nil || photo.AuditID != auditID {
		return domain.NewNotFoundError("photo", photoID)
	}
	if err := s.photos.DeleteAuditPhoto(ctx, photoID); err != nil {
		return err
	}
	s.writer.discard(ctx, photo.Path)
	return nil
}

func (s *AuditService) DeleteSectionPhoto(ctx context.Context, auditID, sectionName, photoID string) error {
	photo, err := s.photos.GetSectionPhoto(ctx, photoID)
	if err != nil {
		return domain.NewStorageError("failed to get photo", err)
	}
	if photo == nil || photo.AuditID != auditID || (sectionName != "" && photo.SectionName != sectionName) {
		return domain.NewNotFoundError("photo", photoID)
	}
	if err := s.photos.DeleteSectionPhoto(ctx, photoID); err != nil {
		return err
	}
	s.writer.discard(ctx, photo.Path)
	return nil
}

// OpenPhoto returns the stored bytes of an audit-level or section-level photo
// together with the mime type recorded for it.
func (s *AuditService) OpenPhoto(ctx context.Context, auditID, photoID string) (io.ReadCloser, string, error) {
	photo, err := s.ownedPhoto(ctx, auditID, photoID)
	if err != nil {
		return nil, "", err
	}
	rc, _, err := s.files.Open(ctx, photo.Path)
	if err != nil {
		if errors.Is(err, photostore.ErrNotFound) {
			return nil, "", domain.NewConsistencyGap(domain.ConsistencyGap{
				AuditID: auditID, Path: photo.Path, Reason: domain.GapMissingFile,
			})
		}
		return nil, "", domain.NewStorageError("failed to open photo", err)
	}
	return rc, photo.MimeType, nil
}

func (s *AuditService) ownedPhoto(ctx context.Context, auditID, photoID string) (*domain.AuditPhoto, error) {
	ap, err := s.photos.GetAuditPhoto(ctx, photoID)
	if err != nil {
		return nil, domain.NewStorageError("failed to get photo", err)
	}
	if ap != nil && ap.AuditID == auditID {
		return ap, nil
	}
	sp, err := s.photos.GetSectionPhoto(ctx, photoID)
	if err != nil {
		return nil, domain.NewStorageError("failed to get photo", err)
	}
	if sp != nil && sp.AuditID == auditID {
		return &sp.AuditPhoto, nil
	}
	return nil, domain.NewNotFoundError("photo", photoID)
}

// PhotoSet holds every photo of one audit.
type PhotoSet struct {
	Audit    []*domain.AuditPhoto   `json:"audit"`
	Sections []*domain.SectionPhoto `json:"sections"`
}

func (s *AuditService) ListPhotos(ctx context.Context, auditID string) (*PhotoSet, error) {
	if _, err := s.GetAudit(ctx, auditID); err != nil {
		return nil, err
	}
	return s.listPhotos(ctx, auditID)
}

func (s *AuditService) listPhotos(ctx context.Context, auditID string) (*PhotoSet, error) {
	auditPhotos, err := s.photos.ListAuditPhotos(ctx, auditID)
	if err != nil {
		return nil, domain.NewStorageError("failed to list photos", err)
	}
	sectionPhotos, err := s.photos.ListSectionPhotos(ctx, auditID, "")
	if err != nil {
		return nil, domain.NewStorageError("failed to list photos", err)
	}
	return &PhotoSet{Audit: auditPhotos, Sections: sectionPhotos}, nil
}

// SectionDetail is a section with its answers and photos.
type SectionDetail struct {
	*domain.Section
	Answers []*domain.Answer       `json:"answers"`
	Photos  []*domain.SectionPhoto `json:"photos"`
}

// AuditDetail is everything persisted for one audit, as a report needs it.
type AuditDetail struct {
	*domain.Audit
	Sections []*SectionDetail     `json:"sections"`
	Photos   []*domain.AuditPhoto `json:"photos"`
	Contacts []*domain.Contact    `json:"contacts"`
}

func (s *AuditService) GetAuditDetail(ctx context.Context, id string) (*AuditDetail, error) {
	audit, err := s.GetAudit(ctx, id)
	if err != nil {
		return nil, err
	}

	sections, err := s.sections.ListByAudit(ctx, id)
	if err != nil {
		return nil, domain.NewStorageError("failed to list sections", err)
	}
	answers, err := s.answers.ListByAudit(ctx, id)
	if err != nil {
		return nil, domain.NewStorageError("failed to list answers", err)
	}
	photos, err := s.listPhotos(ctx, id)
	if err != nil {
		return nil, err
	}
	contacts, err := s.contacts.ListByAudit(ctx, id)
	if err != nil {
		return nil, domain.NewStorageError("failed to list contacts", err)
	}

	byName := make(map[string]*SectionDetail, len(sections))
	detail := &AuditDetail{Audit: audit, Photos: photos.Audit, Contacts: contacts}
	for _, sec := range sections {
		sd := &SectionDetail{Section: sec}
		byName[sec.Name] = sd
		detail.Sections = append(detail.Sections, sd)
	}
	for _, a := range answers {
		if sd, ok := byName[a.SectionName]; ok {
			sd.Answers = append(sd.Answers, a)
		}
	}
	for _, p := range photos.Sections {
		if sd, ok := byName[p.SectionName]; ok {
			sd.Photos = append(sd.Photos, p)
		}
	}
	return detail, nil
}

// ContactInput describes a person connected to the audited building.
type ContactInput struct {
	Name  string `json:"name" validate:"required,max=200"`
	Role  string `json:"role" validate:"max=120"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"max=40"`
}

func (s *AuditService) AddContact(ctx context.Context, auditID string, in ContactInput) (*domain.Contact, error) {
	if err := validateStruct("invalid contact", in); err != nil {
		return nil, err
	}
	if _, err := s.GetAudit(ctx, auditID); err != nil {
		return nil, err
	}
	contact, err := s.contacts.Create(ctx, &domain.Contact{
		AuditID: auditID,
		Name:    in.Name,
		Role:    in.Role,
		Email:   in.Email,
		Phone:   in.Phone,
	})
	if err != nil {
		return nil, domain.NewStorageError("failed to add contact", err)
	}
	return contact, nil
}

func (s *AuditService) ListContacts(ctx context.Context, auditID string) ([]*domain.Contact, error) {
	if _, err := s.GetAudit(ctx, auditID); err != nil {
		return nil, err
	}
	contacts, err := s.contacts.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, domain.NewStorageError("failed to list contacts", err)
	}
	return contacts, nil
}

func (s *AuditService) DeleteContact(ctx context.Context, auditID, contactID string) error {
	if err := s.contacts.Delete(ctx, auditID, contactID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return domain.NewStorageError("failed to delete contact", err)
	}
	return nil
}

// PutAdvancedData stores a JSON document under key, replacing any earlier one.
func (s *AuditService) PutAdvancedData(ctx context.Context, auditID, key string, payload []byte) (*domain.AdvancedData, error) {
	if key == "" {
		return nil, domain.NewValidationError("advanced data key required", "", nil)
	}
	if !json.Valid(payload) {
		return nil, domain.NewValidationError("advanced data must be JSON", key, nil)
	}
	if _, err := s.GetAudit(ctx, auditID); err != nil {
		return nil, err
	}
	data, err := s.advanced.Put(ctx, auditID, key, string(payload))
	if err != nil {
		return nil, domain.NewStorageError("failed to store advanced data", err)
	}
	return data, nil
}

func (s *AuditService) GetAdvancedData(ctx context.Context, auditID, key string) (*domain.AdvancedData, error) {
	data, err := s.advanced.Get(ctx, auditID, key)
	if err != nil {
		return nil, domain.NewStorageError("failed to get advanced data", err)
	}
	if data == nil {
		return nil, domain.NewNotFoundError("advanced data", fmt.Sprintf("%s/%s", auditID, key))
	}
	return data, nil
}

// CheckMedia compares the audit's photo rows with the files in its media
// directory. It only reports; nothing is repaired.
func (s *AuditService) CheckMedia(ctx context.Context, auditID string) ([]domain.ConsistencyGap, error) {
	if _, err := s.GetAudit(ctx, auditID); err != nil {
		return nil, err
	}
	photos, err := s.listPhotos(ctx, auditID)
	if err != nil {
		return nil, err
	}
	files, err := s.files.ListFiles(ctx, media.AuditDir(auditID))
	if err != nil {
		return nil, domain.NewStorageError("failed to list media files", err)
	}

	rows := make(map[string]bool, len(photos.Audit)+len(photos.Sections))
	for _, p := range photos.Audit {
		rows[p.Path] = true
	}
	for _, p := range photos.Sections {
		rows[p.Path] = true
	}
	onDisk := make(map[string]bool, len(files))
	for _, f := range files {
		onDisk[f] = true
	}

	var gaps []domain.ConsistencyGap
	for p := range rows {
		if !onDisk[p] {
			gaps = append(gaps, domain.ConsistencyGap{AuditID: auditID, Path: p, Reason: domain.GapMissingFile})
		}
	}
	for _, f := range files {
		if !rows[f] {
			gaps = append(gaps, domain.ConsistencyGap{AuditID: auditID, Path: f, Reason: domain.GapOrphanFile})
		}
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].Path < gaps[j].Path })

	if len(gaps) > 0 {
		s.logger.Warn("media consistency gaps found", "audit_id", auditID, "gaps", len(gaps))
	}
	return gaps, nil
}
