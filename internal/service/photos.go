package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vbonduro/opname/internal/answer"
	"github.com/vbonduro/opname/internal/domain"
	"github.com/vbonduro/opname/internal/media"
	"github.com/vbonduro/opname/internal/photostore"
)

// photoWriter ingests image bytes and records the photo row for them. A
// failed row insert removes the file again so no new orphan is left behind.
type photoWriter struct {
	media  ingester
	photos photoRepository
	files  photostore.PhotoStore
	logger *slog.Logger
}

func (w *photoWriter) addAuditPhoto(ctx context.Context, auditID string, data []byte, mimeType, description string) (*domain.AuditPhoto, error) {
	stored, err := w.media.Ingest(ctx, media.Upload{
		Data:      data,
		MimeType:  mimeType,
		Placement: media.Placement{AuditID: auditID},
	})
	if err != nil {
		return nil, err
	}

	photo, err := w.photos.CreateAuditPhoto(ctx, &domain.AuditPhoto{
		AuditID:     auditID,
		Filename:    stored.Filename,
		Path:        stored.RelPath,
		MimeType:    stored.MimeType,
		Size:        stored.Size,
		Description: description,
	})
	if err != nil {
		w.discard(ctx, stored.RelPath)
		return nil, domain.NewStorageError("failed to record photo", err)
	}
	return photo, nil
}

func (w *photoWriter) addSectionPhoto(ctx context.Context, auditID, sectionName, questionID string, data []byte, mimeType, description string) (*domain.SectionPhoto, error) {
	stored, err := w.media.Ingest(ctx, media.Upload{
		Data:     data,
		MimeType: mimeType,
		Placement: media.Placement{
			AuditID:     auditID,
			SectionName: sectionName,
			QuestionID:  questionID,
		},
	})
	if err != nil {
		return nil, err
	}

	photo, err := w.photos.CreateSectionPhoto(ctx, &domain.SectionPhoto{
		AuditPhoto: domain.AuditPhoto{
			AuditID:     auditID,
			Filename:    stored.Filename,
			Path:        stored.RelPath,
			MimeType:    stored.MimeType,
			Size:        stored.Size,
			Description: description,
		},
		SectionName: sectionName,
		QuestionID:  questionID,
	})
	if err != nil {
		w.discard(ctx, stored.RelPath)
		return nil, domain.NewStorageError("failed to record photo", err)
	}
	return photo, nil
}

// addEmbedded stores the data-URL images found in an answer map as section
// photos. A failing image is logged and skipped; the failures are returned.
func (w *photoWriter) addEmbedded(ctx context.Context, auditID, sectionName string, images []answer.ImageRef) ([]*domain.SectionPhoto, []error) {
	var (
		photos []*domain.SectionPhoto
		errs   []error
	)
	for _, img := range images {
		data, mimeType, err := answer.DecodeDataURL(img.DataURL)
		if err == nil {
			var photo *domain.SectionPhoto
			photo, err = w.addSectionPhoto(ctx, auditID, sectionName, img.QuestionID, data, mimeType, "")
			if err == nil {
				photos = append(photos, photo)
				continue
			}
		}
		w.logger.Warn("embedded image skipped",
			"audit_id", auditID,
			"section", sectionName,
			"question_id", img.QuestionID,
			"error", err,
		)
		errs = append(errs, fmt.Errorf("%s/%s: %w", sectionName, img.QuestionID, err))
	}
	return photos, errs
}

func (w *photoWriter) discard(ctx context.Context, relPath string) {
	if err := w.files.Remove(ctx, relPath); err != nil {
		w.logger.Error("failed to remove photo file", "path", relPath, "error", err)
	}
}
