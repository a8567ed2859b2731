// Package media ingests uploaded images into the media root: it validates
// them, shrinks large ones and writes them under a traceable name.
package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/vbonduro/opname/internal/domain"
	"github.com/vbonduro/opname/internal/photostore"
)

const (
	DefaultMaxUploadBytes    = 10 * 1024 * 1024
	DefaultCompressThreshold = 2 * 1024 * 1024
	DefaultMaxDimension      = 1920
)

type Config struct {
	MaxUploadBytes    int64
	CompressThreshold int64
	MaxDimension      int
}

func DefaultConfig() Config {
	return Config{
		MaxUploadBytes:    DefaultMaxUploadBytes,
		CompressThreshold: DefaultCompressThreshold,
		MaxDimension:      DefaultMaxDimension,
	}
}

// Placement says where an image belongs. An empty SectionName means the
// image is audit-level. QuestionID only feeds the filename.
type Placement struct {
	AuditID     string
	SectionName string
	QuestionID  string
}

func (p Placement) level() string {
	if p.SectionName == "" {
		return "audit"
	}
	return "section"
}

type Upload struct {
	Data      []byte
	MimeType  string
	Placement Placement
}

// Stored describes a written image. RelPath is relative to the media root.
type Stored struct {
	RelPath    string
	Filename   string
	MimeType   string
	Size       int64
	Compressed bool
}

type Pipeline struct {
	store  photostore.PhotoStore
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

type PipelineOption func(*Pipeline)

// WithClock replaces time.Now for filename timestamps.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(store photostore.PhotoStore, cfg Config, logger *slog.Logger, opts ...PipelineOption) *Pipeline {
	def := DefaultConfig()
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.CompressThreshold <= 0 {
		cfg.CompressThreshold = def.CompressThreshold
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = def.MaxDimension
	}
	p := &Pipeline{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With("component", "media"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest validates, optionally recompresses and writes one image. It does not
// touch the database; callers persist photo metadata from the result.
func (p *Pipeline) Ingest(ctx context.Context, u Upload) (*Stored, error) {
	level := u.Placement.level()
	size := int64(len(u.Data))

	if size > p.cfg.MaxUploadBytes {
		mediaRejectedTotal.WithLabelValues("size").Inc()
		return nil, domain.NewValidationError("upload too large",
			fmt.Sprintf("%d bytes exceeds the %d byte limit", size, p.cfg.MaxUploadBytes), domain.ErrSizeExceeded)
	}

	mimeType := strings.ToLower(strings.TrimSpace(u.MimeType))
	if !strings.HasPrefix(mimeType, "image/") {
		mediaRejectedTotal.WithLabelValues("type").Inc()
		return nil, domain.NewValidationError("upload is not an image", u.MimeType, domain.ErrInvalidType)
	}

	dir, err := Dir(u.Placement)
	if err != nil {
		mediaRejectedTotal.WithLabelValues("placement").Inc()
		return nil, err
	}

	data := u.Data
	wasCompressed := false
	if size > p.cfg.CompressThreshold {
		data, mimeType, wasCompressed = p.compress(u.Data, mimeType, u.Placement)
	}

	filename := Filename(u.Placement.QuestionID, u.Placement.SectionName, mimeType, p.now())
	relPath := path.Join(dir, filename)

	if err := p.store.Write(ctx, relPath, bytes.NewReader(data)); err != nil {
		return nil, domain.NewStorageError("failed to write image", err)
	}

	mediaIngestedTotal.WithLabelValues(level).Inc()
	p.logger.Debug("image stored",
		"audit_id", u.Placement.AuditID,
		"section", u.Placement.SectionName,
		"path", relPath,
		"bytes", len(data),
		"compressed", wasCompressed,
	)

	return &Stored{
		RelPath:    relPath,
		Filename:   filename,
		MimeType:   mimeType,
		Size:       int64(len(data)),
		Compressed: wasCompressed,
	}, nil
}

// compress returns the bytes and mime type to store. Any failure falls back
// to the original upload. A result that did not need resizing and is not
// smaller also falls back; a resized result is always stored so the stored
// image never exceeds the maximum dimension.
func (p *Pipeline) compress(data []byte, mimeType string, pl Placement) ([]byte, string, bool) {
	out, err := recompress(data, mimeType, p.cfg.MaxDimension)
	if err != nil {
		mediaCompressFailedTotal.Inc()
		p.logger.Warn("image compression failed, storing original",
			"audit_id", pl.AuditID, "mime_type", mimeType, "error", err)
		return data, mimeType, false
	}
	if !out.resized && len(out.data) >= len(data) {
		p.logger.Debug("recompressed image not smaller, storing original",
			"audit_id", pl.AuditID, "original", len(data), "recompressed", len(out.data))
		return data, mimeType, false
	}
	mediaCompressedTotal.Inc()
	p.logger.Info("image compressed",
		"audit_id", pl.AuditID,
		"original_bytes", len(data),
		"stored_bytes", len(out.data),
		"resized", out.resized,
	)
	return out.data, out.mimeType, true
}
