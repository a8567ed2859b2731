package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vbonduro/opname/internal/db"
	"github.com/vbonduro/opname/internal/domain"
	"github.com/vbonduro/opname/internal/media"
	"github.com/vbonduro/opname/internal/photostore"
	"github.com/vbonduro/opname/internal/photostore/local"
	"github.com/vbonduro/opname/internal/store"
)

// testEnv wires the services against a temp-file database and media root.
type testEnv struct {
	repos    Repositories
	audits   *store.AuditStore
	photos   *store.PhotoStore
	files    *local.LocalPhotoStore
	pipeline *media.Pipeline
	root     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "opname.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	root := t.TempDir()
	files, err := local.NewLocalPhotoStore(root)
	require.NoError(t, err)

	audits := store.NewAuditStore(d)
	photos := store.NewPhotoStore(d)
	return &testEnv{
		repos: Repositories{
			Audits:   audits,
			Sections: store.NewSectionStore(d),
			Answers:  store.NewAnswerStore(d),
			Photos:   photos,
			Contacts: store.NewContactStore(d),
			Advanced: store.NewAdvancedDataStore(d),
		},
		audits:   audits,
		photos:   photos,
		files:    files,
		pipeline: media.NewPipeline(files, media.DefaultConfig(), slog.Default(), media.WithClock(tickingClock())),
		root:     root,
	}
}

func (e *testEnv) service() *AuditService {
	return NewAuditService(e.repos, e.pipeline, e.files, slog.Default())
}

// tickingClock advances one millisecond per call so filenames never collide.
func tickingClock() func() time.Time {
	var (
		mu sync.Mutex
		t  = time.UnixMilli(1700000000000)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.NRGBA{R: 200, G: uint8(x * 40), B: uint8(y * 40), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pngDataURL(t *testing.T) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(tinyPNG(t))
}

// failingFiles wraps a PhotoStore and fails RemoveTree for the listed dirs.
type failingFiles struct {
	photostore.PhotoStore
	failTree map[string]bool
}

func (f *failingFiles) RemoveTree(ctx context.Context, relDir string) error {
	if f.failTree[relDir] {
		return errors.New("permission denied")
	}
	return f.PhotoStore.RemoveTree(ctx, relDir)
}

// failingPhotoRows rejects every photo row insert.
type failingPhotoRows struct {
	*store.PhotoStore
}

func (failingPhotoRows) CreateAuditPhoto(context.Context, *domain.AuditPhoto) (*domain.AuditPhoto, error) {
	return nil, errors.New("database is locked")
}

func (failingPhotoRows) CreateSectionPhoto(context.Context, *domain.SectionPhoto) (*domain.SectionPhoto, error) {
	return nil, errors.New("database is locked")
}
