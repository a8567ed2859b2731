package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/opname/internal/domain"
	"github.com/vbonduro/opname/internal/photostore"
	"github.com/vbonduro/opname/internal/photostore/local"
)

var fixedNow = time.UnixMilli(1700000000123)

func newTestPipeline(t *testing.T, cfg Config) (*Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	store, err := local.NewLocalPhotoStore(root)
	require.NoError(t, err)
	return NewPipeline(store, cfg, slog.Default(), WithClock(func() time.Time { return fixedNow })), root
}

func noiseImage(w, h int) *image.RGBA {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		if i%4 == 3 {
			img.Pix[i] = 0xFF
			continue
		}
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

func noiseJPEG(t *testing.T, w, h, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, noiseImage(w, h), &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

func noiseWebP(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, webp.Encode(&buf, noiseImage(w, h), &webp.Options{Quality: 100}))
	return buf.Bytes()
}

func storedConfig(t *testing.T, root string, stored *Stored, decodeConfig func(io.Reader) (image.Config, error)) image.Config {
	t.Helper()
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(stored.RelPath)))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := decodeConfig(f)
	require.NoError(t, err)
	return cfg
}

func gradientPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestIngestSmallImageStoredByteIdentical(t *testing.T) {
	p, root := newTestPipeline(t, DefaultConfig())
	data := gradientPNG(t, 64, 32)

	stored, err := p.Ingest(context.Background(), Upload{
		Data:      data,
		MimeType:  "image/png",
		Placement: Placement{AuditID: "a1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "audits/a1/foto_opname_1700000000123.png", stored.RelPath)
	assert.False(t, stored.Compressed)
	assert.Equal(t, int64(len(data)), stored.Size)

	onDisk, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(stored.RelPath)))
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)
}

func TestIngestSectionLevelPlacement(t *testing.T) {
	p, root := newTestPipeline(t, DefaultConfig())

	stored, err := p.Ingest(context.Background(), Upload{
		Data:      []byte{0xFF, 0xD8, 0xFF},
		MimeType:  "image/jpeg",
		Placement: Placement{AuditID: "a1", SectionName: "Ventilatie", QuestionID: "Meter Foto"},
	})
	require.NoError(t, err)

	assert.Equal(t, "meter_foto_ventilatie_1700000000123.jpg", stored.Filename)
	assert.Equal(t, "audits/a1/sections/ventilatie/meter_foto_ventilatie_1700000000123.jpg", stored.RelPath)
	assert.FileExists(t, filepath.Join(root, "audits", "a1", "sections", "ventilatie", stored.Filename))
}

func TestIngestRejectsOversizedUpload(t *testing.T) {
	p, root := newTestPipeline(t, Config{MaxUploadBytes: 16})

	_, err := p.Ingest(context.Background(), Upload{
		Data:      make([]byte, 17),
		MimeType:  "image/jpeg",
		Placement: Placement{AuditID: "a1"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSizeExceeded))
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.NoDirExists(t, filepath.Join(root, "audits"))
}

func TestIngestRejectsNonImage(t *testing.T) {
	p, _ := newTestPipeline(t, DefaultConfig())

	_, err := p.Ingest(context.Background(), Upload{
		Data:      []byte("%PDF-1.4"),
		MimeType:  "application/pdf",
		Placement: Placement{AuditID: "a1"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidType))
}

func TestIngestRejectsUnsafePlacement(t *testing.T) {
	p, _ := newTestPipeline(t, DefaultConfig())

	for _, pl := range []Placement{
		{AuditID: ""},
		{AuditID: "../a1"},
		{AuditID: "a1", SectionName: ".."},
	} {
		_, err := p.Ingest(context.Background(), Upload{Data: []byte{1}, MimeType: "image/jpeg", Placement: pl})
		assert.True(t, errors.Is(err, domain.ErrValidation), "%+v", pl)
	}
}

func TestIngestCompressesLargeJPEG(t *testing.T) {
	p, root := newTestPipeline(t, Config{MaxUploadBytes: 64 * 1024 * 1024, CompressThreshold: 64 * 1024, MaxDimension: 1920})
	data := noiseJPEG(t, 3000, 300, 100)
	require.Greater(t, len(data), 64*1024)

	stored, err := p.Ingest(context.Background(), Upload{
		Data:      data,
		MimeType:  "image/jpeg",
		Placement: Placement{AuditID: "a1", SectionName: "verlichting", QuestionID: "armatuur"},
	})
	require.NoError(t, err)
	assert.True(t, stored.Compressed)
	assert.LessOrEqual(t, stored.Size, int64(len(data)))
	assert.Equal(t, "image/jpeg", stored.MimeType)

	cfg := storedConfig(t, root, stored, jpeg.DecodeConfig)
	assert.Equal(t, 1920, cfg.Width)
	assert.Equal(t, 192, cfg.Height)
}

func TestIngestResizedLowQualityJPEGIsNeverStoredOversized(t *testing.T) {
	p, root := newTestPipeline(t, Config{MaxUploadBytes: 64 * 1024 * 1024, CompressThreshold: 512 * 1024, MaxDimension: 1920})
	data := noiseJPEG(t, 2100, 1600, 40)
	require.Greater(t, len(data), 512*1024)

	stored, err := p.Ingest(context.Background(), Upload{
		Data:      data,
		MimeType:  "image/jpeg",
		Placement: Placement{AuditID: "a1"},
	})
	require.NoError(t, err)
	assert.True(t, stored.Compressed)
	assert.Equal(t, "image/jpeg", stored.MimeType)
	assert.LessOrEqual(t, stored.Size, int64(len(data)))

	cfg := storedConfig(t, root, stored, jpeg.DecodeConfig)
	assert.Equal(t, 1920, cfg.Width)
	assert.LessOrEqual(t, cfg.Height, 1920)
}

func TestIngestCompressesLargeWebP(t *testing.T) {
	p, root := newTestPipeline(t, Config{MaxUploadBytes: 64 * 1024 * 1024, CompressThreshold: 64 * 1024, MaxDimension: 1920})
	data := noiseWebP(t, 2400, 300)
	require.Greater(t, len(data), 64*1024)

	stored, err := p.Ingest(context.Background(), Upload{
		Data:      data,
		MimeType:  "image/webp",
		Placement: Placement{AuditID: "a1", SectionName: "zonwering", QuestionID: "screen"},
	})
	require.NoError(t, err)
	assert.True(t, stored.Compressed)
	assert.Equal(t, "image/webp", stored.MimeType)
	assert.Equal(t, ".webp", filepath.Ext(stored.Filename))
	assert.LessOrEqual(t, stored.Size, int64(len(data)))

	cfg := storedConfig(t, root, stored, webp.DecodeConfig)
	assert.Equal(t, 1920, cfg.Width)
	assert.Equal(t, 240, cfg.Height)
}

func TestIngestResizesLargePNG(t *testing.T) {
	p, root := newTestPipeline(t, Config{CompressThreshold: 1024, MaxDimension: 1920})
	data := gradientPNG(t, 2500, 100)
	require.Greater(t, len(data), 1024)

	stored, err := p.Ingest(context.Background(), Upload{
		Data:      data,
		MimeType:  "image/png",
		Placement: Placement{AuditID: "a1"},
	})
	require.NoError(t, err)
	assert.True(t, stored.Compressed)
	assert.LessOrEqual(t, stored.Size, int64(len(data)))

	cfg := storedConfig(t, root, stored, png.DecodeConfig)
	assert.LessOrEqual(t, cfg.Width, 1920)
}

func TestIngestCompressionFailureStoresOriginal(t *testing.T) {
	p, root := newTestPipeline(t, Config{CompressThreshold: 8})
	data := []byte("definitely not a jpeg but long enough")

	stored, err := p.Ingest(context.Background(), Upload{
		Data:      data,
		MimeType:  "image/jpeg",
		Placement: Placement{AuditID: "a1"},
	})
	require.NoError(t, err)
	assert.False(t, stored.Compressed)

	onDisk, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(stored.RelPath)))
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)
}

func TestIngestUnsupportedFamilyStoresOriginal(t *testing.T) {
	p, _ := newTestPipeline(t, Config{CompressThreshold: 4})

	stored, err := p.Ingest(context.Background(), Upload{
		Data:      []byte("GIF89a-------"),
		MimeType:  "image/gif",
		Placement: Placement{AuditID: "a1"},
	})
	require.NoError(t, err)
	assert.False(t, stored.Compressed)
	assert.Equal(t, "image/gif", stored.MimeType)
	assert.Equal(t, ".gif", filepath.Ext(stored.Filename))
}

type failingStore struct{ photostore.PhotoStore }

func (failingStore) Write(context.Context, string, io.Reader) error {
	return errors.New("disk full")
}

func TestIngestStorageFailure(t *testing.T) {
	p := NewPipeline(failingStore{}, DefaultConfig(), slog.Default())

	_, err := p.Ingest(context.Background(), Upload{
		Data:      []byte{1, 2, 3},
		MimeType:  "image/jpeg",
		Placement: Placement{AuditID: "a1"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorage))
}

func TestFilenameOnlySafeCharacters(t *testing.T) {
	safe := regexp.MustCompile(`^[a-z0-9._-]+$`)
	for _, tc := range []struct{ question, section string }{
		{"", ""},
		{"Foto Ketel #1", "Warm Tapwater"},
		{"één/twee", "ventilatie"},
		{"../../etc", "a b"},
	} {
		name := Filename(tc.question, tc.section, "image/jpeg", fixedNow)
		assert.Regexp(t, safe, name)
	}
	assert.Equal(t, "foto_opname_1700000000123.webp", Filename("", "", "image/webp", fixedNow))
	assert.Equal(t, "q1_koeling_1700000000123.jpg", Filename("q1", "koeling", "image/jpeg", fixedNow))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "cv-ketel_1.2", Sanitize("CV-Ketel 1.2"))
	assert.Equal(t, "a_b", Sanitize("a/b"))
	assert.Equal(t, "_", Sanitize("é"))
}
