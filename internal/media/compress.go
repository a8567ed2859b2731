package media

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

const (
	jpegQuality = 85
	webpQuality = 85
)

// fallbackQualities are tried in order when a resized lossy image comes out
// larger than the upload.
var fallbackQualities = []int{70, 55, 40}

type compressed struct {
	data     []byte
	mimeType string
	resized  bool
}

// recompress decodes data, shrinks it to fit within maxDim x maxDim keeping
// the aspect ratio, and re-encodes it in the same family. Images already
// within bounds are re-encoded without resizing. A resized JPEG or WebP that
// is larger than data is re-encoded at lower qualities until it is not; the
// last attempt is returned either way.
func recompress(data []byte, mimeType string, maxDim int) (*compressed, error) {
	img, err := decode(data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", mimeType, err)
	}

	b := img.Bounds()
	resized := b.Dx() > maxDim || b.Dy() > maxDim
	if resized {
		// Fit never enlarges, so smaller sides stay as they are.
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	family := normalizeMIME(mimeType)
	out, err := encode(img, family, defaultQuality(family))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", mimeType, err)
	}
	if resized && family != "image/png" {
		for _, q := range fallbackQualities {
			if len(out) <= len(data) {
				break
			}
			if out, err = encode(img, family, q); err != nil {
				return nil, fmt.Errorf("failed to encode %s at quality %d: %w", mimeType, q, err)
			}
		}
	}

	return &compressed{data: out, mimeType: family, resized: resized}, nil
}

func defaultQuality(family string) int {
	if family == "image/webp" {
		return webpQuality
	}
	return jpegQuality
}

func encode(img image.Image, family string, quality int) ([]byte, error) {
	var (
		buf bytes.Buffer
		err error
	)
	switch family {
	case "image/jpeg":
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case "image/png":
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case "image/webp":
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)})
	default:
		err = fmt.Errorf("unsupported format %q", family)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, mimeType string) (image.Image, error) {
	switch normalizeMIME(mimeType) {
	case "image/jpeg", "image/png":
		return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	case "image/webp":
		return webp.Decode(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported format %q", mimeType)
	}
}

func normalizeMIME(mimeType string) string {
	switch mimeType {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/x-png":
		return "image/png"
	}
	return mimeType
}
