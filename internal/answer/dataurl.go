package answer

import (
	"encoding/base64"
	"strings"

	"github.com/vbonduro/opname/internal/domain"
)

// DecodeDataURL extracts the bytes and declared mime type from a base64
// image data URL such as "data:image/png;base64,iVBOR...".
func DecodeDataURL(s string) ([]byte, string, error) {
	if !IsImageRef(s) {
		return nil, "", domain.NewValidationError("not an embedded image", "", domain.ErrInvalidType)
	}

	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, "", domain.NewValidationError("malformed data url", "missing payload separator", nil)
	}

	mimeType, params, _ := strings.Cut(header, ";")
	if !strings.Contains(params, "base64") {
		return nil, "", domain.NewValidationError("malformed data url", "only base64 payloads are supported", nil)
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, "", domain.NewValidationError("malformed data url", "invalid base64 payload", err)
	}
	return data, strings.ToLower(mimeType), nil
}
