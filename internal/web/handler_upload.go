package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/vbonduro/opname/internal/domain"
)

// multipartOverhead is the room left for form fields and boundaries on top of
// the configured image size.
const multipartOverhead = 1 << 20

// allowedImageTypes is the set of MIME types accepted for uploaded photos.
// net/http.DetectContentType handles JPEG, PNG, and GIF via magic-byte
// sniffing. WebP is detected separately because the WHATWG sniffing standard
// (and therefore the stdlib) has no WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// readImage reads the multipart "image" field. The mime type is sniffed from
// the bytes; the client's declared type is not trusted.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, domain.NewValidationError("upload too large", "", domain.ErrSizeExceeded))
			return nil, "", false
		}
		s.badRequest(w, r, "failed to parse form", err)
		return nil, "", false
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		s.badRequest(w, r, "image file required", nil)
		return nil, "", false
	}
	defer closeWithLog(file, "upload file", s.logger)

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, domain.NewStorageError("failed to read upload", err))
		return nil, "", false
	}

	mimeType, ok := allowedImageMIME(imageData)
	if !ok {
		s.writeError(w, r, domain.NewValidationError("unsupported image format", "", domain.ErrInvalidType))
		return nil, "", false
	}
	return imageData, mimeType, true
}

func (s *Server) handleUploadAuditPhoto(w http.ResponseWriter, r *http.Request) {
	imageData, mimeType, ok := s.readImage(w, r)
	if !ok {
		return
	}

	photo, err := s.audits.UploadAuditPhoto(r.Context(), r.PathValue("id"), imageData, mimeType, r.FormValue("description"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, photo, s.logger)
}

func (s *Server) handleUploadSectionPhoto(w http.ResponseWriter, r *http.Request) {
	imageData, mimeType, ok := s.readImage(w, r)
	if !ok {
		return
	}

	photo, err := s.audits.UploadSectionPhoto(r.Context(), r.PathValue("id"), r.PathValue("section"),
		r.FormValue("question_id"), imageData, mimeType, r.FormValue("description"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, photo, s.logger)
}

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := s.audits.ListPhotos(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, photos, s.logger)
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	reader, mimeType, err := s.audits.OpenPhoto(r.Context(), r.PathValue("id"), r.PathValue("photoID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer closeWithLog(reader, "photo reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write photo failed", "photo_id", r.PathValue("photoID"), "error", err)
	}
}

func (s *Server) handleDeleteAuditPhoto(w http.ResponseWriter, r *http.Request) {
	if err := s.audits.DeleteAuditPhoto(r.Context(), r.PathValue("id"), r.PathValue("photoID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSectionPhoto(w http.ResponseWriter, r *http.Request) {
	err := s.audits.DeleteSectionPhoto(r.Context(), r.PathValue("id"), r.PathValue("section"), r.PathValue("photoID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
