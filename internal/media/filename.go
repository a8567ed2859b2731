package media

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/vbonduro/opname/internal/domain"
	"github.com/vbonduro/opname/internal/photostore"
)

const (
	defaultQuestionName = "foto"
	defaultSectionName  = "opname"
	auditsDir           = "audits"
	sectionsDir         = "sections"
)

var unsafeChars = regexp.MustCompile(`[^a-z0-9._-]`)

// Sanitize lowercases s and replaces every character outside [a-z0-9._-]
// with an underscore.
func Sanitize(s string) string {
	return unsafeChars.ReplaceAllString(strings.ToLower(s), "_")
}

// Filename builds the traceable name of an ingested image:
// {question}_{section}_{epochMillis}{ext}.
func Filename(questionID, sectionName, mimeType string, at time.Time) string {
	if questionID == "" {
		questionID = defaultQuestionName
	}
	if sectionName == "" {
		sectionName = defaultSectionName
	}
	return fmt.Sprintf("%s_%s_%d%s",
		Sanitize(questionID), Sanitize(sectionName), at.UnixMilli(), photostore.ExtForMIME(mimeType))
}

// AuditDir is the media directory owned by one audit.
func AuditDir(auditID string) string {
	return path.Join(auditsDir, auditID)
}

// AuditsDir is the parent of all audit media directories.
func AuditsDir() string {
	return auditsDir
}

// Dir returns the directory an upload with placement p is written to.
func Dir(p Placement) (string, error) {
	if err := checkSegment("audit id", p.AuditID, p.AuditID); err != nil {
		return "", err
	}
	if p.SectionName == "" {
		return AuditDir(p.AuditID), nil
	}
	section := Sanitize(p.SectionName)
	if err := checkSegment("section name", p.SectionName, section); err != nil {
		return "", err
	}
	return path.Join(auditsDir, p.AuditID, sectionsDir, section), nil
}

// checkSegment rejects values that would not name exactly one directory
// below their parent.
func checkSegment(what, raw, segment string) error {
	switch {
	case segment == "", segment == ".", segment == "..":
		return domain.NewValidationError("invalid "+what, raw, nil)
	case segment != Sanitize(segment):
		return domain.NewValidationError("invalid "+what, raw, nil)
	}
	return nil
}
