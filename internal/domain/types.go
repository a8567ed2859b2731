package domain

import "time"

type AuditType string

const (
	AuditTypeBasic    AuditType = "basic"
	AuditTypeAdvanced AuditType = "advanced"
)

type AuditStatus string

const (
	StatusInProgress AuditStatus = "in_progress"
	StatusCompleted  AuditStatus = "completed"
	StatusDraft      AuditStatus = "draft"
)

// Valid reports whether s is one of the known statuses. No transitions are
// enforced between them.
func (s AuditStatus) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusDraft:
		return true
	}
	return false
}

// Building holds the descriptive attributes of the surveyed building.
type Building struct {
	Name             string   `json:"name"`
	Address          string   `json:"address"`
	Postcode         string   `json:"postcode"`
	City             string   `json:"city"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	Area             *float64 `json:"building_area"`
	EnergyLabel      string   `json:"energy_label"`
	BuildingType     string   `json:"building_type"`
	ConstructionYear *int64   `json:"construction_year"`
	Notes            string   `json:"notes"`
}

type Audit struct {
	ID     string      `json:"id"`
	Type   AuditType   `json:"audit_type"`
	Status AuditStatus `json:"status"`
	Building
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Section struct {
	AuditID   string    `json:"audit_id"`
	Name      string    `json:"section_name"`
	Type      string    `json:"section_type"`
	Completed bool      `json:"completed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Answer is one question's response within a section. Exactly one payload
// kind is carried in Value; ImageRef values never reach this type.
type Answer struct {
	ID          string `json:"id"`
	AuditID     string `json:"audit_id"`
	SectionName string `json:"section_name"`
	QuestionID  string `json:"question_id"`
	Label       string `json:"label"`
	Value       Value  `json:"value"`
}

type AuditPhoto struct {
	ID          string    `json:"id"`
	AuditID     string    `json:"audit_id"`
	Filename    string    `json:"filename"`
	Path        string    `json:"path"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	SortOrder   int       `json:"sort_order"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type SectionPhoto struct {
	AuditPhoto
	SectionName string `json:"section_name"`
	QuestionID  string `json:"question_id"`
}

type Contact struct {
	ID        string    `json:"id"`
	AuditID   string    `json:"audit_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// AdvancedData is a free-form JSON document attached to an audit under a key.
type AdvancedData struct {
	AuditID   string    `json:"audit_id"`
	Key       string    `json:"key"`
	Payload   string    `json:"payload"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConsistencyGap describes a photo row without its file or a file without a row.
type ConsistencyGap struct {
	AuditID string `json:"audit_id"`
	Path    string `json:"path"`
	Reason  string `json:"reason"`
}

const (
	GapMissingFile = "missing_file"
	GapOrphanFile  = "orphan_file"
)
