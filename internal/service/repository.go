package service

import (
	"context"

	"github.com/vbonduro/opname/internal/domain"
	"github.com/vbonduro/opname/internal/media"
)

// auditRepository is the subset of store.AuditStore the services require.
type auditRepository interface {
	Create(ctx context.Context, a *domain.Audit) (*domain.Audit, error)
	GetByID(ctx context.Context, id string) (*domain.Audit, error)
	List(ctx context.Context) ([]*domain.Audit, error)
	ListIDs(ctx context.Context) ([]string, error)
	Update(ctx context.Context, a *domain.Audit) error
	Delete(ctx context.Context, id string) error
}

// sectionRepository is the subset of store.SectionStore the services require.
type sectionRepository interface {
	SaveAnswers(ctx context.Context, auditID, sectionName, sectionType string, answers []domain.Answer) (*domain.Section, error)
	ListByAudit(ctx context.Context, auditID string) ([]*domain.Section, error)
}

// answerRepository is the subset of store.AnswerStore the services require.
type answerRepository interface {
	ListByAudit(ctx context.Context, auditID string) ([]*domain.Answer, error)
}

// photoRepository is the subset of store.PhotoStore the services require.
type photoRepository interface {
	CreateAuditPhoto(ctx context.Context, p *domain.AuditPhoto) (*domain.AuditPhoto, error)
	CreateSectionPhoto(ctx context.Context, p *domain.SectionPhoto) (*domain.SectionPhoto, error)
	GetAuditPhoto(ctx context.Context, id string) (*domain.AuditPhoto, error)
	GetSectionPhoto(ctx context.Context, id string) (*domain.SectionPhoto, error)
	ListAuditPhotos(ctx context.Context, auditID string) ([]*domain.AuditPhoto, error)
	ListSectionPhotos(ctx context.Context, auditID, sectionName string) ([]*domain.SectionPhoto, error)
	DeleteAuditPhoto(ctx context.Context, id string) error
	DeleteSectionPhoto(ctx context.Context, id string) error
}

// contactRepository is the subset of store.ContactStore the services require.
type contactRepository interface {
	Create(ctx context.Context, c *domain.Contact) (*domain.Contact, error)
	ListByAudit(ctx context.Context, auditID string) ([]*domain.Contact, error)
	Delete(ctx context.Context, auditID, id string) error
}

// advancedRepository is the subset of store.AdvancedDataStore the services require.
type advancedRepository interface {
	Put(ctx context.Context, auditID, key, payload string) (*domain.AdvancedData, error)
	Get(ctx context.Context, auditID, key string) (*domain.AdvancedData, error)
}

// ingester writes image bytes to the media root; media.Pipeline implements it.
type ingester interface {
	Ingest(ctx context.Context, u media.Upload) (*media.Stored, error)
}

// Repositories groups the record stores an AuditService works on.
type Repositories struct {
	Audits   auditRepository
	Sections sectionRepository
	Answers  answerRepository
	Photos   photoRepository
	Contacts contactRepository
	Advanced advancedRepository
}
