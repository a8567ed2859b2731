package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/opname/internal/domain"
)

func answersFor(values map[string]domain.Value) []domain.Answer {
	var out []domain.Answer
	i := 0
	for q, v := range values {
		i++
		out = append(out, domain.Answer{ID: fmt.Sprintf("%s-%d", q, i), QuestionID: q, Value: v})
	}
	return out
}

// fresh gives answers new ids, as a second normalization of the same input would.
func fresh(answers []domain.Answer, round int) []domain.Answer {
	out := make([]domain.Answer, len(answers))
	for i, a := range answers {
		a.ID = fmt.Sprintf("%s-r%d", a.ID, round)
		out[i] = a
	}
	return out
}

func valuesByQuestion(answers []*domain.Answer) map[string]domain.Value {
	out := map[string]domain.Value{}
	for _, a := range answers {
		out[a.QuestionID] = a.Value
	}
	return out
}

func TestSaveAnswersHeatingExample(t *testing.T) {
	d := openTestDB(t)
	audit := createTestAudit(t, d, "Zwembad")
	sections := NewSectionStore(d)
	answers := NewAnswerStore(d)
	ctx := context.Background()

	section, err := sections.SaveAnswers(ctx, audit.ID, "verwarmingssysteem", "basic", answersFor(map[string]domain.Value{
		"heating_type":    domain.TextValue("CV-ketel"),
		"heating_zones":   domain.NumberValue(3),
		"heating_control": domain.BoolValue(true),
	}))
	require.NoError(t, err)
	assert.True(t, section.Completed)
	assert.Equal(t, "basic", section.Type)

	stored, err := answers.ListBySection(ctx, audit.ID, "verwarmingssysteem")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, map[string]domain.Value{
		"heating_type":    domain.TextValue("CV-ketel"),
		"heating_zones":   domain.NumberValue(3),
		"heating_control": domain.BoolValue(true),
	}, valuesByQuestion(stored))
}

func TestSaveAnswersIsIdempotent(t *testing.T) {
	d := openTestDB(t)
	audit := createTestAudit(t, d, "Bibliotheek")
	sections := NewSectionStore(d)
	answers := NewAnswerStore(d)
	ctx := context.Background()

	in := answersFor(map[string]domain.Value{
		"lamp_type": domain.OptionValue("led, tl"),
		"lamps":     domain.NumberValue(40),
	})

	_, err := sections.SaveAnswers(ctx, audit.ID, "verlichting", "basic", in)
	require.NoError(t, err)
	once, err := answers.ListBySection(ctx, audit.ID, "verlichting")
	require.NoError(t, err)

	_, err = sections.SaveAnswers(ctx, audit.ID, "verlichting", "basic", fresh(in, 2))
	require.NoError(t, err)
	twice, err := answers.ListBySection(ctx, audit.ID, "verlichting")
	require.NoError(t, err)

	assert.Len(t, twice, len(once))
	assert.Equal(t, valuesByQuestion(once), valuesByQuestion(twice))

	all, err := sections.ListByAudit(ctx, audit.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSaveAnswersReplacesPreviousRows(t *testing.T) {
	d := openTestDB(t)
	audit := createTestAudit(t, d, "Gemeentehuis")
	sections := NewSectionStore(d)
	answers := NewAnswerStore(d)
	ctx := context.Background()

	_, err := sections.SaveAnswers(ctx, audit.ID, "ventilatie", "basic", answersFor(map[string]domain.Value{
		"system": domain.TextValue("D"),
		"hrv":    domain.BoolValue(true),
	}))
	require.NoError(t, err)

	_, err = sections.SaveAnswers(ctx, audit.ID, "ventilatie", "basic", answersFor(map[string]domain.Value{
		"system": domain.TextValue("C"),
	}))
	require.NoError(t, err)

	stored, err := answers.ListBySection(ctx, audit.ID, "ventilatie")
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Value{"system": domain.TextValue("C")}, valuesByQuestion(stored))
}

func TestSaveAnswersEmptyStillMarksCompleted(t *testing.T) {
	d := openTestDB(t)
	audit := createTestAudit(t, d, "Depot")
	sections := NewSectionStore(d)
	ctx := context.Background()

	section, err := sections.SaveAnswers(ctx, audit.ID, "koeling", "basic", nil)
	require.NoError(t, err)
	assert.True(t, section.Completed)
}

func TestSaveAnswersKeepsOtherSections(t *testing.T) {
	d := openTestDB(t)
	audit := createTestAudit(t, d, "Museum")
	sections := NewSectionStore(d)
	answers := NewAnswerStore(d)
	ctx := context.Background()

	_, err := sections.SaveAnswers(ctx, audit.ID, "koeling", "basic", answersFor(map[string]domain.Value{"a": domain.TextValue("x")}))
	require.NoError(t, err)
	_, err = sections.SaveAnswers(ctx, audit.ID, "zonwering", "basic", nil)
	require.NoError(t, err)

	stored, err := answers.ListBySection(ctx, audit.ID, "koeling")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestSaveAnswersUnknownAudit(t *testing.T) {
	d := openTestDB(t)
	sections := NewSectionStore(d)
	ctx := context.Background()

	_, err := sections.SaveAnswers(ctx, "missing", "koeling", "basic", answersFor(map[string]domain.Value{"a": domain.TextValue("x")}))
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	section, err := sections.Get(ctx, "missing", "koeling")
	require.NoError(t, err)
	assert.Nil(t, section)
}

func TestSaveAnswersRollsBackOnFailure(t *testing.T) {
	d := openTestDB(t)
	audit := createTestAudit(t, d, "Kerk")
	sections := NewSectionStore(d)
	answers := NewAnswerStore(d)
	ctx := context.Background()

	_, err := sections.SaveAnswers(ctx, audit.ID, "verlichting", "basic", []domain.Answer{
		{ID: "a1", QuestionID: "lamps", Value: domain.NumberValue(12)},
	})
	require.NoError(t, err)

	// The second row reuses an id, so the insert fails after the delete ran.
	_, err = sections.SaveAnswers(ctx, audit.ID, "verlichting", "advanced", []domain.Answer{
		{ID: "b1", QuestionID: "lamps", Value: domain.NumberValue(20)},
		{ID: "b1", QuestionID: "dimmable", Value: domain.BoolValue(true)},
	})
	require.Error(t, err)

	stored, err := answers.ListBySection(ctx, audit.ID, "verlichting")
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Value{"lamps": domain.NumberValue(12)}, valuesByQuestion(stored))
}

func TestSaveAnswersRejectsImageRefs(t *testing.T) {
	d := openTestDB(t)
	audit := createTestAudit(t, d, "Kerk")
	sections := NewSectionStore(d)
	ctx := context.Background()

	_, err := sections.SaveAnswers(ctx, audit.ID, "verlichting", "basic", []domain.Answer{
		{ID: "x", QuestionID: "photo", Value: domain.ImageRefValue("data:image/png;base64,AA==")},
	})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	section, err := sections.Get(ctx, audit.ID, "verlichting")
	require.NoError(t, err)
	assert.Nil(t, section)
}

func TestSaveAnswersConcurrentSections(t *testing.T) {
	d := openTestDB(t)
	audit := createTestAudit(t, d, "Ziekenhuis")
	sections := NewSectionStore(d)
	ctx := context.Background()

	names := []string{"algemeen", "koeling", "ventilatie", "verlichting"}
	var wg sync.WaitGroup
	errs := make([]error, len(names))
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = sections.SaveAnswers(ctx, audit.ID, name, "basic", answersFor(map[string]domain.Value{
				name + "_q": domain.TextValue(name),
			}))
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	all, err := sections.ListByAudit(ctx, audit.ID)
	require.NoError(t, err)
	assert.Len(t, all, len(names))
}

func TestDeletingAuditCascades(t *testing.T) {
	d := openTestDB(t)
	audit := createTestAudit(t, d, "Station")
	ctx := context.Background()

	_, err := NewSectionStore(d).SaveAnswers(ctx, audit.ID, "koeling", "basic", answersFor(map[string]domain.Value{"a": domain.TextValue("x")}))
	require.NoError(t, err)
	_, err = NewPhotoStore(d).CreateAuditPhoto(ctx, &domain.AuditPhoto{AuditID: audit.ID, Filename: "f.jpg", Path: "audits/x/f.jpg"})
	require.NoError(t, err)

	require.NoError(t, NewAuditStore(d).Delete(ctx, audit.ID))

	for _, table := range []string{"sections", "answers", "audit_photos", "section_photos", "contacts", "advanced_data"} {
		var n int
		require.NoError(t, d.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE audit_id = ?", audit.ID).Scan(&n))
		assert.Zero(t, n, table)
	}
}
