package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vbonduro/opname/internal/domain"
)

type AnswerStore struct {
	db *sql.DB
}

func NewAnswerStore(db *sql.DB) *AnswerStore {
	return &AnswerStore{db: db}
}

const answerColumns = `id, audit_id, section_name, question_id, label, text_value, option_value, number_value, boolean_value`

func (s *AnswerStore) ListBySection(ctx context.Context, auditID, sectionName string) ([]*domain.Answer, error) {
	return s.list(ctx, `SELECT `+answerColumns+` FROM answers
		WHERE audit_id = ? AND section_name = ? ORDER BY question_id ASC`, auditID, sectionName)
}

func (s *AnswerStore) ListByAudit(ctx context.Context, auditID string) ([]*domain.Answer, error) {
	return s.list(ctx, `SELECT `+answerColumns+` FROM answers
		WHERE audit_id = ? ORDER BY section_name ASC, question_id ASC`, auditID)
}

func (s *AnswerStore) list(ctx context.Context, query string, args ...any) ([]*domain.Answer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var answers []*domain.Answer
	for rows.Next() {
		answer, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		answers = append(answers, answer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating answers: %w", err)
	}

	return answers, nil
}

func scanAnswer(row rowScanner) (*domain.Answer, error) {
	a := &domain.Answer{}
	var (
		label, text, option sql.NullString
		number              sql.NullFloat64
		boolean             sql.NullBool
	)
	if err := row.Scan(&a.ID, &a.AuditID, &a.SectionName, &a.QuestionID, &label, &text, &option, &number, &boolean); err != nil {
		return nil, err
	}
	a.Label = label.String

	switch {
	case text.Valid:
		a.Value = domain.TextValue(text.String)
	case option.Valid:
		a.Value = domain.OptionValue(option.String)
	case number.Valid:
		a.Value = domain.NumberValue(number.Float64)
	case boolean.Valid:
		a.Value = domain.BoolValue(boolean.Bool)
	}
	return a, nil
}

// insertAnswers writes answers for one (audit, section). Exactly one payload
// column is set per row, chosen by the value kind.
func insertAnswers(ctx context.Context, q DBTX, auditID, sectionName string, answers []domain.Answer) error {
	for _, a := range answers {
		var (
			text, option any
			number       any
			boolean      any
		)
		switch a.Value.Kind {
		case domain.KindText:
			text = a.Value.Text
		case domain.KindOption:
			option = a.Value.Text
		case domain.KindNumber:
			number = a.Value.Number
		case domain.KindBoolean:
			boolean = a.Value.Bool
		default:
			return domain.NewValidationError("answer has no storable value",
				fmt.Sprintf("question %s: %s", a.QuestionID, a.Value.Kind), nil)
		}

		var label any
		if a.Label != "" {
			label = a.Label
		}

		_, err := q.ExecContext(ctx, `
			INSERT INTO answers (id, audit_id, section_name, question_id, label, text_value, option_value, number_value, boolean_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.ID, auditID, sectionName, a.QuestionID, label, text, option, number, boolean)
		if err != nil {
			return fmt.Errorf("failed to insert answer %s: %w", a.QuestionID, err)
		}
	}
	return nil
}
