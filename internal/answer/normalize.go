// Package answer turns client-supplied question maps into typed answer rows.
package answer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/vbonduro/opname/internal/domain"
)

// ImageMarker prefixes string values that carry an embedded image.
const ImageMarker = "data:image/"

// OptionSeparator joins list values into the option field.
const OptionSeparator = ", "

// DefaultReservedKeys are bookkeeping fields clients send alongside answers.
var DefaultReservedKeys = []string{"section", "timestamp"}

// ImageRef is an embedded image found in an answer map, keyed by the
// question it was submitted under.
type ImageRef struct {
	QuestionID string
	DataURL    string
}

type Result struct {
	Answers []domain.Answer
	Images  []ImageRef
}

type options struct {
	reserved map[string]bool
	labels   map[string]string
	newID    func() string
}

type Option func(*options)

func WithReservedKeys(keys ...string) Option {
	return func(o *options) {
		o.reserved = make(map[string]bool, len(keys))
		for _, k := range keys {
			o.reserved[k] = true
		}
	}
}

// WithLabels attaches a free-text label to answers by question id.
func WithLabels(labels map[string]string) Option {
	return func(o *options) { o.labels = labels }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// Normalize maps question_id -> value into answer rows for one section.
// Rows come out sorted by question id; embedded images are returned
// separately and never become rows. AuditID and SectionName on the returned
// answers are left empty for the caller to fill in.
func Normalize(values map[string]any, opts ...Option) Result {
	o := options{newID: uuid.NewString}
	WithReservedKeys(DefaultReservedKeys...)(&o)
	for _, opt := range opts {
		opt(&o)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		if !o.reserved[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var res Result
	for _, k := range keys {
		v, ok := Classify(values[k])
		if !ok {
			continue
		}
		if v.Kind == domain.KindImageRef {
			res.Images = append(res.Images, ImageRef{QuestionID: k, DataURL: v.Text})
			continue
		}
		res.Answers = append(res.Answers, domain.Answer{
			ID:         o.newID(),
			QuestionID: k,
			Label:      o.labels[k],
			Value:      v,
		})
	}
	return res
}

// Classify determines the payload kind of a raw answer value. It reports
// false for nil, which means the question was left unanswered.
func Classify(raw any) (domain.Value, bool) {
	switch v := raw.(type) {
	case nil:
		return domain.Value{}, false
	case string:
		if IsImageRef(v) {
			return domain.ImageRefValue(v), true
		}
		return domain.TextValue(v), true
	case bool:
		return domain.BoolValue(v), true
	case float64:
		return domain.NumberValue(v), true
	case float32:
		return domain.NumberValue(float64(v)), true
	case int:
		return domain.NumberValue(float64(v)), true
	case int8:
		return domain.NumberValue(float64(v)), true
	case int16:
		return domain.NumberValue(float64(v)), true
	case int32:
		return domain.NumberValue(float64(v)), true
	case int64:
		return domain.NumberValue(float64(v)), true
	case uint:
		return domain.NumberValue(float64(v)), true
	case uint8:
		return domain.NumberValue(float64(v)), true
	case uint16:
		return domain.NumberValue(float64(v)), true
	case uint32:
		return domain.NumberValue(float64(v)), true
	case uint64:
		return domain.NumberValue(float64(v)), true
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return domain.NumberValue(f), true
		}
		return domain.TextValue(v.String()), true
	case []string:
		return domain.OptionValue(strings.Join(v, OptionSeparator)), true
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, stringify(item))
		}
		return domain.OptionValue(strings.Join(parts, OptionSeparator)), true
	default:
		return domain.TextValue(stringify(v)), true
	}
}

// IsImageRef reports whether s carries an embedded image.
func IsImageRef(s string) bool {
	return strings.HasPrefix(s, ImageMarker)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		if b, err := json.Marshal(t); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}
