package domain

import (
	"encoding/json"
	"strconv"
)

type ValueKind int

const (
	KindText ValueKind = iota + 1
	KindOption
	KindNumber
	KindBoolean
	KindImageRef
)

func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindOption:
		return "option"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindImageRef:
		return "image_ref"
	default:
		return "unknown"
	}
}

// Value is the tagged union of answer payloads. Only the field matching Kind
// is meaningful. Text holds the text, the joined option list or the raw
// embedded-image data URL depending on Kind.
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
	Bool   bool
}

func TextValue(s string) Value { return Value{Kind: KindText, Text: s} }
func OptionValue(s string) Value { return Value{Kind: KindOption, Text: s} }
func NumberValue(f float64) Value { return Value{Kind: KindNumber, Number: f} }
func BoolValue(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }
func ImageRefValue(s string) Value { return Value{Kind: KindImageRef, Text: s} }

// String renders the payload for display purposes.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Text
	}
}

// MarshalJSON encodes the payload with its kind, e.g. {"kind":"number","value":3}.
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Kind {
	case KindNumber:
		payload = v.Number
	case KindBoolean:
		payload = v.Bool
	default:
		payload = v.Text
	}
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Value any    `json:"value"`
	}{Kind: v.Kind.String(), Value: payload})
}
