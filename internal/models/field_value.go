package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type FieldKind string

const (
	FieldString FieldKind = "string"
	FieldNumber FieldKind = "number"
	FieldBool   FieldKind = "boolean"
	FieldDate   FieldKind = "date"
)

// FieldValue is a tagged union for the free-form values customers and
// admins submit (customer data, specifications, filter values).
//
// Strings, numbers and booleans travel as plain JSON scalars. Dates are
// encoded as {"type":"date","value":"<RFC3339>"} so they survive a round
// trip without being confused with strings.
type FieldValue struct {
	Kind FieldKind
	Str  string
	Num  float64
	Bool bool
	Time time.Time
}

type FieldMap map[string]FieldValue

func StringValue(s string) FieldValue  { return FieldValue{Kind: FieldString, Str: s} }
func NumberValue(n float64) FieldValue { return FieldValue{Kind: FieldNumber, Num: n} }
func BoolValue(b bool) FieldValue      { return FieldValue{Kind: FieldBool, Bool: b} }
func DateValue(t time.Time) FieldValue { return FieldValue{Kind: FieldDate, Time: t.UTC()} }

func (v FieldValue) IsNull() bool { return v.Kind == "" }

func (v FieldValue) Is(kind FieldKind) bool { return v.Kind == kind }

// Empty reports whether the value counts as "not provided": null, a blank
// string, false, 0 or NaN.
func (v FieldValue) Empty() bool {
	switch v.Kind {
	case "":
		return true
	case FieldString:
		return strings.TrimSpace(v.Str) == ""
	case FieldNumber:
		return v.Num == 0 || math.IsNaN(v.Num)
	case FieldBool:
		return !v.Bool
	}
	return false
}

func (v FieldValue) String() string {
	switch v.Kind {
	case FieldString:
		return v.Str
	case FieldNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case FieldBool:
		return strconv.FormatBool(v.Bool)
	case FieldDate:
		return v.Time.Format(time.RFC3339)
	}
	return ""
}

type taggedValue struct {
	Type  FieldKind       `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case FieldString:
		return json.Marshal(v.Str)
	case FieldNumber:
		return json.Marshal(v.Num)
	case FieldBool:
		return json.Marshal(v.Bool)
	case FieldDate:
		raw, err := json.Marshal(v.Time.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return nil, err
		}
		return json.Marshal(taggedValue{Type: FieldDate, Value: raw})
	}
	return []byte("null"), nil
}

func (v *FieldValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = FieldValue{}
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var x bool
		if err := json.Unmarshal(b, &x); err != nil {
			return err
		}
		*v = BoolValue(x)
	case '{':
		var tv taggedValue
		if err := json.Unmarshal(b, &tv); err != nil {
			return err
		}
		return v.fromTagged(tv)
	case '[':
		return fmt.Errorf("field value: arrays are not supported")
	default:
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("field value: %w", err)
		}
		*v = NumberValue(n)
	}
	return nil
}

func (v *FieldValue) fromTagged(tv taggedValue) error {
	switch tv.Type {
	case FieldDate:
		var s string
		if err := json.Unmarshal(tv.Value, &s); err != nil {
			return fmt.Errorf("field value: date: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("field value: date: %w", err)
		}
		*v = DateValue(t)
		return nil
	case FieldString, FieldNumber, FieldBool:
		var inner FieldValue
		if err := inner.UnmarshalJSON(tv.Value); err != nil {
			return err
		}
		if inner.Kind != tv.Type {
			return fmt.Errorf("field value: %s tag holds %s", tv.Type, inner.Kind)
		}
		*v = inner
		return nil
	}
	return fmt.Errorf("field value: unknown type %q", tv.Type)
}
