package features

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Kind tags the representation a raw field arrived in.
type Kind uint8

const (
	KindNumber Kind = iota + 1
	KindText
	KindBool
	// KindRaw holds any other JSON value (null, array, object) verbatim.
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindRaw:
		return "raw"
	default:
		return "invalid"
	}
}

// ErrEmptyValue is returned when a field has no JSON value at all.
var ErrEmptyValue = errors.New("feature value is empty")

// Value is a raw patient field: exactly one of number, text or boolean.
// Anything else is kept as compacted JSON so it can be echoed back; it never
// coerces to a number or a category.
type Value struct {
	kind Kind
	num  float64
	text string // string payload, or the compacted JSON for KindRaw
	flag bool
}

func Number(f float64) Value { return Value{kind: KindNumber, num: f} }
func Text(s string) Value    { return Value{kind: KindText, text: s} }
func Bool(b bool) Value      { return Value{kind: KindBool, flag: b} }

// Raw wraps a JSON value that is not a number, string or boolean.
func Raw(data json.RawMessage) (Value, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return Value{}, err
	}
	return Value{kind: KindRaw, text: buf.String()}, nil
}

func (v Value) Kind() Kind { return v.kind }

// Number reports the numeric payload and whether v is a number.
func (v Value) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// Text reports the string payload and whether v is text.
func (v Value) Text() (string, bool) { return v.text, v.kind == KindText }

// Bool reports the boolean payload and whether v is a boolean.
func (v Value) Bool() (bool, bool) { return v.flag, v.kind == KindBool }

// Raw reports the compacted JSON and whether v is a raw value.
func (v Value) Raw() (json.RawMessage, bool) {
	if v.kind != KindRaw {
		return nil, false
	}
	return json.RawMessage(v.text), true
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return strconv.Quote(v.text)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindRaw:
		return v.text
	default:
		return "<invalid>"
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	case KindBool:
		return json.Marshal(v.flag)
	case KindRaw:
		return []byte(v.text), nil
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrEmptyValue
	}
	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case c == 't' || c == 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case c == '-' || (c >= '0' && c <= '9'):
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("parse number %s: %w", data, err)
		}
		*v = Number(f)
	default:
		raw, err := Raw(data)
		if err != nil {
			return err
		}
		*v = raw
	}
	return nil
}

// FeatureSet maps request field names to raw values. A FeatureSet is never
// modified once validation has started.
type FeatureSet map[string]Value

// Get returns the value stored under key.
func (fs FeatureSet) Get(key string) (Value, bool) {
	v, ok := fs[key]
	return v, ok
}

// Keys returns the field names in sorted order.
func (fs FeatureSet) Keys() []string {
	keys := make([]string, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy; Values are immutable so this is a full copy.
func (fs FeatureSet) Clone() FeatureSet {
	out := make(FeatureSet, len(fs))
	for k, v := range fs {
		out[k] = v
	}
	return out
}
