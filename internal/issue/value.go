// pattern: Functional Core
package issue

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ValueKind tags the JSON shape of a remote field value.
type ValueKind int

const (
	KindAbsent ValueKind = iota
	KindNull
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

// FieldValue is one dynamically shaped Jira field value. Values keep their
// raw JSON form; accessors decode on demand so unknown shapes survive a
// round trip untouched.
type FieldValue struct {
	raw json.RawMessage
}

// Absent is the zero FieldValue: the field was not present at all.
var Absent = FieldValue{}

// FromRaw wraps raw JSON. Empty input is the absent value.
func FromRaw(raw json.RawMessage) FieldValue {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return FieldValue{}
	}
	return FieldValue{raw: trimmed}
}

// String builds a JSON string value.
func String(value string) FieldValue {
	encoded, _ := json.Marshal(value)
	return FieldValue{raw: encoded}
}

// NameOption builds the {"name": value} shape used by system option fields
// such as priority.
func NameOption(value string) FieldValue {
	encoded, _ := json.Marshal(map[string]string{"name": value})
	return FieldValue{raw: encoded}
}

// ValueOption builds the {"value": value} shape used by custom option
// fields.
func ValueOption(value string) FieldValue {
	encoded, _ := json.Marshal(map[string]string{"value": value})
	return FieldValue{raw: encoded}
}

// FromAny marshals an arbitrary Go value. Marshal failures collapse to the
// absent value; callers pass only JSON-representable data.
func FromAny(value any) FieldValue {
	encoded, err := json.Marshal(value)
	if err != nil {
		return FieldValue{}
	}
	return FromRaw(encoded)
}

// Kind inspects the raw form without fully decoding it.
func (v FieldValue) Kind() ValueKind {
	if len(v.raw) == 0 {
		return KindAbsent
	}
	switch v.raw[0] {
	case 'n':
		return KindNull
	case '"':
		return KindString
	case 't', 'f':
		return KindBool
	case '{':
		return KindObject
	case '[':
		return KindArray
	default:
		return KindNumber
	}
}

// IsAbsent reports a missing field.
func (v FieldValue) IsAbsent() bool {
	return v.Kind() == KindAbsent
}

// IsPresent reports a field that exists and is not JSON null.
func (v FieldValue) IsPresent() bool {
	kind := v.Kind()
	return kind != KindAbsent && kind != KindNull
}

// Raw returns the underlying JSON.
func (v FieldValue) Raw() json.RawMessage {
	return v.raw
}

// StringValue decodes a JSON string value.
func (v FieldValue) StringValue() (string, bool) {
	if v.Kind() != KindString {
		return "", false
	}
	var decoded string
	if err := json.Unmarshal(v.raw, &decoded); err != nil {
		return "", false
	}
	return decoded, true
}

// ObjectField returns a member of an object value.
func (v FieldValue) ObjectField(key string) (FieldValue, bool) {
	if v.Kind() != KindObject {
		return FieldValue{}, false
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(v.raw, &members); err != nil {
		return FieldValue{}, false
	}
	raw, ok := members[key]
	if !ok {
		return FieldValue{}, false
	}
	return FromRaw(raw), true
}

// Elements returns the members of an array value.
func (v FieldValue) Elements() ([]FieldValue, bool) {
	if v.Kind() != KindArray {
		return nil, false
	}
	var members []json.RawMessage
	if err := json.Unmarshal(v.raw, &members); err != nil {
		return nil, false
	}
	elements := make([]FieldValue, 0, len(members))
	for _, raw := range members {
		elements = append(elements, FromRaw(raw))
	}
	return elements, true
}

// Scalar coerces a scalar value to text. Strings decode, numbers render
// without exponent mangling, booleans render as true/false.
func (v FieldValue) Scalar() (string, bool) {
	switch v.Kind() {
	case KindString:
		return v.StringValue()
	case KindNumber:
		var number json.Number
		if err := json.Unmarshal(v.raw, &number); err != nil {
			return "", false
		}
		return number.String(), true
	case KindBool:
		var b bool
		if err := json.Unmarshal(v.raw, &b); err != nil {
			return "", false
		}
		return strconv.FormatBool(b), true
	default:
		return "", false
	}
}

// ExtractText coerces a value to comparable text. Objects prefer their
// name member, then value; scalars coerce directly. Option objects on both
// Jira sites reduce to the same text this way.
func (v FieldValue) ExtractText() (string, bool) {
	if v.Kind() == KindObject {
		for _, key := range []string{"name", "value"} {
			member, ok := v.ObjectField(key)
			if !ok {
				continue
			}
			if text, ok := member.Scalar(); ok && text != "" {
				return text, true
			}
		}
		return "", false
	}
	return v.Scalar()
}

// IsDocument reports the rich-text document shape ({"type":"doc",...}).
func (v FieldValue) IsDocument() bool {
	member, ok := v.ObjectField("type")
	if !ok {
		return false
	}
	text, ok := member.StringValue()
	return ok && text == "doc"
}

// Equal compares raw JSON forms after whitespace trimming.
func (v FieldValue) Equal(other FieldValue) bool {
	return bytes.Equal(v.raw, other.raw)
}

func (v FieldValue) GoString() string {
	if v.IsAbsent() {
		return "issue.Absent"
	}
	return "issue.FromRaw(" + strings.TrimSpace(string(v.raw)) + ")"
}

// MarshalJSON emits the raw form. Absent values encode as null; callers
// filter absent values out of payloads before marshaling.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// UnmarshalJSON captures the raw form.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	v.raw = append(v.raw[:0], bytes.TrimSpace(data)...)
	return nil
}
