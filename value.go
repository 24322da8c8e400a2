package formstate

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ValueKind identifies which variant a Value carries.
type ValueKind uint8

const (
	// ValueAbsent marks a value that is entirely missing. It is the only kind
	// that suppresses a write.
	ValueAbsent ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
	ValueStringArray
)

func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueNumber:
		return "number"
	case ValueBool:
		return "bool"
	case ValueStringArray:
		return "[]string"
	default:
		return "absent"
	}
}

// Value is a stored or resolved field value. The zero Value is absent.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	arr  []string
}

// Absent returns the absent value.
func Absent() Value { return Value{} }

// String wraps s as a string value. The empty string is a valid value.
func String(s string) Value { return Value{kind: ValueString, str: s} }

// Number wraps f as a number value.
func Number(f float64) Value { return Value{kind: ValueNumber, num: f} }

// Bool wraps b as a boolean value.
func Bool(b bool) Value { return Value{kind: ValueBool, b: b} }

// Strings wraps a list of option values. The slice is copied.
func Strings(values []string) Value {
	out := make([]string, len(values))
	copy(out, values)
	return Value{kind: ValueStringArray, arr: out}
}

// Kind reports the variant held by v.
func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports whether v carries no value at all.
func (v Value) IsAbsent() bool { return v.kind == ValueAbsent }

// StringsValue returns the array payload and whether v is an array.
func (v Value) StringsValue() ([]string, bool) {
	if v.kind != ValueStringArray {
		return nil, false
	}
	return slices.Clone(v.arr), true
}

// NumberValue returns the numeric payload and whether v is a number.
func (v Value) NumberValue() (float64, bool) {
	return v.num, v.kind == ValueNumber
}

// BoolValue returns the boolean payload and whether v is a boolean.
func (v Value) BoolValue() (bool, bool) {
	return v.b, v.kind == ValueBool
}

// Text returns the canonical scalar text of v. This is what goes into the
// fragment and what fragment/storage comparisons use. Arrays render as JSON.
func (v Value) Text() string {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.b)
	case ValueStringArray:
		return encodeStringArray(v.arr)
	default:
		return ""
	}
}

// Truthy reports whether v switches a checkbox on. Numbers and numeric text
// are on when non-zero; other text is on when non-empty.
func (v Value) Truthy() bool {
	switch v.kind {
	case ValueBool:
		return v.b
	case ValueNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case ValueString:
		if v.str == "" {
			return false
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64); err == nil {
			return f != 0
		}
		return true
	case ValueStringArray:
		return len(v.arr) > 0
	default:
		return false
	}
}

// Positive reports whether v is numerically greater than zero. Used for the
// disabled-state shadow, where only values above zero disable a field.
func (v Value) Positive() bool {
	switch v.kind {
	case ValueNumber:
		return v.num > 0
	case ValueBool:
		return v.b
	case ValueString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		return err == nil && f > 0
	default:
		return false
	}
}

// Equal reports whether both values have the same kind and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case ValueString:
		return v.str == other.str
	case ValueNumber:
		return v.num == other.num
	case ValueBool:
		return v.b == other.b
	case ValueStringArray:
		return slices.Equal(v.arr, other.arr)
	default:
		return true
	}
}

// Any returns the value as a plain Go value suitable for evaluator bindings.
// Absent maps to nil.
func (v Value) Any() any {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return v.num
	case ValueBool:
		return v.b
	case ValueStringArray:
		return slices.Clone(v.arr)
	default:
		return nil
	}
}

func (v Value) GoString() string {
	if v.kind == ValueAbsent {
		return "formstate.Absent()"
	}
	return fmt.Sprintf("formstate.Value{%s:%q}", v.kind, v.Text())
}

// MarshalJSON writes v the way it is kept in a storage record: scalars as-is,
// arrays as a JSON-encoded string, absent as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueString:
		return json.Marshal(v.str)
	case ValueNumber:
		return json.Marshal(v.num)
	case ValueBool:
		return json.Marshal(v.b)
	case ValueStringArray:
		return json.Marshal(encodeStringArray(v.arr))
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON reads scalars, arrays of strings and null.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := valueFromJSON(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func valueFromJSON(data []byte) (Value, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return Absent(), nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Absent(), err
		}
		return String(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return Absent(), err
		}
		return Bool(b), nil
	case '[':
		var arr []string
		if err := json.Unmarshal(data, &arr); err != nil {
			return Absent(), err
		}
		return Strings(arr), nil
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return Absent(), fmt.Errorf("formstate: unsupported record value %s: %w", trimmed, err)
		}
		return Number(f), nil
	}
}

// ValueOf converts an arbitrary Go value (typically an evaluator result) into
// a Value. nil maps to Absent.
func ValueOf(input any) (Value, error) {
	switch typed := input.(type) {
	case nil:
		return Absent(), nil
	case Value:
		return typed, nil
	case string:
		return String(typed), nil
	case bool:
		return Bool(typed), nil
	case float64:
		return Number(typed), nil
	case float32:
		return Number(float64(typed)), nil
	case int:
		return Number(float64(typed)), nil
	case int32:
		return Number(float64(typed)), nil
	case int64:
		return Number(float64(typed)), nil
	case uint:
		return Number(float64(typed)), nil
	case uint32:
		return Number(float64(typed)), nil
	case uint64:
		return Number(float64(typed)), nil
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return Absent(), fmt.Errorf("formstate: invalid number %q: %w", typed, err)
		}
		return Number(f), nil
	case []string:
		return Strings(typed), nil
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			s, ok := item.(string)
			if !ok {
				return Absent(), fmt.Errorf("formstate: array element %T is not a string", item)
			}
			out = append(out, s)
		}
		return Strings(out), nil
	default:
		return Absent(), fmt.Errorf("formstate: unsupported value type %T", input)
	}
}

func encodeStringArray(values []string) string {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// decodeStringArray parses the JSON array text kept for multi-selects.
func decodeStringArray(text string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, err
	}
	return out, nil
}
