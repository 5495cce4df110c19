package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// FieldKind selects how a field's values are normalized before comparison.
type FieldKind uint8

const (
	// KindAuto treats integer-looking values as integers and everything else as text.
	KindAuto FieldKind = iota
	// KindText compares the textual form verbatim.
	KindText
	// KindInteger is for select-style references; "" and nil mean "no selection".
	KindInteger
)

func ParseFieldKind(s string) (FieldKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return KindAuto, nil
	case "text", "string":
		return KindText, nil
	case "integer", "int", "id", "select":
		return KindInteger, nil
	default:
		return KindAuto, fmt.Errorf("unknown field kind %q", s)
	}
}

func (k FieldKind) String() string {
	switch k {
	case KindAuto:
		return "auto"
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Normalize maps v onto the representation used for comparisons of kind.
// Both sides of every comparison go through it, so "3" and 3 meet as int64(3).
func Normalize(kind FieldKind, v any) any {
	switch kind {
	case KindText:
		return textOf(v)
	case KindInteger:
		if v == nil {
			return nil
		}
		if n, ok := toInt64(v); ok {
			return n
		}
		s := strings.TrimSpace(textOf(v))
		if s == "" {
			return nil
		}
		return s
	default:
		if v == nil {
			return nil
		}
		if n, ok := toInt64(v); ok {
			return n
		}
		if f, ok := toFloat64(v); ok {
			return f
		}
		if b, ok := v.(bool); ok {
			return b
		}
		s := textOf(v)
		if strings.TrimSpace(s) == "" {
			return nil
		}
		return s
	}
}

// Equal compares two values after normalizing both for kind.
func Equal(kind FieldKind, a, b any) bool {
	na, nb := Normalize(kind, a), Normalize(kind, b)
	if na == nil || nb == nil {
		return na == nil && nb == nil
	}
	ta, tb := reflect.TypeOf(na), reflect.TypeOf(nb)
	if ta.Comparable() && tb.Comparable() {
		return na == nb
	}
	return reflect.DeepEqual(na, nb)
}

// NormalizeID returns the canonical text form of an identifier. Numeric ids
// with an integral value become their decimal form (7, int64(7), 7.0 -> "7");
// text ids are only trimmed, so "007" and "1e3" stay distinct codes.
func NormalizeID(id any) string {
	if id == nil {
		return ""
	}
	if reflect.ValueOf(id).Kind() != reflect.String {
		if n, ok := toInt64(id); ok {
			return strconv.FormatInt(n, 10)
		}
	}
	return strings.TrimSpace(textOf(id))
}

func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return fmt.Sprint(v)
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return uintToInt64(uint64(t))
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return uintToInt64(t)
	case float32:
		return floatToInt64(float64(t))
	case float64:
		return floatToInt64(t)
	case json.Number:
		return parseIntText(t.String())
	case bool:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return parseIntText(rv.String())
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		return textToFloat64(t.String())
	case string:
		return textToFloat64(t)
	}
	return 0, false
}

// textToFloat64 parses decimal text. Digit strings are left alone: when they
// reach here they overflow int64, and a float would merge neighbours.
func textToFloat64(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || digitsOnly(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func parseIntText(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	// "3.0" and "3.00" count as 3; exponents and other fractions do not.
	whole, frac, ok := strings.Cut(s, ".")
	if !ok || frac == "" || strings.Trim(frac, "0") != "" {
		return 0, false
	}
	n, err := strconv.ParseInt(whole, 10, 64)
	return n, err == nil && digitsOnly(whole)
}

func digitsOnly(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func uintToInt64(u uint64) (int64, bool) {
	if u > math.MaxInt64 {
		return 0, false
	}
	return int64(u), true
}
