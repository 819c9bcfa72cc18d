package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// KeyOf normalizes an entity id into the string key used by stores and the
// identity cache, so 7, int64(7), float64(7) and "7" address the same entry.
// ok is false for nil ids.
func KeyOf(id any) (key string, ok bool) {
	switch v := id.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case int:
		return strconv.Itoa(v), true
	case int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(v).Int(), 10), true
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(v).Uint(), 10), true
	case float32:
		return formatFloatKey(float64(v)), true
	case float64:
		return formatFloatKey(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

func formatFloatKey(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// hasID reports whether id counts as present. Zero values of any kind count
// as missing, the same way a request omits an empty id.
func hasID(id any) bool {
	return truthy(id)
}

// truthy applies loose truthiness: nil, false, zero numbers, NaN and empty
// strings are false; everything else is true.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	case float64:
		return v != 0 && !math.IsNaN(v)
	case float32:
		return v != 0 && !math.IsNaN(float64(v))
	case int:
		return v != 0
	case int8, int16, int32, int64:
		return reflect.ValueOf(v).Int() != 0
	case uint, uint8, uint16, uint32, uint64:
		return reflect.ValueOf(v).Uint() != 0
	default:
		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return !rv.IsNil()
		}
		return true
	}
}

var (
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
	floatPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
)

// toInt parses value as an integer. Strings parse their leading integer
// prefix ("12px" is 12); floats truncate toward zero.
func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case int:
		return v, true
	case int8, int16, int32, int64:
		return int(reflect.ValueOf(v).Int()), true
	case uint, uint8, uint16, uint32, uint64:
		return int(reflect.ValueOf(v).Uint()), true
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case json.Number:
		return toInt(v.String())
	case string:
		match := intPrefix.FindString(strings.TrimSpace(v))
		if match == "" {
			return 0, false
		}
		n, err := strconv.Atoi(match)
		if err != nil {
			return 0, false
		}
		return n, true
	case time.Time:
		return int(v.Unix()), true
	default:
		return toInt(fmt.Sprint(v))
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// toFloat parses value as a float64. Strings parse their leading numeric
// prefix.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return v, !math.IsNaN(v)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8, int16, int32, int64:
		return float64(reflect.ValueOf(v).Int()), true
	case uint, uint8, uint16, uint32, uint64:
		return float64(reflect.ValueOf(v).Uint()), true
	case json.Number:
		return toFloat(v.String())
	case string:
		match := floatPrefix.FindString(strings.TrimSpace(v))
		if match == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return toFloat(fmt.Sprint(v))
	}
}

// valuesEqual compares two app-state field values.
func valuesEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func stringify(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		out[key] = value
	}
	return out
}
