package entity

import (
	"fmt"
	"strings"
	"time"
)

// FieldType is the closed set of field codecs a Model understands.
type FieldType int

const (
	FieldDefault FieldType = iota
	FieldInt
	FieldBool
	FieldDouble
	FieldDate
)

// TimestampFormat makes date fields travel as seconds since the Unix epoch.
const TimestampFormat = "timestamp"

func (t FieldType) String() string {
	switch t {
	case FieldInt:
		return "int"
	case FieldBool:
		return "bool"
	case FieldDouble:
		return "double"
	case FieldDate:
		return "date"
	default:
		return "default"
	}
}

// ParseFieldType maps a declared type name to a FieldType. Unknown names map
// to FieldDefault.
func ParseFieldType(name string) FieldType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int", "integer":
		return FieldInt
	case "bool", "boolean":
		return FieldBool
	case "double", "float":
		return FieldDouble
	case "date":
		return FieldDate
	default:
		return FieldDefault
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FieldType) UnmarshalText(text []byte) error {
	*t = ParseFieldType(string(text))
	return nil
}

// FieldHook runs after the built-in codec and may replace the value.
type FieldHook func(rec *Record, value any, name string) any

// DateParser converts a wire value into a time using format.
type DateParser func(value any, format string) (time.Time, error)

// DateFormatter converts a time into its wire representation.
type DateFormatter func(value time.Time, format string) any

// Field describes one entity field. It is treated as immutable once the
// owning Model is built.
type Field struct {
	Type FieldType `yaml:"type" json:"type"`
	// Format is a time layout for date fields, or TimestampFormat.
	Format   string        `yaml:"format,omitempty" json:"format,omitempty"`
	Parse    DateParser    `yaml:"-" json:"-"`
	FormatFn DateFormatter `yaml:"-" json:"-"`
	Restore  FieldHook     `yaml:"-" json:"-"`
	Store    FieldHook     `yaml:"-" json:"-"`
}

// F is shorthand for a Field with only a type.
func F(t FieldType) Field {
	return Field{Type: t}
}

type fieldCodec struct {
	restore func(f Field, value any) any
	store   func(f Field, value any) any
}

var fieldCodecs = map[FieldType]fieldCodec{
	FieldDefault: {restore: restorePassThrough, store: storeDefault},
	FieldInt:     {restore: restoreInt, store: storeDefault},
	FieldBool:    {restore: restoreBool, store: storeBool},
	FieldDouble:  {restore: restoreDouble, store: storeDefault},
	FieldDate:    {restore: restoreDate, store: storeDate},
}

func (f Field) codec() fieldCodec {
	if codec, ok := fieldCodecs[f.Type]; ok {
		return codec
	}
	return fieldCodecs[FieldDefault]
}

func restorePassThrough(_ Field, value any) any {
	return value
}

// restoreInt yields nil when value has no integer reading.
func restoreInt(_ Field, value any) any {
	n, ok := toInt(value)
	if !ok {
		return nil
	}
	return n
}

var falseTokens = map[string]struct{}{
	"off": {}, "no": {}, "0": {}, "false": {}, "null": {},
}

func restoreBool(_ Field, value any) any {
	if s, ok := value.(string); ok {
		_, isFalse := falseTokens[strings.ToLower(s)]
		return !isFalse
	}
	return truthy(value)
}

func restoreDouble(_ Field, value any) any {
	f, ok := toFloat(value)
	if !ok {
		return nil
	}
	return f
}

func restoreDate(f Field, value any) any {
	if value == nil {
		return nil
	}
	if f.Parse != nil {
		parsed, err := f.Parse(value, f.Format)
		if err != nil {
			return nil
		}
		return parsed
	}
	if t, ok := value.(time.Time); ok {
		return t
	}
	if f.Format == TimestampFormat {
		seconds, ok := toInt(value)
		if !ok {
			return nil
		}
		return time.Unix(int64(seconds), 0).UTC()
	}
	s, ok := value.(string)
	if !ok {
		return nil
	}
	for _, layout := range dateLayouts(f.Format) {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed
		}
	}
	return nil
}

func dateLayouts(format string) []string {
	if format != "" {
		return []string{format}
	}
	return []string{time.RFC3339Nano, time.RFC3339, time.DateTime, time.DateOnly}
}

func storeDefault(_ Field, value any) any {
	return stringify(value)
}

func storeBool(_ Field, value any) any {
	if truthy(value) {
		return "1"
	}
	return "0"
}

func storeDate(f Field, value any) any {
	t, ok := value.(time.Time)
	if !ok {
		return stringify(value)
	}
	if f.FormatFn != nil {
		return f.FormatFn(t, f.Format)
	}
	switch f.Format {
	case TimestampFormat:
		return t.Unix()
	case "":
		return t.Format(time.RFC3339)
	default:
		return t.Format(f.Format)
	}
}

func (f Field) String() string {
	if f.Format == "" {
		return f.Type.String()
	}
	return fmt.Sprintf("%s(%s)", f.Type, f.Format)
}
