package httptransport

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes request bodies and decodes response bodies.
type Codec interface {
	ContentType() string
	Marshal(value any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

// JSONCodec speaks application/json. Numbers decode as float64.
type JSONCodec struct{}

func (JSONCodec) ContentType() string {
	return "application/json"
}

func (JSONCodec) Marshal(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONCodec) Unmarshal(data []byte) (any, error) {
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MsgpackCodec speaks application/msgpack. Maps decode with string keys.
type MsgpackCodec struct{}

func (MsgpackCodec) ContentType() string {
	return "application/msgpack"
}

func (MsgpackCodec) Marshal(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Unmarshal(data []byte) (any, error) {
	return msgpack.NewDecoder(bytes.NewReader(data)).DecodeInterface()
}

// codecFor picks the codec matching a response content type, falling back
// to def.
func codecFor(contentType string, def Codec) Codec {
	switch {
	case strings.Contains(contentType, "msgpack"):
		return MsgpackCodec{}
	case strings.Contains(contentType, "json"):
		return JSONCodec{}
	default:
		return def
	}
}
