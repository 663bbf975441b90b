// Package flags holds the configuration snapshot: a tagged-union value
// model, the conditional-fetch cycle that refreshes it, and the disk
// cache that makes reads non-empty from process start.
package flags

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// ValueKind tags the runtime type of a variation.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindJSON
)

// Value is a variation as resolved by the server. Typed accessors fail
// closed: a kind mismatch returns ok=false and the caller keeps its
// fallback.
type Value struct {
	Kind ValueKind `msgpack:"k"`
	Str  string    `msgpack:"s,omitempty"`
	Num  float64   `msgpack:"n,omitempty"`
	Flag bool      `msgpack:"b,omitempty"`
	Raw  string    `msgpack:"j,omitempty"` // JSON text when Kind == KindJSON
}

func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

func (v Value) AsNumber() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	return v.Num, true
}

func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.Flag, true
}

func (v Value) AsJSON() (json.RawMessage, bool) {
	if v.Kind != KindJSON {
		return nil, false
	}
	return json.RawMessage(v.Raw), true
}

// valueFrom converts a payload field. The declared variation_data_type
// wins; otherwise the JSON type decides.
func valueFrom(r gjson.Result, declaredType string) Value {
	switch declaredType {
	case "string":
		return Value{Kind: KindString, Str: r.String()}
	case "int", "integer", "float", "double", "number":
		return Value{Kind: KindNumber, Num: r.Float()}
	case "bool", "boolean":
		return Value{Kind: KindBool, Flag: r.Bool()}
	case "json":
		return Value{Kind: KindJSON, Raw: r.Raw}
	}

	switch r.Type {
	case gjson.String:
		return Value{Kind: KindString, Str: r.String()}
	case gjson.Number:
		return Value{Kind: KindNumber, Num: r.Float()}
	case gjson.True, gjson.False:
		return Value{Kind: KindBool, Flag: r.Bool()}
	default:
		return Value{Kind: KindJSON, Raw: r.Raw}
	}
}
