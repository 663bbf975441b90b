package flags

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Payload field carrying the per-key experience sub-object that gets
// flattened into the top-level entry.
const behaviourField = "experience_behaviour_response"

// Entry is one configuration key's resolved state. Fields holds every
// flattened payload field; the named accessors cover the summary-required
// metadata.
type Entry struct {
	Variation     Value            `msgpack:"variation"`
	VariationType string           `msgpack:"variation_type"`
	VariationID   string           `msgpack:"variation_id"`
	Version       string           `msgpack:"version"`
	ConfigID      string           `msgpack:"config_id"`
	ExperienceID  string           `msgpack:"experience_id"`
	Fields        map[string]Value `msgpack:"fields"`
}

// parseConfigs decodes a /users/configs body into flattened entries.
// Nested experience fields are merged into, and never overwrite,
// pre-existing top-level fields of the same name.
func parseConfigs(body []byte) (map[string]Entry, error) {
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("configs payload: not a JSON object")
	}
	configs := parsed.Get("configs")
	if !configs.Exists() || !configs.IsObject() {
		return nil, fmt.Errorf("configs payload: missing configs object")
	}

	entries := make(map[string]Entry)
	configs.ForEach(func(key, cfg gjson.Result) bool {
		if !cfg.IsObject() {
			return true
		}
		entries[key.String()] = parseEntry(cfg)
		return true
	})
	return entries, nil
}

func parseEntry(cfg gjson.Result) Entry {
	fields := make(map[string]Value)

	cfg.ForEach(func(name, val gjson.Result) bool {
		if name.String() == behaviourField {
			return true
		}
		fields[name.String()] = valueFrom(val, "")
		return true
	})

	// Flatten the experience sub-object: nested fields win only when the
	// name is absent at top level.
	if nested := cfg.Get(behaviourField); nested.Exists() && nested.IsObject() {
		nested.ForEach(func(name, val gjson.Result) bool {
			if _, exists := fields[name.String()]; !exists {
				fields[name.String()] = valueFrom(val, "")
			}
			return true
		})
	}

	e := Entry{
		VariationType: fieldString(fields, "variation_data_type"),
		VariationID:   fieldString(fields, "variation_id"),
		Version:       fieldString(fields, "version"),
		ConfigID:      fieldString(fields, "config_id"),
		ExperienceID:  fieldString(fields, "experience_id"),
		Fields:        fields,
	}
	e.Variation = valueFrom(cfg.Get("variation"), e.VariationType)
	return e
}

// fieldString renders a flattened field as its string form regardless of
// payload type; versions and ids arrive as both strings and numbers.
func fieldString(fields map[string]Value, name string) string {
	v, ok := fields[name]
	if !ok {
		return ""
	}
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		if v.Num == float64(int64(v.Num)) {
			return fmt.Sprintf("%d", int64(v.Num))
		}
		return fmt.Sprintf("%g", v.Num)
	case KindBool:
		return fmt.Sprintf("%t", v.Flag)
	default:
		return v.Raw
	}
}
