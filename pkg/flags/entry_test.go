package flags

import (
	"testing"
)

const sampleConfigs = `{
	"configs": {
		"checkout_flow": {
			"variation": "express",
			"variation_data_type": "string",
			"variation_id": "var-9",
			"version": 4,
			"config_id": "cfg-1",
			"experience_id": "exp-1",
			"experience_behaviour_response": {
				"experience_id": "exp-nested",
				"priority": 5
			}
		},
		"retry_limit": {
			"variation": 3,
			"variation_data_type": "int",
			"experience_behaviour_response": {
				"variation_id": "var-2",
				"version": "7",
				"config_id": "cfg-2",
				"experience_id": "exp-2"
			}
		},
		"dark_mode": {
			"variation": true
		},
		"layout": {
			"variation": {"cols": 2},
			"variation_data_type": "json"
		}
	}
}`

func TestParseConfigs_FlattensEntries(t *testing.T) {
	entries, err := parseConfigs([]byte(sampleConfigs))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	e := entries["checkout_flow"]
	if v, ok := e.Variation.AsString(); !ok || v != "express" {
		t.Errorf("expected string variation 'express', got %+v", e.Variation)
	}
	if e.VariationID != "var-9" || e.ConfigID != "cfg-1" {
		t.Errorf("metadata mismatch: %+v", e)
	}
}

func TestParseConfigs_TopLevelWinsOverNested(t *testing.T) {
	entries, err := parseConfigs([]byte(sampleConfigs))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	e := entries["checkout_flow"]
	if e.ExperienceID != "exp-1" {
		t.Errorf("top-level experience_id must win over the nested one, got %q", e.ExperienceID)
	}
	// Nested-only fields are still flattened in.
	if v, ok := e.Fields["priority"]; !ok {
		t.Error("expected nested-only field flattened into entry")
	} else if n, ok := v.AsNumber(); !ok || n != 5 {
		t.Errorf("priority mismatch: %+v", v)
	}
}

func TestParseConfigs_NestedFillsMissingMetadata(t *testing.T) {
	entries, err := parseConfigs([]byte(sampleConfigs))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	e := entries["retry_limit"]
	if e.ExperienceID != "exp-2" || e.ConfigID != "cfg-2" || e.VariationID != "var-2" {
		t.Errorf("nested metadata not flattened: %+v", e)
	}
	// Numeric version normalized to its string form.
	if e.Version != "7" {
		t.Errorf("expected version %q, got %q", "7", e.Version)
	}
	if n, ok := e.Variation.AsNumber(); !ok || n != 3 {
		t.Errorf("expected numeric variation 3, got %+v", e.Variation)
	}
}

func TestParseConfigs_VariationTypes(t *testing.T) {
	entries, err := parseConfigs([]byte(sampleConfigs))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if b, ok := entries["dark_mode"].Variation.AsBool(); !ok || !b {
		t.Errorf("undeclared bool variation: %+v", entries["dark_mode"].Variation)
	}
	if raw, ok := entries["layout"].Variation.AsJSON(); !ok || string(raw) != `{"cols": 2}` {
		t.Errorf("json variation: %+v", entries["layout"].Variation)
	}

	// Kind mismatch fails closed.
	if _, ok := entries["dark_mode"].Variation.AsString(); ok {
		t.Error("bool variation must not read as string")
	}
	if _, ok := entries["layout"].Variation.AsNumber(); ok {
		t.Error("json variation must not read as number")
	}
}

func TestParseConfigs_RejectsMalformedPayloads(t *testing.T) {
	for _, body := range []string{`[]`, `"text"`, `{}`, `{"configs": []}`} {
		if _, err := parseConfigs([]byte(body)); err == nil {
			t.Errorf("expected parse error for %q", body)
		}
	}

	// Numeric version normalization keeps fractional versions readable.
	entries, err := parseConfigs([]byte(`{"configs":{"k":{"variation":"x","version":1.5}}}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if entries["k"].Version != "1.5" {
		t.Errorf("expected version 1.5, got %q", entries["k"].Version)
	}
}
