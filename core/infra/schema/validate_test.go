package schema

import "testing"

var extensionListSchema = []byte(`{
	"type": "object",
	"required": ["extensions"],
	"properties": {
		"extensions": {
			"type": "array",
			"items": {"type": "string", "minLength": 1}
		}
	}
}`)

func TestValidateAccepts(t *testing.T) {
	value := map[string]any{"extensions": []any{"a/a.php"}}
	if err := Validate("list", extensionListSchema, value); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name  string
		value any
	}{
		{"missing required", map[string]any{}},
		{"wrong item type", map[string]any{"extensions": []any{1}}},
		{"empty item", map[string]any{"extensions": []any{""}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Validate("list", extensionListSchema, tc.value); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidateRawPayload(t *testing.T) {
	if err := Validate("list", extensionListSchema, []byte(`{"extensions":["a/a.php"]}`)); err != nil {
		t.Fatalf("validate raw: %v", err)
	}
}

func TestValidateEmptySchema(t *testing.T) {
	if err := Validate("list", nil, map[string]any{}); err == nil {
		t.Fatalf("expected error for empty schema")
	}
}
