package questions

// corpusSchema is the JSON Schema every imported corpus file must satisfy.
var corpusSchema = map[string]any{
	"type":     "object",
	"required": []any{"questions"},
	"properties": map[string]any{
		"questions": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":      "string",
						"minLength": 1,
					},
					"skill_id": map[string]any{
						"type":        "string",
						"minLength":   1,
						"description": "Subcategory the question belongs to, e.g. linear-functions",
					},
					"difficulty": map[string]any{
						"type": "string",
						"enum": []any{"easy", "medium", "hard"},
					},
					"prompt": map[string]any{
						"type": "string",
					},
					"options": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
					"correct_answer": map[string]any{
						"type":      "string",
						"minLength": 1,
					},
					"concepts": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string", "minLength": 1},
					},
				},
				"required": []any{"id", "skill_id", "difficulty", "correct_answer"},
			},
		},
	},
}
