package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// manifestSchema is the JSON schema manifests are validated against
// before decoding into typed structs.
const manifestSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["items"],
	"properties": {
		"items": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["name", "category"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"category": {
						"type": "string",
						"enum": ["planning", "generation", "analysis", "transformation", "validation", "orchestration"]
					},
					"depends_on": {"type": "array", "items": {"type": "string"}},
					"estimated_duration": {"type": "string"},
					"estimated_cost": {"type": "number", "minimum": 0},
					"reliability": {"type": "number", "minimum": 0, "maximum": 1},
					"parallelizable": {"type": "boolean"},
					"cacheable": {"type": "boolean"},
					"command": {"type": "string"}
				},
				"additionalProperties": false
			}
		},
		"pipelines": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "items"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"description": {"type": "string"},
					"items": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"required": ["name"],
							"properties": {
								"name": {"type": "string", "minLength": 1},
								"input": {"type": "object"}
							},
							"additionalProperties": false
						}
					},
					"options": {
						"type": "object",
						"properties": {
							"parallel": {"type": "boolean"},
							"caching": {"type": "boolean"},
							"target_duration": {"type": "string"},
							"max_concurrent": {"type": "integer", "minimum": 0}
						},
						"additionalProperties": false
					},
					"constraints": {
						"type": "object",
						"properties": {
							"max_duration": {"type": "string"},
							"max_cost": {"type": "number", "minimum": 0},
							"min_reliability": {"type": "number", "minimum": 0, "maximum": 1}
						},
						"additionalProperties": false
					}
				},
				"additionalProperties": false
			}
		}
	},
	"additionalProperties": false
}`

var compiledSchema = jsonschema.MustCompileString("manifest.schema.json", manifestSchema)

// validate checks raw manifest YAML against the schema. The document
// is round-tripped through JSON so the schema compiler sees the value
// types it expects.
func validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalize document: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(jsonBytes, &normalized); err != nil {
		return fmt.Errorf("normalize document: %w", err)
	}

	if err := compiledSchema.Validate(normalized); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}
