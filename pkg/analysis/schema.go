package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// resultSchema describes a well-formed Result. Coerce already guarantees the
// list shapes; the schema additionally catches empty tasks and severities
// outside the allowed set.
var resultSchema = map[string]any{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type":    "object",
	"required": []string{
		"keyDecisions", "actionItems", "openQuestions", "riskFlags", "nextSteps",
	},
	"properties": map[string]any{
		"keyDecisions":  stringList,
		"openQuestions": stringList,
		"nextSteps":     stringList,
		"actionItems": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"task", "owner"},
				"properties": map[string]any{
					"task":     map[string]any{"type": "string", "minLength": 1},
					"owner":    map[string]any{"type": "string"},
					"deadline": map[string]any{"type": "string"},
				},
			},
		},
		"riskFlags": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"type", "description", "severity"},
				"properties": map[string]any{
					"type":        map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"severity": map[string]any{
						"enum": []string{SeverityLow, SeverityMedium, SeverityHigh},
					},
				},
			},
		},
	},
}

var stringList = map[string]any{
	"type":  "array",
	"items": map[string]any{"type": "string"},
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func compileResultSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(resultSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("result.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("result.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// CheckSchema validates a Result against the result schema. A violation is
// advisory: callers log it and still return the Result.
func CheckSchema(r Result) error {
	schema, err := compileResultSchema()
	if err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("result does not match schema: %w", err)
	}
	return nil
}
