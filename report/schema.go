package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/brunobiangulo/gooutline/outline"
)

//go:embed outline.schema.json
var schemaJSON []byte

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func outlineSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("outline.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("loading outline schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile("outline.schema.json")
	})
	return compiled, compileErr
}

// Validate checks the JSON form of res against the published outline schema.
func Validate(res *outline.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding outline: %w", err)
	}
	return ValidateJSON(data)
}

// ValidateJSON checks a serialized outline against the schema.
func ValidateJSON(data []byte) error {
	schema, err := outlineSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding outline: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("outline does not match schema: %w", err)
	}
	return nil
}
