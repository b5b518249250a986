package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	reflectschema "github.com/invopop/jsonschema"
	validateschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// GenerateSchema reflects a Go struct into the JSON Schema a tool
// advertises for its arguments. Tools that need hand-written schemas
// (e.g. oneOf branches) skip this and write Schema() literally.
func GenerateSchema(v any) json.RawMessage {
	r := &reflectschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	s := r.Reflect(v)
	out, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("tools: reflect schema: %v", err))
	}
	return out
}

// Validator checks tool call arguments against a compiled JSON Schema
// before Execute runs, so malformed arguments surface as a ToolError
// rather than a panic inside Execute.
type Validator struct {
	schema *validateschema.Schema
}

// NewValidator compiles raw (a JSON Schema document) for repeated use.
func NewValidator(name string, raw json.RawMessage) (*Validator, error) {
	compiler := validateschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("tools: add schema resource: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("tools: compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks args against the compiled schema.
func (v *Validator) Validate(args json.RawMessage) error {
	var doc any
	if err := json.Unmarshal(args, &doc); err != nil {
		return fmt.Errorf("tools: decode args: %w", err)
	}
	return v.schema.Validate(doc)
}
