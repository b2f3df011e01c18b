package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema validates a decoded wire fragment against a compiled JSON
// Schema before any field is read, turning a malformed document into
// a single wire-format error instead of a panic or a confusing
// type-assertion failure deep inside a factory. Schemas here are a
// handful of small, fixed literals compiled once at package init, so
// there is no validator cache and no size or depth guard.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON Schema literal (as you'd write it in
// a .json file, expressed as a Go map literal) for fragments named
// name. Panics on a malformed schema literal: that is a programming
// error in this module, not a runtime input error.
func CompileSchema(name string, schema map[string]any) *Schema {
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("wire: schema %q does not marshal to JSON: %v", name, err))
	}

	c := jsonschema.NewCompiler()
	resource := name + ".json"
	if err := c.AddResource(resource, bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("wire: schema %q invalid: %v", name, err))
	}
	compiled, err := c.Compile(resource)
	if err != nil {
		panic(fmt.Sprintf("wire: schema %q failed to compile: %v", name, err))
	}
	return &Schema{name: name, compiled: compiled}
}

// Validate checks doc against the compiled schema, returning a plain
// error (the caller wraps it as a wire-format *aggregate.Error so this
// package stays independent of the aggregate package).
func (s *Schema) Validate(doc Document) error {
	// jsonschema validates generic interface{} trees; round-trip
	// Document through the same JSON-number/string shape a decoder
	// would have produced, so the one Document literal written by
	// callers in Go code validates the same way a wire-received one
	// would.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("fragment does not marshal to JSON: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("fragment does not round-trip through JSON: %w", err)
	}
	if err := s.compiled.Validate(generic); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}
