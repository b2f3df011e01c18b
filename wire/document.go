// Package wire implements the tree-structured, language-neutral
// serialization format every primitive round-trips through. A
// Document is a JSON-shaped tree:
// the same shape whether it travels as JSON text, is embedded in a
// parent fragment, or is canonically hashed for cross-process identity
// comparison (see Hash, in hash.go).
package wire

import (
	"fmt"

	"github.com/histostream/histostream/numeric"
)

// Document is one node of the wire tree: a primitive's serialized
// fragment, or the top-level envelope wrapping one.
type Document map[string]any

// Envelope wraps a fragment as the top-level document
// {"type": name, "data": fragment, "version": version}.
// version may be empty, in which case the key is omitted; decoding
// only requires "type" to match a registered factory.
func Envelope(typeName string, data Document, version string) Document {
	env := Document{
		"type": typeName,
		"data": data,
	}
	if version != "" {
		env["version"] = version
	}
	return env
}

// Type returns the envelope's "type" discriminator.
func (d Document) Type() (string, error) {
	v, ok := d["type"]
	if !ok {
		return "", fmt.Errorf("document missing required %q field", "type")
	}
	name, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("document %q field must be a string, got %T", "type", v)
	}
	return name, nil
}

// Data returns the envelope's "data" fragment.
func (d Document) Data() (Document, error) {
	v, ok := d["data"]
	if !ok {
		return nil, fmt.Errorf("document missing required %q field", "data")
	}
	frag, ok := asDocument(v)
	if !ok {
		return nil, fmt.Errorf("document %q field must be an object, got %T", "data", v)
	}
	return frag, nil
}

// String fetches and type-checks a string field.
func (d Document) String(key string) (string, error) {
	v, ok := d[key]
	if !ok {
		return "", fmt.Errorf("missing required field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q must be a string, got %T", key, v)
	}
	return s, nil
}

// OptString fetches an optional string field; returns ok=false if absent.
func (d Document) OptString(key string) (string, bool) {
	v, ok := d[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float fetches and decodes a numeric/sentinel field as a float64.
func (d Document) Float(key string) (float64, error) {
	v, ok := d[key]
	if !ok {
		return 0, fmt.Errorf("missing required field %q", key)
	}
	f, err := numeric.DecodeFloat(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return f, nil
}

// Sub fetches a required nested document field (e.g. "numerator").
func (d Document) Sub(key string) (Document, error) {
	v, ok := d[key]
	if !ok {
		return nil, fmt.Errorf("missing required field %q", key)
	}
	sub, ok := asDocument(v)
	if !ok {
		return nil, fmt.Errorf("field %q must be an object, got %T", key, v)
	}
	return sub, nil
}

// List fetches a required array field.
func (d Document) List(key string) ([]any, error) {
	v, ok := d[key]
	if !ok {
		return nil, fmt.Errorf("missing required field %q", key)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("field %q must be an array, got %T", key, v)
	}
	return list, nil
}

// asDocument accepts both wire.Document and the map[string]any shape
// that a generic JSON decode into interface{} would produce.
func asDocument(v any) (Document, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]any:
		return Document(m), true
	default:
		return nil, false
	}
}
