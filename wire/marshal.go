package wire

import (
	"encoding/json"
	"fmt"
)

// Marshal renders d as JSON text. Field ordering is whatever
// encoding/json produces (sorted keys); consumers compare documents
// structurally, never byte-wise; byte-level identity goes through
// Hash instead.
func Marshal(d Document) ([]byte, error) {
	return json.Marshal(d)
}

// Unmarshal parses JSON text into a Document. Numbers decode as
// float64, nested objects as map[string]any, exactly the generic shape
// the Document accessors expect.
func Unmarshal(data []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse wire document: %w", err)
	}
	return d, nil
}
