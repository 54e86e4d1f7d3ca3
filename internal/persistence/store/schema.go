package store

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed document.schema.json
var documentSchemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func documentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("document.schema.json", documentSchemaJSON)
	})
	return schema, schemaErr
}

// Validate checks raw document bytes against the embedded schema.
func Validate(data []byte) error {
	s, err := documentSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("parse document: trailing data")
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("validate document: %w", err)
	}
	return nil
}
