package control

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// envelopeSchema is the advisory contract for control message envelopes:
// an object tagged with either query_type or type, both strings when
// present. Payload shapes deliberately stay unconstrained — they belong to
// the backend.
const envelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "ControlEnvelope",
  "type": "object",
  "properties": {
    "query_type": {"type": "string", "minLength": 1},
    "type": {"type": "string", "minLength": 1}
  },
  "anyOf": [
    {"required": ["query_type"]},
    {"required": ["type"]}
  ]
}`

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

// ValidateEnvelope checks one raw control message against the envelope
// schema. Validation is advisory — the router logs failures and dispatches
// the message regardless.
func ValidateEnvelope(raw []byte) error {
	compileOnce.Do(func() {
		compiledSchema, compileErr = jsonschema.CompileString("envelope.schema.json", envelopeSchema)
	})
	if compileErr != nil {
		return fmt.Errorf("control: compile envelope schema: %w", compileErr)
	}

	var instance any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("control: decode for validation: %w", err)
	}
	if err := compiledSchema.Validate(instance); err != nil {
		return fmt.Errorf("control: envelope invalid: %w", err)
	}
	return nil
}
