package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MustCompileSchema compiles a schema literal at package init time. It
// panics on a malformed schema, which is a programming error, not input.
func MustCompileSchema(schemaJSON string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("validation: bad schema resource: %v", err))
	}
	sch, err := compiler.Compile("schema.json")
	if err != nil {
		panic(fmt.Sprintf("validation: schema does not compile: %v", err))
	}
	return sch
}

// ValidateMap validates an already-decoded JSON document against a compiled
// schema. The document is round-tripped through encoding/json so Go-typed
// values (ints, nested maps) normalize to what the validator expects.
func ValidateMap(sch *jsonschema.Schema, doc map[string]interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document for validation: %w", err)
	}
	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to normalize document for validation: %w", err)
	}
	if err := sch.Validate(data); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("document failed schema validation: %v", validationErr)
		}
		return fmt.Errorf("document failed schema validation (unexpected error type): %w", err)
	}
	return nil
}
