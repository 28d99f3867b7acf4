package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed layout.schema.json
var layoutSchemaJSON string

var layoutSchema = jsonschema.MustCompileString("layout.schema.json", layoutSchemaJSON)

// validateLayoutJSON checks raw JSON against the layout schema
func validateLayoutJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := layoutSchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
