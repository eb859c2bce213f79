package config

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/mspikes/errors"
)

//go:embed schema.json
var schemaJSON []byte

// Schema returns the JSON schema run configuration files are checked against.
func Schema() []byte {
	return schemaJSON
}

// validateSchema checks a decoded configuration document against the schema.
func validateSchema(doc map[string]any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return errors.WrapFatal(err, "Config", "validateSchema", "run schema validation")
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(msgs, "; ")),
		"Config", "validateSchema", "validate against schema")
}
