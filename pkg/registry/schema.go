package registry

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/vantagecrm/leadflow/pkg/models"
)

// validateParameters checks executor parameters against the factory's JSON
// schema. A nil schema accepts anything.
func validateParameters(schema *models.JSONSchema, parameters map[string]any) error {
	if schema == nil {
		return nil
	}

	if parameters == nil {
		parameters = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(parameters)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(descriptions, "; "))
	}

	return nil
}
