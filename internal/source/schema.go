package source

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// pageSchema is the envelope every source listing endpoint returns.
const pageSchema = `{
  "type": "object",
  "required": ["results"],
  "properties": {
    "results": {"type": "array", "items": {"type": "object"}},
    "pagination": {
      "type": ["object", "null"],
      "properties": {
        "next": {"type": ["string", "null"]}
      }
    }
  }
}`

var compiledPageSchema = mustSchema(pageSchema)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("source: invalid page schema: %v", err))
	}
	return schema
}

// validatePage checks that body is a well-formed page envelope.
func validatePage(body []byte) error {
	result, err := compiledPageSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("page is not valid JSON: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("page does not match the expected shape:\n  - %s", strings.Join(errorMessages, "\n  - "))
	}
	return nil
}
