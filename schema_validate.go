package nanocol

import (
	"github.com/nolandb/nanocol/errors"
	"github.com/xeipuuv/gojsonschema"
)

// DocumentValidator is run against every insert/update before it reaches the
// store. It is optional - a collection with no validator configured skips
// this step entirely.
type DocumentValidator interface {
	Validate(doc *Document) error
}

// schemaValidator is a DocumentValidator backed by a compiled JSON Schema,
// the teacher's json-schema dependency (xeipuuv/gojsonschema) repurposed here
// as the optional per-collection validator the expanded spec calls for.
type schemaValidator struct {
	schema *gojsonschema.Schema
}

// NewSchemaValidator compiles schemaJSON into a DocumentValidator
func NewSchemaValidator(schemaJSON []byte) (DocumentValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, errors.Wrap(err, errors.Config, "failed to compile document schema")
	}
	return &schemaValidator{schema: schema}, nil
}

func (s *schemaValidator) Validate(doc *Document) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(doc.Bytes()))
	if err != nil {
		return errors.Wrap(err, errors.Validation, "schema validation failed")
	}
	if !result.Valid() {
		msg := "document failed schema validation"
		if errs := result.Errors(); len(errs) > 0 {
			msg = errs[0].String()
		}
		return errors.TypeError(msg)
	}
	return nil
}
