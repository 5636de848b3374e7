// Package monitor validates inbound checkout requests against a JSON schema
// before they are decoded, so malformed submissions are rejected with field
// errors instead of surfacing as gateway validation codes later.
package monitor

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// CheckoutRequestSchema describes the POST /checkout body. Card expiry year
// is the 2-digit form the gateway's hosted form expects.
const CheckoutRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["amount", "currency", "card"],
  "properties": {
    "amount": {"type": "integer", "minimum": 1},
    "currency": {"type": "string", "pattern": "^[A-Za-z]{3}$"},
    "invoice": {
      "type": "object",
      "properties": {
        "description": {"type": "string"},
        "number": {"type": "string"},
        "reference": {"type": "string"}
      }
    },
    "billing": {
      "type": "object",
      "properties": {
        "reference": {"type": "string"},
        "title": {"type": "string"},
        "first_name": {"type": "string"},
        "last_name": {"type": "string"},
        "street1": {"type": "string"},
        "street2": {"type": "string"},
        "city": {"type": "string"},
        "state": {"type": "string"},
        "postal_code": {"type": "string"},
        "country": {"type": "string", "pattern": "^[A-Za-z]{2}$"},
        "email": {"type": "string"}
      }
    },
    "redirect_url": {"type": "string"},
    "card": {
      "type": "object",
      "required": ["name", "number", "expiry_month", "expiry_year", "cvn"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "number": {"type": "string", "pattern": "^[0-9]{12,19}$"},
        "expiry_month": {"type": "string", "pattern": "^(0[1-9]|1[0-2])$"},
        "expiry_year": {"type": "string", "pattern": "^[0-9]{2}$"},
        "cvn": {"type": "string", "pattern": "^[0-9]{3,4}$"}
      }
    }
  }
}`

// ContractMonitor validates request bodies against a compiled JSON schema.
type ContractMonitor struct {
	schema *gojsonschema.Schema
}

// NewContractMonitor compiles the given schema document.
func NewContractMonitor(schemaJSON string) (*ContractMonitor, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &ContractMonitor{schema: schema}, nil
}

// Validate checks the request body against the schema. It returns true when
// valid, or false with a list of human-readable violations.
func (cm *ContractMonitor) Validate(requestBody []byte) (bool, []string, error) {
	result, err := cm.schema.Validate(gojsonschema.NewBytesLoader(requestBody))
	if err != nil {
		return false, nil, fmt.Errorf("validate request: %w", err)
	}
	if result.Valid() {
		return true, nil, nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return false, violations, nil
}

// FormatErrors joins validation errors into one message.
func FormatErrors(validationErrors []string) string {
	if len(validationErrors) == 0 {
		return ""
	}
	return "validation errors: " + strings.Join(validationErrors, "; ")
}
