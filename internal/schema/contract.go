// Package schema compiles declarative output contracts into JSON Schema
// documents and validates candidate model output against them. Contracts
// are the single source of truth for an artifact's shape: the same field
// table renders the schema text embedded into self-hosted prompts, the
// native response schema for hosted models, and the validator applied to
// every candidate before it leaves the loop.
package schema

import (
	"encoding/json"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// FieldType is the JSON Schema primitive type of a contract field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
)

// Field declares one property of a contract. Guidance becomes the field's
// schema description, which is the main steering signal for the model.
type Field struct {
	Name     string
	Type     FieldType
	Guidance string
	Enum     []string
	Optional bool

	// Repeated marks the field as an array. When Items is set each element
	// is an object with those fields; otherwise elements are scalars of
	// ItemType (string when unset).
	Repeated bool
	Items    []Field
	ItemType FieldType
}

// Contract is a named output shape. The zero value of the unexported
// members is ready; compilation happens once on first use.
type Contract struct {
	Name        string
	Description string
	Fields      []Field

	compileOnce sync.Once
	compiled    *gojsonschema.Schema
	rendered    string
	compileErr  error
}

// Describe returns the contract as an indented JSON Schema document.
func (c *Contract) Describe() (string, error) {
	c.compile()
	if c.compileErr != nil {
		return "", c.compileErr
	}
	return c.rendered, nil
}

// Validate checks candidate text against the contract. A single
// surrounding code fence is tolerated and stripped. On success the
// returned bytes are the unwrapped JSON payload; on failure the error is
// a *ViolationError describing every violated field.
func (c *Contract) Validate(candidate string) ([]byte, error) {
	c.compile()
	if c.compileErr != nil {
		return nil, c.compileErr
	}

	text := UnwrapFence(candidate)
	result, err := c.compiled.Validate(gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, &ViolationError{Contract: c.Name, Cause: err}
	}
	if !result.Valid() {
		ve := &ViolationError{Contract: c.Name}
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			ve.Errors = append(ve.Errors, FieldError{Field: field, Message: desc.Description()})
		}
		return nil, ve
	}
	return []byte(text), nil
}

func (c *Contract) compile() {
	c.compileOnce.Do(func() {
		doc := map[string]any{
			"$schema":              "http://json-schema.org/draft-07/schema#",
			"title":                c.Name,
			"type":                 "object",
			"properties":           objectProperties(c.Fields),
			"required":             requiredNames(c.Fields),
			"additionalProperties": false,
		}
		if c.Description != "" {
			doc["description"] = c.Description
		}

		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			c.compileErr = &CompileError{Contract: c.Name, Message: "cannot render schema document", Cause: err}
			return
		}
		c.rendered = string(data)

		compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(c.rendered))
		if err != nil {
			c.compileErr = &CompileError{Contract: c.Name, Message: "schema document does not compile", Cause: err}
			return
		}
		c.compiled = compiled
	})
}

func objectProperties(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	for _, f := range fields {
		props[f.Name] = fieldSchema(f)
	}
	return props
}

func requiredNames(fields []Field) []string {
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		if !f.Optional {
			required = append(required, f.Name)
		}
	}
	return required
}

func fieldSchema(f Field) map[string]any {
	if f.Repeated {
		var items map[string]any
		if len(f.Items) > 0 {
			items = map[string]any{
				"type":                 "object",
				"properties":           objectProperties(f.Items),
				"required":             requiredNames(f.Items),
				"additionalProperties": false,
			}
		} else {
			itemType := f.ItemType
			if itemType == "" {
				itemType = TypeString
			}
			items = map[string]any{"type": string(itemType)}
		}
		schema := map[string]any{
			"type":  "array",
			"items": items,
		}
		if f.Guidance != "" {
			schema["description"] = f.Guidance
		}
		return schema
	}

	fieldType := f.Type
	if fieldType == "" {
		fieldType = TypeString
	}
	schema := map[string]any{"type": string(fieldType)}
	if f.Guidance != "" {
		schema["description"] = f.Guidance
	}
	if len(f.Enum) > 0 {
		schema["enum"] = f.Enum
	}
	return schema
}
