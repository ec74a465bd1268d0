package jsonschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var quoteSchema = &Schema{
	Type:     TypeObject,
	Required: []string{"title", "lines"},
	Properties: map[string]*Schema{
		"title":    {Type: TypeString},
		"total":    {Type: TypeNumber},
		"approved": {Type: TypeBoolean},
		"lines":    {Type: TypeArray, Items: &Schema{Type: TypeObject}},
	},
}

func TestValidate_Valid(t *testing.T) {
	errs := ValidateJSON(quoteSchema, []byte(`{"title":"Lobby","total":540,"approved":false,"lines":[]}`))
	assert.Empty(t, errs)
}

func TestValidate_RootTypeMismatchShortCircuits(t *testing.T) {
	errs := ValidateJSON(quoteSchema, []byte(`["not", "an", "object"]`))
	assert.Equal(t, []string{"expected object, got array"}, errs)
}

func TestValidate_RequiredPresentRegardlessOfType(t *testing.T) {
	schema := &Schema{Type: TypeObject, Required: []string{"a"}}
	assert.Empty(t, ValidateJSON(schema, []byte(`{"a":null}`)))
	assert.Equal(t, []string{`missing required field "a"`}, ValidateJSON(schema, []byte(`{}`)))
}

func TestValidate_CollectsAllObjectErrors(t *testing.T) {
	errs := ValidateJSON(quoteSchema, []byte(`{"total":"540","approved":"yes"}`))
	assert.Equal(t, []string{
		`missing required field "title"`,
		`missing required field "lines"`,
		`field "approved": expected boolean, got string`,
		`field "total": expected number, got string`,
	}, errs)
}

func TestValidate_NestedSchemasAreNotRecursed(t *testing.T) {
	schema := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"meta": {Type: TypeObject, Required: []string{"deep"}},
		},
	}
	assert.Empty(t, ValidateJSON(schema, []byte(`{"meta":{}}`)))
}

func TestValidate_ArrayStopsAtFirstMismatch(t *testing.T) {
	schema := &Schema{Type: TypeArray, Items: &Schema{Type: TypeString}}
	errs := ValidateJSON(schema, []byte(`["a", 1, true]`))
	assert.Equal(t, []string{"item 1: expected string, got number"}, errs)
}

func TestValidate_NilSchemaAcceptsAnything(t *testing.T) {
	assert.Empty(t, Validate(nil, 42.0))
}

func TestValidateJSON_InvalidJSON(t *testing.T) {
	errs := ValidateJSON(quoteSchema, []byte(`{`))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "invalid JSON")
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a; b", Join([]string{"a", "b"}))
}

func TestSchema_DecodesFromYAML(t *testing.T) {
	doc := `
type: object
required: [summary]
properties:
  summary:
    type: string
  tasks:
    type: array
    items:
      type: string
`
	var s Schema
	require.NoError(t, yaml.Unmarshal([]byte(doc), &s))

	assert.Empty(t, ValidateJSON(&s, []byte(`{"summary":"ok","tasks":["a"]}`)))
	assert.Equal(t, []string{"item 0: expected string, got number"}, Validate(s.Properties["tasks"], []any{1.0}))
}
