package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidationResult(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"valid verdict", `{"is_valid": true, "reason": "VALID_JD"}`, false},
		{"rejection", `{"is_valid": false, "reason": "IRRELEVANT"}`, false},
		{"unknown reason", `{"is_valid": false, "reason": "TOO_SHORT"}`, true},
		{"lowercase reason", `{"is_valid": true, "reason": "valid_jd"}`, true},
		{"missing reason", `{"is_valid": true}`, true},
		{"string boolean", `{"is_valid": "True", "reason": "VALID_JD"}`, true},
		{"not an object", `"True"`, true},
		{"not json", `True`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(ValidationResultSchema, []byte(tt.doc))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "expected ValidationError, got %T", err)
			assert.NotEmpty(t, verr.Errors)
		})
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("missing.schema.json", []byte(`{}`))
	require.Error(t, err)

	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "missing.schema.json", loadErr.Name)
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type": "object", "required": ["title"]}`

	assert.NoError(t, ValidateJSONString(schema, `{"title": "Pitch Deck"}`))

	err := ValidateJSONString(schema, `{}`)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "(root)", verr.Errors[0].Field)
	assert.Contains(t, verr.Error(), "validation failed:")
}

func TestList(t *testing.T) {
	assert.Contains(t, List(), ValidationResultSchema)
}
