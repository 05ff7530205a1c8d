package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func comboContract() *Contract {
	return &Contract{
		Name:        "test_combo",
		Description: "One combination of test dimension values.",
		Fields: []Field{
			{Name: "combo_id", Type: TypeString, Guidance: "Identifier in the form TC-XXX."},
			{Name: "criticality", Type: TypeString, Guidance: "Business criticality.", Enum: []string{"HIGH", "MEDIUM", "LOW"}},
			{Name: "score", Type: TypeInteger, Guidance: "Coverage score.", Optional: true},
			{Name: "values", Repeated: true, Guidance: "Dimension values in this combination.", Items: []Field{
				{Name: "dimension", Type: TypeString, Guidance: "Dimension name."},
				{Name: "value", Type: TypeString, Guidance: "Chosen value."},
			}},
		},
	}
}

func TestContractDescribe(t *testing.T) {
	c := comboContract()
	rendered, err := c.Describe()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(rendered), &doc))

	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, false, doc["additionalProperties"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "combo_id")
	assert.Contains(t, props, "values")

	required, ok := doc["required"].([]any)
	require.True(t, ok)
	assert.Contains(t, required, "combo_id")
	assert.Contains(t, required, "criticality")
	assert.NotContains(t, required, "score")
}

func TestContractValidate_RoundTrip(t *testing.T) {
	c := comboContract()
	payload := `{
		"combo_id": "TC-001",
		"criticality": "HIGH",
		"values": [{"dimension": "blocking_type", "value": "full"}]
	}`

	got, err := c.Validate(payload)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(got))

	fenced := "```json\n" + payload + "\n```"
	got, err = c.Validate(fenced)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(got))
}

func TestContractValidate_Failures(t *testing.T) {
	c := comboContract()
	tests := []struct {
		name      string
		candidate string
		wantIn    string
	}{
		{
			name:      "not JSON",
			candidate: "I cannot produce that output.",
			wantIn:    "test_combo",
		},
		{
			name:      "missing required field",
			candidate: `{"combo_id": "TC-001", "values": []}`,
			wantIn:    "criticality",
		},
		{
			name:      "wrong type",
			candidate: `{"combo_id": 7, "criticality": "HIGH", "values": []}`,
			wantIn:    "combo_id",
		},
		{
			name:      "enum outside set",
			candidate: `{"combo_id": "TC-001", "criticality": "SEVERE", "values": []}`,
			wantIn:    "criticality",
		},
		{
			name:      "unknown extra field",
			candidate: `{"combo_id": "TC-001", "criticality": "HIGH", "values": [], "bonus": true}`,
			wantIn:    "bonus",
		},
		{
			name:      "malformed nested element",
			candidate: `{"combo_id": "TC-001", "criticality": "HIGH", "values": [{"dimension": "x"}]}`,
			wantIn:    "value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Validate(tt.candidate)
			require.Error(t, err)
			var ve *ViolationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "test_combo", ve.Contract)
			assert.True(t, strings.Contains(err.Error(), tt.wantIn),
				"error %q should mention %q", err.Error(), tt.wantIn)
		})
	}
}

func TestContractValidate_ScalarArray(t *testing.T) {
	c := &Contract{
		Name: "collateral_group",
		Fields: []Field{
			{Name: "securities", Repeated: true, ItemType: TypeString, Guidance: "ISINs in the group."},
		},
	}

	_, err := c.Validate(`{"securities": ["INE001A01036", "INE002A01018"]}`)
	require.NoError(t, err)

	_, err = c.Validate(`{"securities": [1, 2]}`)
	var ve *ViolationError
	require.ErrorAs(t, err, &ve)
}
