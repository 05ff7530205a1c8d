package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict_ThresholdStyle(t *testing.T) {
	v, err := ParseVerdict([]byte(`{"overall_score": 85}`))
	require.NoError(t, err)
	assert.True(t, v.Accepted(DefaultThreshold))
	assert.Empty(t, v.Feedback())

	v, err = ParseVerdict([]byte(`{"overall_score": 69}`))
	require.NoError(t, err)
	assert.False(t, v.Accepted(DefaultThreshold))
	assert.Empty(t, v.Feedback(), "threshold verdicts carry no correction text")

	v, err = ParseVerdict([]byte(`{"overall_score": 70}`))
	require.NoError(t, err)
	assert.True(t, v.Accepted(DefaultThreshold), "boundary score passes")
}

func TestParseVerdict_BooleanStyle(t *testing.T) {
	v, err := ParseVerdict([]byte(`{"correctness": false, "correction": "step 3 omits the allocation row"}`))
	require.NoError(t, err)
	assert.False(t, v.Accepted(DefaultThreshold))
	assert.Equal(t, "step 3 omits the allocation row", v.Feedback())

	v, err = ParseVerdict([]byte(`{"correctness": true, "correction": "stale remark"}`))
	require.NoError(t, err)
	assert.True(t, v.Accepted(DefaultThreshold))
	assert.Empty(t, v.Feedback(), "accepted verdicts yield no feedback")
}

func TestParseVerdict_IsCorrectAlias(t *testing.T) {
	v, err := ParseVerdict([]byte(`{"isCorrect": false, "correction": "wrong currency"}`))
	require.NoError(t, err)
	assert.False(t, v.Accepted(DefaultThreshold))
	assert.Equal(t, "wrong currency", v.Feedback())
}

func TestParseVerdict_Invalid(t *testing.T) {
	_, err := ParseVerdict([]byte(`{}`))
	require.Error(t, err)

	_, err = ParseVerdict([]byte(`not json`))
	require.Error(t, err)
}
