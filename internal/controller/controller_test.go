package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/testing-assistant/internal/llm"
	"github.com/jonathan/testing-assistant/internal/schema"
)

type recordedCall struct {
	prompt string
	policy llm.SessionPolicy
}

// scriptedProvider replays canned responses and records every call.
type scriptedProvider struct {
	script func(call int, prompt string) (string, error)
	calls  []recordedCall
}

func (p *scriptedProvider) Converse(_ context.Context, prompt string, _ *schema.Contract, policy llm.SessionPolicy) (string, error) {
	p.calls = append(p.calls, recordedCall{prompt: prompt, policy: policy})
	return p.script(len(p.calls), prompt)
}

func (p *scriptedProvider) UploadReferenceDocuments(context.Context) error { return nil }
func (p *scriptedProvider) Teardown(context.Context) error                { return nil }
func (p *scriptedProvider) Close() error                                  { return nil }

func generateContract() *schema.Contract {
	return &schema.Contract{
		Name:   "combo",
		Fields: []schema.Field{{Name: "combo_id", Type: schema.TypeString}},
	}
}

func booleanVerifyContract() *schema.Contract {
	return &schema.Contract{
		Name: "combo_check",
		Fields: []schema.Field{
			{Name: "correctness", Type: schema.TypeBoolean},
			{Name: "correction", Type: schema.TypeString},
		},
	}
}

func thresholdVerifyContract() *schema.Contract {
	return &schema.Contract{
		Name:   "combo_score",
		Fields: []schema.Field{{Name: "overall_score", Type: schema.TypeInteger}},
	}
}

func newRequest() Request {
	return Request{
		Prompt: "Generate the combination.",
		VerifierPrompt: func(candidate []byte) string {
			return "Verify this: " + string(candidate)
		},
	}
}

func TestRun_ExhaustsBudgetAndThreadsCorrections(t *testing.T) {
	gen := &scriptedProvider{script: func(call int, _ string) (string, error) {
		return `{"combo_id": "SC-001"}`, nil
	}}
	ver := &scriptedProvider{script: func(call int, _ string) (string, error) {
		return `{"correctness": false, "correction": "allocation row missing in step 2"}`, nil
	}}

	c := &Controller{
		Generator:        gen,
		Verifier:         ver,
		GenerateContract: generateContract(),
		VerifyContract:   booleanVerifyContract(),
	}
	outcome, err := c.Run(context.Background(), newRequest(), Options{Tries: 3, Verify: true})
	require.NoError(t, err)

	assert.False(t, outcome.Accepted)
	assert.False(t, outcome.Verified)
	assert.Equal(t, 3, outcome.Attempts)
	assert.NotNil(t, outcome.Payload, "last validated draft is retained")
	require.NotNil(t, outcome.LastVerdict)
	assert.NotEmpty(t, outcome.Reason)

	require.Len(t, gen.calls, 3)
	require.Len(t, ver.calls, 3)
	assert.NotContains(t, gen.calls[0].prompt, "allocation row missing")
	assert.Contains(t, gen.calls[1].prompt, "allocation row missing in step 2")
	assert.Contains(t, gen.calls[2].prompt, "allocation row missing in step 2")
}

func TestRun_AcceptStopsFurtherCalls(t *testing.T) {
	gen := &scriptedProvider{script: func(call int, _ string) (string, error) {
		return `{"combo_id": "SC-001"}`, nil
	}}
	ver := &scriptedProvider{script: func(call int, _ string) (string, error) {
		if call == 1 {
			return `{"correctness": false, "correction": "wrong criticality"}`, nil
		}
		return `{"correctness": true, "correction": ""}`, nil
	}}

	c := &Controller{
		Generator:        gen,
		Verifier:         ver,
		GenerateContract: generateContract(),
		VerifyContract:   booleanVerifyContract(),
	}
	outcome, err := c.Run(context.Background(), newRequest(), Options{Tries: 5, Verify: true})
	require.NoError(t, err)

	assert.True(t, outcome.Accepted)
	assert.True(t, outcome.Verified)
	assert.Equal(t, 2, outcome.Attempts)
	assert.Len(t, gen.calls, 2)
	assert.Len(t, ver.calls, 2)
}

func TestRun_ThresholdStyleCarriesNoFeedback(t *testing.T) {
	gen := &scriptedProvider{script: func(call int, _ string) (string, error) {
		return `{"combo_id": "SC-001"}`, nil
	}}
	ver := &scriptedProvider{script: func(call int, _ string) (string, error) {
		if call == 1 {
			return `{"overall_score": 60}`, nil
		}
		return `{"overall_score": 85}`, nil
	}}

	c := &Controller{
		Generator:        gen,
		Verifier:         ver,
		GenerateContract: generateContract(),
		VerifyContract:   thresholdVerifyContract(),
	}
	outcome, err := c.Run(context.Background(), newRequest(), Options{Tries: 3, Verify: true})
	require.NoError(t, err)

	assert.True(t, outcome.Accepted)
	assert.Equal(t, 2, outcome.Attempts)
	require.Len(t, gen.calls, 2)
	assert.Equal(t, gen.calls[0].prompt, gen.calls[1].prompt,
		"threshold verdicts carry no correction to fold into the redraft")
}

func TestRun_SchemaViolationRedraftsWithoutVerifier(t *testing.T) {
	gen := &scriptedProvider{script: func(call int, _ string) (string, error) {
		if call == 1 {
			return "I am not JSON.", nil
		}
		return `{"combo_id": "SC-001"}`, nil
	}}
	ver := &scriptedProvider{script: func(int, string) (string, error) {
		t.Fatal("verifier must not see malformed drafts")
		return "", nil
	}}

	c := &Controller{
		Generator:        gen,
		Verifier:         ver,
		GenerateContract: generateContract(),
		VerifyContract:   booleanVerifyContract(),
	}
	outcome, err := c.Run(context.Background(), newRequest(), Options{Tries: 2})
	require.NoError(t, err)

	assert.True(t, outcome.Accepted)
	assert.False(t, outcome.Verified, "verification was off")
	assert.Equal(t, 2, outcome.Attempts)
	assert.Len(t, ver.calls, 0)
}

func TestRun_ContentExhaustionIsRecordFatalNotBatchFatal(t *testing.T) {
	gen := &scriptedProvider{script: func(int, string) (string, error) {
		return "", &llm.ContentError{Model: "gpt-oss:20b", Attempts: 3}
	}}

	c := &Controller{
		Generator:        gen,
		GenerateContract: generateContract(),
	}
	outcome, err := c.Run(context.Background(), newRequest(), Options{Tries: 2})
	require.NoError(t, err, "content exhaustion must not abort the batch")

	assert.False(t, outcome.Accepted)
	assert.Nil(t, outcome.Payload)
	assert.Contains(t, outcome.Reason, "unable to produce")
	assert.Len(t, gen.calls, 1, "content exhaustion stops the record immediately")
}

func TestRun_OnAttemptFiresPerDraft(t *testing.T) {
	gen := &scriptedProvider{script: func(call int, _ string) (string, error) {
		return `{"combo_id": "SC-001"}`, nil
	}}
	ver := &scriptedProvider{script: func(call int, _ string) (string, error) {
		if call < 3 {
			return `{"correctness": false, "correction": "redo"}`, nil
		}
		return `{"correctness": true, "correction": ""}`, nil
	}}

	c := &Controller{
		Generator:        gen,
		Verifier:         ver,
		GenerateContract: generateContract(),
		VerifyContract:   booleanVerifyContract(),
	}
	req := newRequest()
	var attempts []int
	req.OnAttempt = func(attempt int) { attempts = append(attempts, attempt) }

	outcome, err := c.Run(context.Background(), req, Options{Tries: 5, Verify: true})
	require.NoError(t, err)
	require.True(t, outcome.Accepted)
	assert.Equal(t, []int{1, 2, 3}, attempts, "one progress callback per drafting attempt")
}

func TestRun_SessionPolicies(t *testing.T) {
	gen := &scriptedProvider{script: func(call int, _ string) (string, error) {
		return `{"combo_id": "SC-001"}`, nil
	}}
	ver := &scriptedProvider{script: func(call int, _ string) (string, error) {
		if call < 3 {
			return `{"correctness": false, "correction": "try again"}`, nil
		}
		return `{"correctness": true, "correction": ""}`, nil
	}}

	c := &Controller{
		Generator:        gen,
		Verifier:         ver,
		GenerateContract: generateContract(),
		VerifyContract:   booleanVerifyContract(),
	}
	outcome, err := c.Run(context.Background(), newRequest(), Options{Tries: 3, Verify: true})
	require.NoError(t, err)
	require.True(t, outcome.Accepted)
	require.Len(t, gen.calls, 3)

	assert.Equal(t, llm.SessionNew, gen.calls[0].policy, "first draft opens a fresh session")
	assert.Equal(t, llm.SessionReuse, gen.calls[1].policy, "redrafts continue the session")
	assert.Equal(t, llm.SessionReuse, gen.calls[2].policy)
	for i, call := range ver.calls {
		assert.Equal(t, llm.SessionNew, call.policy, "verifier call %d must not reuse a session", i)
	}
}
