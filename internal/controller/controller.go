// Package controller runs the generation loop for a single record:
// draft with the generator, validate against the output contract,
// optionally judge with the verifier, and redraft with feedback until
// the candidate is accepted or the attempt budget runs out.
package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/testing-assistant/internal/llm"
	"github.com/jonathan/testing-assistant/internal/prompts"
	"github.com/jonathan/testing-assistant/internal/schema"
)

// Controller wires a generator/verifier pair to their output contracts.
type Controller struct {
	Generator llm.Provider
	Verifier  llm.Provider

	GenerateContract *schema.Contract
	VerifyContract   *schema.Contract
}

// Request is the work for one record.
type Request struct {
	// Prompt is the full generation prompt for the record.
	Prompt string
	// VerifierPrompt renders the verification prompt for a validated
	// candidate payload. Required when verification is on.
	VerifierPrompt func(candidate []byte) string
	// OnAttempt, when set, is called at the start of every drafting
	// attempt with the attempt number.
	OnAttempt func(attempt int)
}

// Options tune one run of the loop.
type Options struct {
	// Tries is the attempt budget. Zero means 1.
	Tries int
	// Threshold is the minimum passing score for threshold-style
	// verdicts. Zero means the default of 70.
	Threshold int
	// Verify enables the verifier leg.
	Verify bool
}

// Outcome is the result of a run. A payload is present whenever at
// least one draft passed schema validation, even if no draft was
// accepted; callers decide whether unaccepted output is still worth
// keeping.
type Outcome struct {
	Payload     []byte
	Accepted    bool
	Verified    bool
	Attempts    int
	LastVerdict *schema.Verdict
	Reason      string
}

// Run executes the loop. Provider failures that are fatal for the
// record (content exhaustion) come back as an unaccepted Outcome;
// anything fatal for the batch comes back as an error.
func (c *Controller) Run(ctx context.Context, req Request, opts Options) (*Outcome, error) {
	tries := opts.Tries
	if tries <= 0 {
		tries = 1
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = schema.DefaultThreshold
	}
	if opts.Verify && req.VerifierPrompt == nil {
		return nil, errors.New("verification requested without a verifier prompt")
	}

	outcome := &Outcome{}
	feedback := ""

	for attempt := 1; attempt <= tries; attempt++ {
		outcome.Attempts = attempt
		if req.OnAttempt != nil {
			req.OnAttempt(attempt)
		}

		prompt := req.Prompt
		if feedback != "" {
			prompt += prompts.Format(prompts.MustGet("llm.json", "feedback-label"), map[string]string{
				"Feedback": feedback,
			})
		}

		policy := llm.SessionReuse
		if attempt == 1 {
			policy = llm.SessionNew
		}

		raw, err := c.Generator.Converse(ctx, prompt, c.GenerateContract, policy)
		if err != nil {
			var ce *llm.ContentError
			if errors.As(err, &ce) {
				outcome.Reason = err.Error()
				return outcome, nil
			}
			return nil, fmt.Errorf("generation failed: %w", err)
		}

		payload, err := c.GenerateContract.Validate(raw)
		if err != nil {
			var ve *schema.ViolationError
			if errors.As(err, &ve) {
				// A malformed draft is redrafted on the same feedback;
				// it never reaches the verifier.
				outcome.Reason = err.Error()
				continue
			}
			return nil, err
		}
		outcome.Payload = payload
		outcome.Reason = ""

		if !opts.Verify {
			outcome.Accepted = true
			return outcome, nil
		}

		verdict, err := c.judge(ctx, req.VerifierPrompt(payload))
		if err != nil {
			var ce *llm.ContentError
			if errors.As(err, &ce) {
				outcome.Reason = err.Error()
				return outcome, nil
			}
			var ve *schema.ViolationError
			if errors.As(err, &ve) {
				outcome.Reason = "verifier produced an unusable verdict: " + err.Error()
				continue
			}
			return nil, fmt.Errorf("verification failed: %w", err)
		}

		outcome.LastVerdict = verdict
		if verdict.Accepted(threshold) {
			outcome.Accepted = true
			outcome.Verified = true
			return outcome, nil
		}
		feedback = verdict.Feedback()
		outcome.Reason = "verifier rejected the draft (" + verdict.String() + ")"
	}

	return outcome, nil
}

// judge runs one verifier pass over a candidate. The verifier always
// gets a fresh session so critiques of other records never leak in.
func (c *Controller) judge(ctx context.Context, prompt string) (*schema.Verdict, error) {
	raw, err := c.Verifier.Converse(ctx, prompt, c.VerifyContract, llm.SessionNew)
	if err != nil {
		return nil, err
	}
	payload, err := c.VerifyContract.Validate(raw)
	if err != nil {
		return nil, err
	}
	return schema.ParseVerdict(payload)
}
