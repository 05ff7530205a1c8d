// Package stage drives one pipeline stage over its input records. A
// stage owns a generator/verifier model pair, renders prompts from its
// templates, runs the controller loop per record, and saves whatever
// validated output the loop produced. A failing record is reported and
// skipped, never aborts the batch.
package stage

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/jonathan/testing-assistant/internal/config"
	"github.com/jonathan/testing-assistant/internal/controller"
	"github.com/jonathan/testing-assistant/internal/db"
	"github.com/jonathan/testing-assistant/internal/llm"
	"github.com/jonathan/testing-assistant/internal/observability"
	"github.com/jonathan/testing-assistant/internal/prompts"
	"github.com/jonathan/testing-assistant/internal/schema"
)

// newProvider is swapped out in tests.
var newProvider = llm.New

// Record is one unit of stage input.
type Record struct {
	// ID labels the record in progress and failure output.
	ID string
	// Group ties records that belong together, e.g. the steps of one
	// test case. Chained state resets on a group change.
	Group string
	// Input is the rendered input text, empty for stages without
	// upstream input.
	Input string
}

// Definition declares one pipeline stage.
type Definition struct {
	// Name is the stage name and the prompt key prefix in stages.json.
	Name string

	GenProvider string
	GenModel    string
	VerProvider string
	VerModel    string

	GenerateContract *schema.Contract
	VerifyContract   *schema.Contract

	DefaultTries  int
	DefaultVerify bool

	// Chained threads each record's accepted payload into the next
	// record's prompt within the same group.
	Chained bool

	LoadRecords func(cfg *config.Config) ([]Record, error)
	Save        func(cfg *config.Config, rec Record, payload []byte, accepted bool) error
}

// Options are the per-run knobs, mostly mapped from CLI flags.
type Options struct {
	Module       string
	Start        int
	End          int // 0 means to the last record
	Instructions string
	Tries        int // 0 means the stage default
	NoVerify     bool
	DatabaseURL  string
}

// Execute runs the stage over its record range.
func Execute(ctx context.Context, def Definition, cfg *config.Config, opts Options) error {
	knowledgeDir, err := cfg.KnowledgeDir(opts.Module)
	if err != nil {
		return err
	}

	generator, err := newProvider(ctx, providerConfig(def.GenProvider, def.GenModel, llm.RoleGenerator, cfg, opts.Module, knowledgeDir))
	if err != nil {
		return fmt.Errorf("building generator: %w", err)
	}
	defer generator.Close()

	verify := def.DefaultVerify && !opts.NoVerify
	var verifier llm.Provider
	if verify {
		verifier, err = newProvider(ctx, providerConfig(def.VerProvider, def.VerModel, llm.RoleVerifier, cfg, opts.Module, knowledgeDir))
		if err != nil {
			return fmt.Errorf("building verifier: %w", err)
		}
		defer verifier.Close()
	}

	// The hosted provider needs its documents pinned before the first
	// call; the self-hosted one inlines them per call.
	if def.GenProvider == "gemini" {
		if err := generator.UploadReferenceDocuments(ctx); err != nil {
			return fmt.Errorf("uploading reference documents: %w", err)
		}
	}
	if verify && def.VerProvider == "gemini" {
		if err := verifier.UploadReferenceDocuments(ctx); err != nil {
			return fmt.Errorf("uploading verifier reference documents: %w", err)
		}
	}

	records, err := def.LoadRecords(cfg)
	if err != nil {
		return err
	}
	start, end := clampRange(opts.Start, opts.End, len(records))

	printer := observability.NewPrinter(os.Stdout)
	printer.StageStart(def.Name, opts.Module, start, end)

	run := openRun(ctx, def.Name, opts)
	defer run.close(ctx)

	ctrl := &controller.Controller{
		Generator:        generator,
		Verifier:         verifier,
		GenerateContract: def.GenerateContract,
		VerifyContract:   def.VerifyContract,
	}
	loopOpts := controller.Options{Tries: def.DefaultTries, Verify: verify}
	if opts.Tries > 0 {
		loopOpts.Tries = opts.Tries
	}

	var failures []observability.Failure
	var prevPayload []byte
	lastGroup := ""

	for _, rec := range records[start:end] {
		if rec.Group != lastGroup {
			prevPayload = nil
			lastGroup = rec.Group
		}

		req := controller.Request{
			Prompt:         buildPrompt(def.Name, rec, opts.Instructions, prevPayload),
			VerifierPrompt: verifierPromptFunc(def.Name, rec),
			OnAttempt: func(attempt int) {
				printer.RecordProgress(rec.ID, attempt)
			},
		}
		outcome, err := ctrl.Run(ctx, req, loopOpts)
		if err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}
		printer.RecordResolved(rec.ID, outcome.Accepted, outcome.Verified, outcome.Attempts)

		if outcome.Payload != nil {
			if err := def.Save(cfg, rec, outcome.Payload, outcome.Accepted); err != nil {
				return fmt.Errorf("saving output for %s: %w", rec.ID, err)
			}
			run.saveArtifact(ctx, rec.ID, outcome.Accepted, outcome.Payload)
		}
		if !outcome.Accepted {
			failures = append(failures, observability.Failure{RecordID: rec.ID, Reason: outcome.Reason})
			run.saveFailure(ctx, rec.ID, outcome.Reason)
			continue
		}
		if def.Chained {
			prevPayload = outcome.Payload
		}
	}

	printer.FailureSummary(def.Name, failures)
	run.complete(ctx, len(failures))
	return nil
}

func providerConfig(provider, model string, role llm.Role, cfg *config.Config, module, knowledgeDir string) llm.ModelConfig {
	mc := llm.ModelConfig{
		Provider:     provider,
		Model:        model,
		Role:         role,
		Module:       module,
		KnowledgeDir: knowledgeDir,
		BaseURL:      cfg.OllamaBaseURL,
		Token:        cfg.OllamaAPIKey,
		CacheDir:     cfg.CacheDir,
	}
	if role == llm.RoleVerifier {
		mc.APIKey = cfg.GeminiVerifierAPIKey
	} else {
		mc.APIKey = cfg.GeminiAPIKey
	}
	return mc
}

func clampRange(start, end, total int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end <= 0 || end > total {
		end = total
	}
	if start > end {
		start = end
	}
	return start, end
}

func buildPrompt(name string, rec Record, instructions string, prevPayload []byte) string {
	prompt := prompts.MustGet("stages.json", name+"-role") + "\n" + prompts.MustGet("stages.json", name+"-task")
	if rec.Input != "" {
		prompt += prompts.Format(prompts.MustGet("llm.json", "input-label"), map[string]string{
			"Input": rec.Input,
		})
	}
	if prevPayload != nil {
		prompt += prompts.Format(prompts.MustGet("llm.json", "previous-state-label"), map[string]string{
			"PreviousState": string(prevPayload),
		})
	}
	if instructions != "" {
		prompt += prompts.Format(prompts.MustGet("llm.json", "instructions-label"), map[string]string{
			"Instructions": instructions,
		})
	}
	return prompt
}

func verifierPromptFunc(name string, rec Record) func([]byte) string {
	return func(candidate []byte) string {
		prompt := prompts.MustGet("stages.json", name+"-verify-role") + "\n" + prompts.MustGet("stages.json", name+"-verify-task")
		if rec.Input != "" {
			prompt += prompts.Format(prompts.MustGet("llm.json", "input-label"), map[string]string{
				"Input": rec.Input,
			})
		}
		return prompt + "\n\nContent to verify:\n" + string(candidate)
	}
}

// run wraps optional database persistence. A connection failure is a
// warning, not an error; every method degrades to a no-op.
type run struct {
	database *db.DB
	id       uuid.UUID
	active   bool
}

func openRun(ctx context.Context, stage string, opts Options) *run {
	if opts.DatabaseURL == "" {
		return &run{}
	}
	database, err := db.Connect(ctx, opts.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: database unavailable, run will not be persisted: %v\n", err)
		return &run{}
	}
	id, err := database.CreateRun(ctx, stage, opts.Module)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create run record: %v\n", err)
		database.Close()
		return &run{}
	}
	return &run{database: database, id: id, active: true}
}

func (r *run) saveArtifact(ctx context.Context, recordID string, accepted bool, payload []byte) {
	if !r.active {
		return
	}
	if err := r.database.SaveArtifact(ctx, r.id, recordID, accepted, payload); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not persist artifact for %s: %v\n", recordID, err)
	}
}

func (r *run) saveFailure(ctx context.Context, recordID, reason string) {
	if !r.active {
		return
	}
	if err := r.database.SaveFailure(ctx, r.id, recordID, reason); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not persist failure for %s: %v\n", recordID, err)
	}
}

func (r *run) complete(ctx context.Context, failures int) {
	if !r.active {
		return
	}
	if err := r.database.CompleteRun(ctx, r.id, "completed", failures); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not complete run record: %v\n", err)
	}
}

func (r *run) close(context.Context) {
	if r.database != nil {
		r.database.Close()
	}
}
