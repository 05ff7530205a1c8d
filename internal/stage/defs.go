package stage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jonathan/testing-assistant/internal/artifacts"
	"github.com/jonathan/testing-assistant/internal/config"
	"github.com/jonathan/testing-assistant/internal/tabular"
)

// Dimensions extracts test dimensions from the requirements alone.
func Dimensions() Definition {
	return Definition{
		Name:             "dimensions",
		GenProvider:      "gemini",
		GenModel:         "gemini-2.5-flash",
		VerProvider:      "gemini",
		VerModel:         "gemini-2.5-flash",
		GenerateContract: artifacts.DimensionList(),
		VerifyContract:   artifacts.DimensionVerification(),
		DefaultTries:     1,
		DefaultVerify:    true,
		LoadRecords: func(*config.Config) ([]Record, error) {
			// No upstream input, the knowledge base is the whole input.
			return []Record{{ID: "dimensions"}}, nil
		},
		Save: func(cfg *config.Config, _ Record, payload []byte, _ bool) error {
			return saveOutputList(cfg.DimensionsFile, payload)
		},
	}
}

// Scenarios combines the dimensions into scored combination sets. The
// whole dimensions table is one record: combinations cut across rows.
func Scenarios() Definition {
	return Definition{
		Name:             "scenarios",
		GenProvider:      "ollama",
		GenModel:         "deepseek-r1:14b",
		VerProvider:      "ollama",
		VerModel:         "deepseek-r1:14b",
		GenerateContract: artifacts.ScenarioList(),
		VerifyContract:   artifacts.ScenarioVerification(),
		DefaultTries:     1,
		DefaultVerify:    true,
		LoadRecords: func(cfg *config.Config) ([]Record, error) {
			input, err := renderTable(cfg.DimensionsFile)
			if err != nil {
				return nil, err
			}
			return []Record{{ID: "scenarios", Input: input}}, nil
		},
		Save: func(cfg *config.Config, _ Record, payload []byte, _ bool) error {
			return saveOutputList(cfg.ScenariosFile, payload)
		},
	}
}

// Cases generates test cases, one loop iteration per scenario row.
func Cases() Definition {
	return Definition{
		Name:             "cases",
		GenProvider:      "ollama",
		GenModel:         "gpt-oss:20b",
		VerProvider:      "ollama",
		VerModel:         "deepseek-r1:14b",
		GenerateContract: artifacts.CaseList(),
		VerifyContract:   artifacts.CaseVerification(),
		DefaultTries:     1,
		DefaultVerify:    true,
		LoadRecords: func(cfg *config.Config) ([]Record, error) {
			return recordsPerRow(cfg.ScenariosFile, "combo_id")
		},
		Save: func(cfg *config.Config, _ Record, payload []byte, _ bool) error {
			records, header, err := flattenOutput(payload)
			if err != nil {
				return err
			}
			return tabular.AppendRecords(cfg.CasesFile, header, records)
		},
	}
}

// Steps generates executable steps, one loop iteration per test case,
// each case written to its own steps file.
func Steps() Definition {
	return Definition{
		Name:             "steps",
		GenProvider:      "ollama",
		GenModel:         "gpt-oss:20b",
		VerProvider:      "ollama",
		VerModel:         "deepseek-r1:14b",
		GenerateContract: artifacts.StepList(),
		VerifyContract:   artifacts.StepVerification(),
		DefaultTries:     1,
		DefaultVerify:    true,
		LoadRecords: func(cfg *config.Config) ([]Record, error) {
			return recordsPerRow(cfg.CasesFile, "test_case_id")
		},
		Save: func(cfg *config.Config, rec Record, payload []byte, _ bool) error {
			records, header, err := flattenOutput(payload)
			if err != nil {
				return err
			}
			return tabular.WriteRecords(StepsFile(cfg, rec.ID), header, records)
		},
	}
}

// Outputs derives the expected collateral summary per step, carrying
// the previous step's accepted state forward within each test case.
func Outputs() Definition {
	return Definition{
		Name:             "outputs",
		GenProvider:      "ollama",
		GenModel:         "gpt-oss:20b",
		VerProvider:      "ollama",
		VerModel:         "deepseek-r1:14b",
		GenerateContract: artifacts.ExpectedResult(),
		VerifyContract:   artifacts.OutputVerification(),
		DefaultTries:     1,
		DefaultVerify:    true,
		Chained:          true,
		LoadRecords:      loadStepRecords,
		Save: func(cfg *config.Config, rec Record, payload []byte, _ bool) error {
			records, header, err := flattenOutput(payload)
			if err != nil {
				return err
			}
			sheet := ResultsFile(cfg, rec.Group)
			startMarker := "RESULT_" + rec.ID + "_START"
			endMarker := "RESULT_" + rec.ID + "_END"
			// Reruns replace the step's region instead of duplicating it.
			if err := tabular.DeleteRegion(sheet, startMarker, endMarker); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			return tabular.WriteRegion(sheet, startMarker, endMarker, header, records)
		},
	}
}

// ByName resolves a stage definition from its CLI name.
func ByName(name string) (Definition, error) {
	switch name {
	case "dimensions":
		return Dimensions(), nil
	case "scenarios":
		return Scenarios(), nil
	case "cases":
		return Cases(), nil
	case "steps":
		return Steps(), nil
	case "outputs":
		return Outputs(), nil
	default:
		return Definition{}, fmt.Errorf("unknown stage %q", name)
	}
}

// StepsFile is the per-case steps output path.
func StepsFile(cfg *config.Config, caseID string) string {
	return filepath.Join(cfg.DataDir, "teststeps_"+caseID+".csv")
}

// ResultsFile is the per-case expected results sheet path.
func ResultsFile(cfg *config.Config, caseID string) string {
	return filepath.Join(cfg.DataDir, "expectedresults_"+caseID+".csv")
}

// recordsPerRow turns each CSV row into one stage record, rendered as
// "column: value" lines in column order.
func recordsPerRow(path, idColumn string) ([]Record, error) {
	header, rows, err := tabular.ReadTable(path)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		id := row[idColumn]
		if id == "" {
			id = fmt.Sprintf("row-%d", i)
		}
		records = append(records, Record{ID: id, Input: renderRow(header, row)})
	}
	return records, nil
}

// loadStepRecords walks every generated steps file and yields one
// record per step row, grouped by test case.
func loadStepRecords(cfg *config.Config) ([]Record, error) {
	paths, err := filepath.Glob(filepath.Join(cfg.DataDir, "teststeps_*.csv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no step files under %s, run the steps stage first", cfg.DataDir)
	}
	sort.Strings(paths)

	var records []Record
	for _, path := range paths {
		caseID := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "teststeps_"), ".csv")
		header, rows, err := tabular.ReadTable(path)
		if err != nil {
			return nil, err
		}
		for i, row := range rows {
			step := row["step"]
			if step == "" {
				step = fmt.Sprintf("%d", i+1)
			}
			records = append(records, Record{
				ID:    caseID + "-step-" + step,
				Group: caseID,
				Input: renderRow(header, row),
			})
		}
	}
	return records, nil
}

func renderRow(header []string, row tabular.Record) string {
	var sb strings.Builder
	for _, name := range header {
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(row[name])
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderTable(path string) (string, error) {
	header, rows, err := tabular.ReadTable(path)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for i, row := range rows {
		sb.WriteString(renderRow(header, row))
		if i < len(rows)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// flattenOutput extracts the payload's output array into CSV records.
func flattenOutput(payload []byte) ([]tabular.Record, []string, error) {
	var envelope struct {
		Output []json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, nil, fmt.Errorf("reading artifact payload: %w", err)
	}
	return tabular.RecordsFromJSON(envelope.Output)
}

func saveOutputList(path string, payload []byte) error {
	records, header, err := flattenOutput(payload)
	if err != nil {
		return err
	}
	return tabular.WriteRecords(path, header, records)
}
