// Package observability provides formatted progress output for batch runs.
package observability

import (
	"fmt"
	"io"
	"strings"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
)

// Printer handles formatted output for batch progress
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// StageStart announces a stage run over a record range.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) StageStart(stage, module string, start, end int) {
	fmt.Fprintf(p.out, "Generating %s for %s (records %d to %d)\n\n", stage, module, start, end)
}

// RecordProgress prints one line per record attempt.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) RecordProgress(recordID string, attempt int) {
	fmt.Fprintf(p.out, "Run #%d to generate content for %s\n", attempt, recordID)
}

// RecordResolved reports the outcome of one record.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) RecordResolved(recordID string, accepted, verified bool, attempts int) {
	status := "accepted"
	if !accepted {
		status = "unresolved"
	}
	if accepted && verified {
		status = "accepted (verified)"
	}
	fmt.Fprintf(p.out, "  %s: %s after %d attempt(s)\n", recordID, status, attempts)
}

// Failure is one unresolved record in the end-of-batch summary.
type Failure struct {
	RecordID string
	Reason   string
}

// FailureSummary prints the end-of-batch list of unresolved records.
func (p *Printer) FailureSummary(stage string, failures []Failure) {
	if len(failures) == 0 {
		border := strings.Repeat("─", boxWidth-2)
		fmt.Fprintf(p.out, "┌%s┐\n", border)
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "ALL RECORDS RESOLVED")
		fmt.Fprintf(p.out, "└%s┘\n", border)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d record(s) stayed unresolved:\n\n", len(failures)))
	for i, f := range failures {
		reason := f.Reason
		if len(reason) > 45 {
			reason = reason[:42] + "..."
		}
		sb.WriteString(fmt.Sprintf("⚠ %s\n", f.RecordID))
		sb.WriteString(fmt.Sprintf("  %s\n", reason))
		if i < len(failures)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("UNRESOLVED "+strings.ToUpper(stage), sb.String())
}
