package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/gradientbot/internal/model"
)

// SimpleWriter outputs the run history as a plain text table for terminals.
type SimpleWriter struct {
	baseWriter

	// verbose adds the failure message of each run.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteHistory implements Writer.
func (w *SimpleWriter) WriteHistory(records []*model.RunRecord) (int, error) {
	var sb strings.Builder

	if len(records) == 0 {
		sb.WriteString("No runs recorded.\n")
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "%-8s  %-23s  %-9s  %-14s  %-30s  %s\n",
		"ID", "STARTED", "DURATION", "OUTCOME", "FAILURE", "PROXY")
	sb.WriteString(strings.Repeat("-", 100))
	sb.WriteString("\n")

	for _, r := range records {
		fmt.Fprintf(&sb, "%-8s  %-23s  %-9s  %-14s  %-30s  %s\n",
			shortID(r.ID),
			r.StartedAt.Format(timeLayout),
			formatDuration(r.Duration()),
			r.Outcome,
			orDash(string(r.Failure)),
			orDash(r.Proxy))
		if w.verbose && r.Message != "" {
			fmt.Fprintf(&sb, "          %s\n", truncateString(r.Message, 90))
		}
	}
	return w.output.Write([]byte(sb.String()))
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
