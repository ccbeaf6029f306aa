package report

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/nao1215/gradientbot/internal/model"
	"github.com/nao1215/markdown"
)

// plainText marks code blocks without syntax highlighting.
const plainText = markdown.SyntaxHighlight("text")

// maxConsoleLines is how many trailing console lines the summary shows.
// error.log always has all of them.
const maxConsoleLines = 50

// MarkdownWriter outputs the run history and error summaries in Markdown,
// for pasting into issues.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteHistory implements Writer.
func (w *MarkdownWriter) WriteHistory(records []*model.RunRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Gradient Bot Run History")
	md.PlainText("")

	if len(records) == 0 {
		md.PlainText("No runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			"`" + shortID(r.ID) + "`",
			r.StartedAt.Format(timeLayout),
			formatDuration(r.Duration()),
			outcomeText(r.Outcome),
			orDash(string(r.Failure)),
			orDash(r.Stage),
			orDash(r.Proxy),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Run", "Started", "Duration", "Outcome", "Failure", "Stage", "Proxy"},
		Rows:   rows,
	})
	md.PlainText("")

	return len(md.String()), md.Build()
}

func outcomeText(o model.Outcome) string {
	switch o {
	case model.OutcomeConnected:
		return "✅ connected"
	case model.OutcomeDisconnected:
		return "🔌 disconnected"
	case model.OutcomeRegionBlocked:
		return "🚫 region blocked"
	case model.OutcomeFailed:
		return "❌ failed"
	case model.OutcomeInterrupted:
		return "⏹️ interrupted"
	default:
		return string(o)
	}
}

// ErrorSummary is the content of error-report.md.
type ErrorSummary struct {
	Report      *model.ErrorReport
	State       model.SessionState
	ExtensionID string

	// Proxy is the upstream proxy with credentials removed.
	Proxy string

	// ProxyCheck is the command that repeats the proxy probe by hand.
	ProxyCheck string
}

// WriteErrorSummary outputs the error summary.
func (w *MarkdownWriter) WriteErrorSummary(s ErrorSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)
	r := s.Report

	md.H1("Gradient Bot Error Report")
	md.PlainText("")
	md.Cautionf("The run stopped: %s", r.Cause)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Captured", r.CapturedAt.Format(timeLayout)},
			{"Session state", s.State.String()},
			{"Extension", "`" + orDash(s.ExtensionID) + "`"},
			{"Proxy", orDash(s.Proxy)},
		},
	})
	md.PlainText("")

	md.H2("Artifacts")
	md.PlainText("")
	if len(r.Files) == 0 {
		md.PlainText("No artifacts were written.")
	} else {
		names := make([]string, len(r.Files))
		for i, f := range r.Files {
			names[i] = "`" + filepath.Base(f) + "`"
		}
		md.BulletList(names...)
	}
	md.PlainText("")

	if len(r.Errors) > 0 {
		md.H2("Capture Errors")
		md.PlainText("")
		md.BulletList(r.Errors...)
		md.PlainText("")
	}

	md.H2("Browser Console")
	md.PlainText("")
	if r.ConsoleLog == "" {
		md.PlainText("The console was empty.")
	} else {
		lines := strings.Split(r.ConsoleLog, "\n")
		if len(lines) > maxConsoleLines {
			md.PlainTextf("Last %d of %d lines, see error.log for all of them.",
				maxConsoleLines, len(lines))
			md.PlainText("")
			lines = lines[len(lines)-maxConsoleLines:]
		}
		md.CodeBlocks(plainText, strings.Join(lines, "\n"))
	}
	md.PlainText("")

	if r.Stack != "" {
		md.Details("Stack trace", r.Stack)
		md.PlainText("")
	}

	md.H2("What to check")
	md.PlainText("")
	md.BulletList(Remediation(s.ProxyCheck)...)
	md.PlainText("")

	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by gradientbot*")

	return len(md.String()), md.Build()
}

// Remediation returns the checklist shown when the node does not connect.
// proxyCheck is the command from browser.ProxyCheckCommand, empty without proxy.
func Remediation(proxyCheck string) []string {
	hints := make([]string, 0, 4)
	if proxyCheck != "" {
		hints = append(hints, "Make sure the proxy is working: `"+proxyCheck+"`")
	}
	return append(hints,
		"Make sure the image is up to date, then restart the container.",
		"The service itself is not very stable; abnormal states often clear after an automatic restart.",
		"Free proxies are often banned by the service. Try a static residential proxy.",
	)
}
