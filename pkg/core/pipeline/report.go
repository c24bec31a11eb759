package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

// WriteReport renders the run report as Markdown and HTML under
// baseDir/runs/<started-timestamp>/ and returns that directory.
func WriteReport(baseDir string, report *RunReport) (string, error) {
	dir := filepath.Join(baseDir, "runs", report.Started.UTC().Format("20060102-150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errs.Wrap(errs.KindSerialize, err)
	}

	md := renderMarkdown(report)
	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(md), 0o644); err != nil {
		return "", errs.Wrap(errs.KindSerialize, err)
	}

	var html bytes.Buffer
	renderer := goldmark.New(goldmark.WithExtensions(extension.Table))
	if err := renderer.Convert([]byte(md), &html); err != nil {
		return "", errs.Wrap(errs.KindSerialize, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.html"), html.Bytes(), 0o644); err != nil {
		return "", errs.Wrap(errs.KindSerialize, err)
	}
	return dir, nil
}

func renderMarkdown(report *RunReport) string {
	var b strings.Builder
	succeeded, skipped, warned, failed := report.Counts()

	fmt.Fprintf(&b, "# Ingest Run %s\n\n", report.Started.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- Started: %s\n", report.Started.UTC().Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(&b, "- Finished: %s\n", report.Finished.UTC().Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(&b, "- Workers: %d\n", report.Workers)
	fmt.Fprintf(&b, "- Filings: %d succeeded, %d skipped, %d with warnings, %d failed\n\n",
		succeeded, skipped, warned, failed)

	b.WriteString("## Filings\n\n")
	b.WriteString("| Ticker | Form | Fiscal | Result | Facts | Source | Duration |\n")
	b.WriteString("|--------|------|--------|--------|-------|--------|----------|\n")
	for _, t := range report.Tickers {
		for _, f := range t.Filings {
			fmt.Fprintf(&b, "| %s | %s%s | %d %s | %s | %d | %s | %s |\n",
				f.Ticker, f.FormType, substitutedMark(f),
				f.FiscalYear, f.FiscalPeriod,
				resultLabel(f), f.FactCount, f.SourceFormat,
				f.Duration.Round(time.Millisecond).String())
		}
	}
	b.WriteString("\n")

	if warned > 0 {
		b.WriteString("## Warnings\n\n")
		for _, t := range report.Tickers {
			for _, f := range t.Filings {
				for _, w := range f.Warnings {
					fmt.Fprintf(&b, "- **%s %s**: %s\n", f.Ticker, f.AccessionNumber, w)
				}
			}
		}
		b.WriteString("\n")
	}

	var errorLines []string
	for _, t := range report.Tickers {
		if t.Failed() {
			errorLines = append(errorLines, fmt.Sprintf("- **%s**: [%s] %s", t.Ticker, t.ErrKind, t.ErrMsg))
		}
		for _, f := range t.Filings {
			if !f.Success {
				errorLines = append(errorLines,
					fmt.Sprintf("- **%s %s**: [%s] %s", f.Ticker, f.AccessionNumber, f.ErrKind, f.ErrMsg))
			}
		}
	}
	if len(errorLines) > 0 {
		b.WriteString("## Errors\n\n")
		b.WriteString(strings.Join(errorLines, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

func substitutedMark(f FilingOutcome) string {
	if f.Substituted {
		return " (substituted for 10-K)"
	}
	return ""
}

func resultLabel(f FilingOutcome) string {
	switch {
	case f.Skipped:
		return "skipped (exists)"
	case f.Success && len(f.Warnings) > 0:
		return "ok (warnings)"
	case f.Success:
		return "ok"
	default:
		return "failed"
	}
}
