// Package pipeline orchestrates the per-ticker ingest sequence and the
// parallel supervisor that runs tickers concurrently.
package pipeline

import (
	"time"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

// FilingOutcome records what happened to one filing. Once the orchestrator
// returns it, it is never mutated.
type FilingOutcome struct {
	Ticker          string
	FormType        string
	AccessionNumber string
	PeriodEnd       time.Time

	FiscalYear   int
	FiscalPeriod string
	FiscalSource string
	Confidence   float64

	// Substituted marks a 10-K request served by a 20-F.
	Substituted bool
	// Skipped means the artifacts already existed in the sink.
	Skipped bool

	Success       bool
	ArtifactPaths []string
	FactCount     int
	SourceFormat  string

	ErrKind  errs.Kind
	ErrMsg   string
	Warnings []string

	Duration time.Duration
}

// TickerOutcome aggregates a ticker's filings plus any failure that stopped
// the ticker before filings could be enumerated.
type TickerOutcome struct {
	Ticker  string
	Filings []FilingOutcome
	ErrKind errs.Kind
	ErrMsg  string
}

// Failed reports whether the ticker died before processing any filing.
func (t TickerOutcome) Failed() bool { return t.ErrMsg != "" && len(t.Filings) == 0 }

// RunReport is the supervisor's collected result.
type RunReport struct {
	Started  time.Time
	Finished time.Time
	Workers  int
	Tickers  []TickerOutcome
}

// Counts tallies filings by result class.
func (r *RunReport) Counts() (succeeded, skipped, warned, failed int) {
	for _, t := range r.Tickers {
		for _, f := range t.Filings {
			switch {
			case f.Skipped:
				skipped++
			case f.Success && len(f.Warnings) > 0:
				warned++
			case f.Success:
				succeeded++
			default:
				failed++
			}
		}
	}
	return
}

func failedOutcome(ticker string, err error) TickerOutcome {
	return TickerOutcome{Ticker: ticker, ErrKind: errs.KindOf(err), ErrMsg: err.Error()}
}
