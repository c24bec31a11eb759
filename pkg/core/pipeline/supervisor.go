package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/peakyragnar/NativeLLM/pkg/core/edgar"
	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

const (
	DefaultWorkers = 3
	// MaxWorkers keeps aggregate request pressure inside the shared
	// fetcher budget.
	MaxWorkers = 5
)

// Supervisor fans tickers out to concurrent workers and collects outcomes.
type Supervisor struct {
	orch    *Orchestrator
	workers int
	logger  *zap.Logger
}

// NewSupervisor clamps workers to [1, MaxWorkers]; zero selects the default.
func NewSupervisor(orch *Orchestrator, workers int) *Supervisor {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}
	return &Supervisor{
		orch:    orch,
		workers: workers,
		logger:  zap.L().Named("supervisor"),
	}
}

// Run processes all tickers and returns the collected report. Ticker
// failures and worker panics are recorded per ticker, never propagated;
// cancellation stops dispatching new tickers while in-flight workers
// finish their current filing.
func (s *Supervisor) Run(ctx context.Context, tickers []string, req edgar.ListRequest) *RunReport {
	report := &RunReport{Started: time.Now(), Workers: s.workers}
	s.logger.Info("run starting",
		zap.Int("tickers", len(tickers)),
		zap.Int("workers", s.workers),
		zap.Strings("filing_types", req.FilingTypes))

	var mu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(s.workers)

	for _, ticker := range tickers {
		if ctx.Err() != nil {
			s.logger.Warn("cancelled, not dispatching remaining tickers",
				zap.String("next", ticker))
			break
		}
		g.Go(func() error {
			outcome := s.processSafely(ctx, ticker, req)
			mu.Lock()
			report.Tickers = append(report.Tickers, outcome)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	report.Finished = time.Now()
	succeeded, skipped, warned, failed := report.Counts()
	s.logger.Info("run finished",
		zap.Int("succeeded", succeeded),
		zap.Int("skipped", skipped),
		zap.Int("warned", warned),
		zap.Int("failed", failed),
		zap.Duration("took", report.Finished.Sub(report.Started)))
	return report
}

// processSafely converts a worker panic into a failed ticker outcome.
func (s *Supervisor) processSafely(ctx context.Context, ticker string, req edgar.ListRequest) (out TickerOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("worker panic", zap.String("ticker", ticker), zap.Any("panic", r))
			out = failedOutcome(ticker, errs.New(errs.KindUnknown, "panic: %v", r))
		}
	}()
	out = s.orch.ProcessTicker(ctx, ticker, req)
	if out.Failed() {
		s.logger.Warn("ticker failed", zap.String("ticker", ticker), zap.String("error", out.ErrMsg))
	}
	return out
}

// ValidateWorkers rejects out-of-range worker counts from the CLI before a
// run starts.
func ValidateWorkers(n int) error {
	if n < 1 || n > MaxWorkers {
		return errs.New(errs.KindConfig, "workers must be between 1 and %d, got %d", MaxWorkers, n)
	}
	return nil
}
