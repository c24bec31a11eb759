package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/peakyragnar/NativeLLM/pkg/core/edgar"
	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
	"github.com/peakyragnar/NativeLLM/pkg/core/fiscal"
	"github.com/peakyragnar/NativeLLM/pkg/core/llmfmt"
	"github.com/peakyragnar/NativeLLM/pkg/core/storage"
	"github.com/peakyragnar/NativeLLM/pkg/core/text"
	"github.com/peakyragnar/NativeLLM/pkg/core/xbrl"
)

// DefaultFilingTimeout bounds one filing's end-to-end processing.
const DefaultFilingTimeout = 5 * time.Minute

// Locator is the slice of the EDGAR client the orchestrator uses.
type Locator interface {
	ResolveCIK(ctx context.Context, ticker string) (cik, title string, err error)
	ListFilings(ctx context.Context, ticker, cik string, req edgar.ListRequest) ([]edgar.FilingRef, error)
	DiscoverDocuments(ctx context.Context, ref edgar.FilingRef) (*edgar.FilingDocuments, error)
}

// Orchestrator runs the per-filing sequence: discover, fetch, parse,
// attribute, serialize, commit.
type Orchestrator struct {
	locator   Locator
	fetcher   edgar.Fetcher
	attrib    *fiscal.Attributor
	extractor *text.Extractor
	sink      storage.Sink
	pg        *storage.PGMetadata // optional SQL mirror, may be nil
	logger    *zap.Logger

	// FilingTimeout overrides DefaultFilingTimeout when positive.
	FilingTimeout time.Duration
}

func NewOrchestrator(locator Locator, fetcher edgar.Fetcher, attrib *fiscal.Attributor, sink storage.Sink) *Orchestrator {
	return &Orchestrator{
		locator:   locator,
		fetcher:   fetcher,
		attrib:    attrib,
		extractor: &text.Extractor{},
		sink:      sink,
		logger:    zap.L().Named("pipeline"),
	}
}

// WithPGMetadata attaches the optional Postgres metadata mirror.
func (o *Orchestrator) WithPGMetadata(pg *storage.PGMetadata) *Orchestrator {
	o.pg = pg
	return o
}

// ProcessTicker runs every matching filing for one ticker. Filing failures
// are recorded in their outcomes; only pre-enumeration failures (CIK
// resolution, filing listing) fail the ticker as a whole.
func (o *Orchestrator) ProcessTicker(ctx context.Context, ticker string, req edgar.ListRequest) TickerOutcome {
	cik, company, err := o.locator.ResolveCIK(ctx, ticker)
	if err != nil {
		o.logger.Error("CIK resolution failed", zap.String("ticker", ticker), zap.Error(err))
		return failedOutcome(ticker, err)
	}

	refs, err := o.locator.ListFilings(ctx, ticker, cik, req)
	if err != nil {
		o.logger.Error("filing enumeration failed", zap.String("ticker", ticker), zap.Error(err))
		return failedOutcome(ticker, err)
	}

	out := TickerOutcome{Ticker: ticker}
	for _, ref := range refs {
		if ctx.Err() != nil {
			// Cancellation: skip remaining filings, keep what finished.
			break
		}
		out.Filings = append(out.Filings, o.processFiling(ctx, ref, company))
	}
	return out
}

func (o *Orchestrator) processFiling(parent context.Context, ref edgar.FilingRef, company string) FilingOutcome {
	timeout := o.FilingTimeout
	if timeout <= 0 {
		timeout = DefaultFilingTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	started := time.Now()
	out := FilingOutcome{
		Ticker:          ref.Ticker,
		FormType:        ref.FormType,
		AccessionNumber: ref.AccessionNumber,
		PeriodEnd:       ref.PeriodEnd,
		Substituted:     ref.Substituted,
	}
	fail := func(err error) FilingOutcome {
		out.ErrKind = errs.KindOf(err)
		out.ErrMsg = err.Error()
		out.Duration = time.Since(started)
		o.logger.Error("filing failed",
			zap.String("ticker", ref.Ticker),
			zap.String("accession", ref.AccessionNumber),
			zap.String("kind", string(out.ErrKind)),
			zap.Error(err))
		return out
	}

	// Registry-backed attribution needs no facts; when it answers, an
	// existence check can skip the fetches entirely.
	if preAttr, warn := o.attrib.Attribute(ref.Ticker, ref.FormType, ref.PeriodEnd, nil); warn == nil && preAttr.Source == fiscal.SourceRegistry {
		if stored, paths := o.alreadyStored(ctx, ref, preAttr); stored {
			o.recordAttribution(&out, preAttr, nil)
			out.Skipped = true
			out.Success = true
			out.ArtifactPaths = paths
			out.Duration = time.Since(started)
			return out
		}
	}

	docs, err := o.locator.DiscoverDocuments(ctx, ref)
	if err != nil {
		return fail(err)
	}

	primaryHTML, err := o.fetcher.Get(ctx, edgar.StripViewerURL(docs.PrimaryHTMLURL))
	if err != nil {
		return fail(err)
	}

	var instance []byte
	if docs.InstanceURL != "" {
		instance, err = o.fetcher.Get(ctx, docs.InstanceURL)
		if err != nil {
			// The HTML may still carry inline tags; note it and move on.
			out.Warnings = append(out.Warnings, "instance fetch failed: "+err.Error())
			instance = nil
		}
	}

	strategies := xbrl.Detect(primaryHTML, len(instance) > 0)
	table, err := xbrl.ParseWithFallback(strategies, instance, primaryHTML)
	if err != nil {
		// All fact strategies refused; continue with a text-only table so
		// the text artifact still lands.
		out.Warnings = append(out.Warnings, "fact extraction failed: "+err.Error())
		table = xbrl.NewFactTable(xbrl.SourceTextOnly)
	}
	out.FactCount = len(table.Facts)
	out.SourceFormat = table.Source.String()

	if v, ok := table.FactValue("dei:DocumentPeriodEndDate"); ok && !ref.PeriodEnd.IsZero() {
		if d, perr := time.Parse("2006-01-02", strings.TrimSpace(v)); perr == nil && !d.Equal(ref.PeriodEnd) {
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"instance period end %s disagrees with submissions index %s",
				d.Format("2006-01-02"), ref.PeriodEnd.Format("2006-01-02")))
		}
	}

	textBody, err := o.extractor.Extract(primaryHTML, ref.FormType)
	if err != nil {
		return fail(err)
	}

	attr, warn := o.attrib.Attribute(ref.Ticker, ref.FormType, ref.PeriodEnd, table)
	if warn != nil && !errs.IsKind(warn, errs.KindFiscalAmbiguous) {
		// Not a warning: no fiscal year could be determined, and committing
		// under a year-zero path would corrupt the artifact layout.
		return fail(warn)
	}
	o.recordAttribution(&out, attr, warn)

	llmBody, err := llmfmt.Serialize(llmfmt.Document{
		Ticker:      ref.Ticker,
		CompanyName: company,
		CIK:         ref.CIK,
		FormType:    ref.FormType,
		FilingDate:  ref.FilingDate,
		PeriodEnd:   ref.PeriodEnd,
		Attribution: attr,
		Table:       table,
	})
	if err != nil {
		return fail(err)
	}

	paths, err := o.commit(ctx, ref, attr, textBody, llmBody, table)
	if err != nil {
		return fail(err)
	}

	out.ArtifactPaths = paths
	out.Success = true
	out.Duration = time.Since(started)
	o.logger.Info("filing processed",
		zap.String("ticker", ref.Ticker),
		zap.String("form", ref.FormType),
		zap.Int("fiscal_year", attr.Year),
		zap.String("fiscal_period", attr.Period),
		zap.Int("facts", out.FactCount),
		zap.Duration("took", out.Duration))
	return out
}

func (o *Orchestrator) recordAttribution(out *FilingOutcome, attr fiscal.Attribution, warn error) {
	out.FiscalYear = attr.Year
	out.FiscalPeriod = attr.Period
	out.FiscalSource = attr.Source
	out.Confidence = attr.Confidence
	if warn != nil {
		out.Warnings = append(out.Warnings, warn.Error())
	}
}

// alreadyStored reports whether both artifacts for this attribution exist.
func (o *Orchestrator) alreadyStored(ctx context.Context, ref edgar.FilingRef, attr fiscal.Attribution) (bool, []string) {
	textPath := storage.ArtifactPath(ref.Ticker, ref.FormType, attr, storage.KindText)
	llmPath := storage.ArtifactPath(ref.Ticker, ref.FormType, attr, storage.KindLLM)
	for _, p := range []string{textPath, llmPath} {
		ok, err := o.sink.Exists(ctx, p)
		if err != nil || !ok {
			return false, nil
		}
	}
	o.logger.Info("artifacts already in sink, skipping",
		zap.String("ticker", ref.Ticker), zap.String("path", llmPath))
	return true, []string{textPath, llmPath}
}

// commit writes both artifacts and the metadata record. Existing artifacts
// are left untouched so reruns are no-ops at the sink.
func (o *Orchestrator) commit(ctx context.Context, ref edgar.FilingRef, attr fiscal.Attribution, textBody, llmBody string, table *xbrl.FactTable) ([]string, error) {
	textPath := storage.ArtifactPath(ref.Ticker, ref.FormType, attr, storage.KindText)
	llmPath := storage.ArtifactPath(ref.Ticker, ref.FormType, attr, storage.KindLLM)

	for _, a := range []struct {
		path string
		body string
	}{{textPath, textBody}, {llmPath, llmBody}} {
		exists, err := o.sink.Exists(ctx, a.path)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		if err := o.sink.Put(ctx, a.path, []byte(a.body)); err != nil {
			return nil, err
		}
	}

	filingID := storage.FilingID(ref.Ticker, ref.FormType, attr)
	meta := map[string]any{
		"ticker":        ref.Ticker,
		"company_name":  ref.CompanyName,
		"cik":           ref.CIK,
		"filing_type":   ref.FormType,
		"accession":     ref.AccessionNumber,
		"filing_date":   ref.FilingDate.Format("2006-01-02"),
		"period_end":    ref.PeriodEnd.Format("2006-01-02"),
		"fiscal_year":   attr.Year,
		"fiscal_period": attr.Period,
		"fiscal_source": attr.Source,
		"confidence":    attr.Confidence,
		"text_path":     textPath,
		"llm_path":      llmPath,
		"fact_count":    len(table.Facts),
		"source_format": table.Source.String(),
		"substituted":   ref.Substituted,
	}
	if err := o.sink.RecordMetadata(ctx, filingID, meta); err != nil {
		return nil, err
	}

	if o.pg != nil {
		err := o.pg.Upsert(ctx, storage.FilingRecord{
			FilingID:     filingID,
			Ticker:       ref.Ticker,
			FilingType:   ref.FormType,
			FiscalYear:   attr.Year,
			FiscalPeriod: attr.Period,
			Accession:    ref.AccessionNumber,
			TextPath:     textPath,
			LLMPath:      llmPath,
			FactCount:    len(table.Facts),
			SourceFormat: table.Source.String(),
		})
		if err != nil {
			return nil, err
		}
	}

	return []string{textPath, llmPath}, nil
}
