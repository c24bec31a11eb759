package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakyragnar/NativeLLM/pkg/core/edgar"
	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
	"github.com/peakyragnar/NativeLLM/pkg/core/fiscal"
	"github.com/peakyragnar/NativeLLM/pkg/core/storage"
)

// --- Fakes ---

const fakePrimaryURL = "https://www.sec.gov/Archives/edgar/data/789019/000095017024087843/msft-20240630.htm"
const fakeInstanceURL = "https://www.sec.gov/Archives/edgar/data/789019/000095017024087843/msft-20240630_htm.xml"

type fakeLocator struct {
	refs       []edgar.FilingRef
	docs       map[string]*edgar.FilingDocuments // keyed by accession
	resolveErr error
	listErr    error
}

func (f *fakeLocator) ResolveCIK(_ context.Context, ticker string) (string, string, error) {
	if f.resolveErr != nil {
		return "", "", f.resolveErr
	}
	return "0000789019", "MICROSOFT CORP", nil
}

func (f *fakeLocator) ListFilings(_ context.Context, ticker, cik string, _ edgar.ListRequest) ([]edgar.FilingRef, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.refs, nil
}

func (f *fakeLocator) DiscoverDocuments(_ context.Context, ref edgar.FilingRef) (*edgar.FilingDocuments, error) {
	docs, ok := f.docs[ref.AccessionNumber]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "no documents for %s", ref.AccessionNumber)
	}
	return docs, nil
}

type fakeFetcher struct {
	responses map[string][]byte
	calls     int
}

func (f *fakeFetcher) Get(_ context.Context, url string) ([]byte, error) {
	f.calls++
	if body, ok := f.responses[url]; ok {
		return body, nil
	}
	return nil, errs.New(errs.KindNotFound, "GET %s: 404", url)
}

const fakeInstance = `<?xml version="1.0"?>
<xbrl xmlns:xbrli="http://www.xbrl.org/2003/instance"
      xmlns:us-gaap="http://fasb.org/us-gaap/2024"
      xmlns:iso4217="http://www.xbrl.org/2003/iso4217">
  <xbrli:context id="FY24">
    <xbrli:entity><xbrli:identifier scheme="http://www.sec.gov/CIK">0000789019</xbrli:identifier></xbrli:entity>
    <xbrli:period>
      <xbrli:startDate>2023-07-01</xbrli:startDate>
      <xbrli:endDate>2024-06-30</xbrli:endDate>
    </xbrli:period>
  </xbrli:context>
  <xbrli:unit id="usd"><xbrli:measure>iso4217:USD</xbrli:measure></xbrli:unit>
  <us-gaap:Revenues contextRef="FY24" unitRef="usd" decimals="-6">245122000000</us-gaap:Revenues>
</xbrl>`

const fakeHTML = `<html><body>
<div>PART I</div>
<div>Item 1. Business</div>
<p>We develop software.</p>
</body></html>`

func msftRef() edgar.FilingRef {
	return edgar.FilingRef{
		Ticker:          "MSFT",
		CIK:             "0000789019",
		CompanyName:     "MICROSOFT CORP",
		AccessionNumber: "0000950170-24-087843",
		FormType:        "10-K",
		FilingDate:      time.Date(2024, 7, 30, 0, 0, 0, 0, time.UTC),
		PeriodEnd:       time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		PrimaryDocument: "msft-20240630.htm",
	}
}

func newTestOrchestrator(t *testing.T, locator *fakeLocator, fetcher *fakeFetcher) (*Orchestrator, storage.Sink) {
	t.Helper()
	sink, err := storage.NewLocalSink(t.TempDir())
	require.NoError(t, err)
	orch := NewOrchestrator(locator, fetcher, fiscal.NewAttributor(fiscal.NewRegistry()), sink)
	return orch, sink
}

func TestProcessTickerEndToEnd(t *testing.T) {
	ref := msftRef()
	locator := &fakeLocator{
		refs: []edgar.FilingRef{ref},
		docs: map[string]*edgar.FilingDocuments{
			ref.AccessionNumber: {PrimaryHTMLURL: fakePrimaryURL, InstanceURL: fakeInstanceURL},
		},
	}
	fetcher := &fakeFetcher{responses: map[string][]byte{
		fakePrimaryURL:  []byte(fakeHTML),
		fakeInstanceURL: []byte(fakeInstance),
	}}
	orch, sink := newTestOrchestrator(t, locator, fetcher)

	out := orch.ProcessTicker(context.Background(), "MSFT", edgar.ListRequest{FilingTypes: []string{"10-K"}})
	require.False(t, out.Failed())
	require.Len(t, out.Filings, 1)

	f := out.Filings[0]
	assert.True(t, f.Success)
	assert.Equal(t, 2024, f.FiscalYear)
	assert.Equal(t, "annual", f.FiscalPeriod)
	assert.Equal(t, "registry", f.FiscalSource)
	assert.Equal(t, 1, f.FactCount)
	assert.Equal(t, "traditional-xbrl", f.SourceFormat)
	assert.Equal(t, []string{
		"companies/MSFT/10-K/2024/annual/text.txt",
		"companies/MSFT/10-K/2024/annual/llm.txt",
	}, f.ArtifactPaths)

	for _, p := range f.ArtifactPaths {
		ok, err := sink.Exists(context.Background(), p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
}

func TestProcessTickerRerunSkipsViaExistenceCheck(t *testing.T) {
	ref := msftRef()
	locator := &fakeLocator{
		refs: []edgar.FilingRef{ref},
		docs: map[string]*edgar.FilingDocuments{
			ref.AccessionNumber: {PrimaryHTMLURL: fakePrimaryURL, InstanceURL: fakeInstanceURL},
		},
	}
	fetcher := &fakeFetcher{responses: map[string][]byte{
		fakePrimaryURL:  []byte(fakeHTML),
		fakeInstanceURL: []byte(fakeInstance),
	}}
	orch, _ := newTestOrchestrator(t, locator, fetcher)

	first := orch.ProcessTicker(context.Background(), "MSFT", edgar.ListRequest{})
	require.True(t, first.Filings[0].Success)
	fetchesAfterFirst := fetcher.calls

	second := orch.ProcessTicker(context.Background(), "MSFT", edgar.ListRequest{})
	require.Len(t, second.Filings, 1)
	assert.True(t, second.Filings[0].Skipped)
	assert.True(t, second.Filings[0].Success)
	// Registry pre-attribution answered, so the rerun touched EDGAR not at all.
	assert.Equal(t, fetchesAfterFirst, fetcher.calls)
}

func TestProcessTickerFilingFailureDoesNotAbortTicker(t *testing.T) {
	good := msftRef()
	bad := msftRef()
	bad.AccessionNumber = "0000950170-23-000001"
	bad.PeriodEnd = time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)

	locator := &fakeLocator{
		refs: []edgar.FilingRef{bad, good},
		docs: map[string]*edgar.FilingDocuments{
			good.AccessionNumber: {PrimaryHTMLURL: fakePrimaryURL, InstanceURL: fakeInstanceURL},
			// bad accession has no documents: NotFound
		},
	}
	fetcher := &fakeFetcher{responses: map[string][]byte{
		fakePrimaryURL:  []byte(fakeHTML),
		fakeInstanceURL: []byte(fakeInstance),
	}}
	orch, _ := newTestOrchestrator(t, locator, fetcher)

	out := orch.ProcessTicker(context.Background(), "MSFT", edgar.ListRequest{})
	require.Len(t, out.Filings, 2)
	assert.False(t, out.Filings[0].Success)
	assert.Equal(t, errs.KindNotFound, out.Filings[0].ErrKind)
	assert.True(t, out.Filings[1].Success)
}

func TestProcessTickerResolveFailureFailsTicker(t *testing.T) {
	locator := &fakeLocator{resolveErr: errs.New(errs.KindNotFound, "ticker ZZZZ not in SEC company list")}
	orch, _ := newTestOrchestrator(t, locator, &fakeFetcher{})

	out := orch.ProcessTicker(context.Background(), "ZZZZ", edgar.ListRequest{})
	assert.True(t, out.Failed())
	assert.Equal(t, errs.KindNotFound, out.ErrKind)
}

func TestProcessFilingTextOnlyStillProducesArtifacts(t *testing.T) {
	ref := msftRef()
	locator := &fakeLocator{
		refs: []edgar.FilingRef{ref},
		docs: map[string]*edgar.FilingDocuments{
			ref.AccessionNumber: {PrimaryHTMLURL: fakePrimaryURL}, // no instance
		},
	}
	fetcher := &fakeFetcher{responses: map[string][]byte{
		fakePrimaryURL: []byte(fakeHTML),
	}}
	orch, sink := newTestOrchestrator(t, locator, fetcher)

	out := orch.ProcessTicker(context.Background(), "MSFT", edgar.ListRequest{})
	require.Len(t, out.Filings, 1)
	f := out.Filings[0]
	assert.True(t, f.Success)
	assert.Equal(t, 0, f.FactCount)
	assert.Equal(t, "text-only", f.SourceFormat)

	ok, err := sink.Exists(context.Background(), "companies/MSFT/10-K/2024/annual/llm.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProcessFilingSubstitutionSurfacesInOutcome(t *testing.T) {
	ref := msftRef()
	ref.Ticker = "TM"
	ref.FormType = "20-F"
	ref.Substituted = true
	ref.PeriodEnd = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	locator := &fakeLocator{
		refs: []edgar.FilingRef{ref},
		docs: map[string]*edgar.FilingDocuments{
			ref.AccessionNumber: {PrimaryHTMLURL: fakePrimaryURL},
		},
	}
	fetcher := &fakeFetcher{responses: map[string][]byte{
		fakePrimaryURL: []byte(fakeHTML),
	}}
	orch, _ := newTestOrchestrator(t, locator, fetcher)

	out := orch.ProcessTicker(context.Background(), "TM", edgar.ListRequest{FilingTypes: []string{"10-K"}})
	require.Len(t, out.Filings, 1)
	f := out.Filings[0]
	assert.True(t, f.Substituted)
	assert.Equal(t, "20-F", f.FormType)
	assert.Equal(t, "annual", f.FiscalPeriod)
	assert.True(t, strings.Contains(f.ArtifactPaths[0], "companies/TM/20-F/2024/annual/"))
}

func TestProcessFilingWithoutPeriodEndFails(t *testing.T) {
	ref := msftRef()
	ref.Ticker = "ZZZT" // not in the fiscal registry
	ref.PeriodEnd = time.Time{}

	locator := &fakeLocator{
		refs: []edgar.FilingRef{ref},
		docs: map[string]*edgar.FilingDocuments{
			ref.AccessionNumber: {PrimaryHTMLURL: fakePrimaryURL}, // no instance, no dei evidence
		},
	}
	fetcher := &fakeFetcher{responses: map[string][]byte{
		fakePrimaryURL: []byte(fakeHTML),
	}}
	orch, sink := newTestOrchestrator(t, locator, fetcher)

	out := orch.ProcessTicker(context.Background(), "ZZZT", edgar.ListRequest{})
	require.Len(t, out.Filings, 1)
	f := out.Filings[0]
	assert.False(t, f.Success)
	assert.Equal(t, errs.KindParse, f.ErrKind)
	assert.Empty(t, f.ArtifactPaths)

	// Nothing lands under a year-zero path.
	ok, err := sink.Exists(context.Background(), "companies/ZZZT/10-K/0/annual/llm.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProcessTickerCancellationSkipsRemaining(t *testing.T) {
	refs := []edgar.FilingRef{msftRef(), msftRef(), msftRef()}
	locator := &fakeLocator{refs: refs, docs: map[string]*edgar.FilingDocuments{}}
	orch, _ := newTestOrchestrator(t, locator, &fakeFetcher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := orch.ProcessTicker(ctx, "MSFT", edgar.ListRequest{})
	assert.Empty(t, out.Filings)
}
