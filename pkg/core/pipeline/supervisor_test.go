package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakyragnar/NativeLLM/pkg/core/edgar"
	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

func TestNewSupervisorClampsWorkers(t *testing.T) {
	assert.Equal(t, DefaultWorkers, NewSupervisor(nil, 0).workers)
	assert.Equal(t, DefaultWorkers, NewSupervisor(nil, -2).workers)
	assert.Equal(t, 1, NewSupervisor(nil, 1).workers)
	assert.Equal(t, MaxWorkers, NewSupervisor(nil, 12).workers)
}

func TestValidateWorkers(t *testing.T) {
	assert.NoError(t, ValidateWorkers(1))
	assert.NoError(t, ValidateWorkers(5))
	assert.True(t, errs.IsKind(ValidateWorkers(0), errs.KindConfig))
	assert.True(t, errs.IsKind(ValidateWorkers(6), errs.KindConfig))
}

func TestRunCollectsAllTickers(t *testing.T) {
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
	sup := NewSupervisor(orch, 2)

	report := sup.Run(context.Background(), []string{"MSFT", "AAPL", "NVDA"}, edgar.ListRequest{})
	require.Len(t, report.Tickers, 3)
	assert.False(t, report.Finished.Before(report.Started))
	assert.Equal(t, 2, report.Workers)
}

func TestRunTickerFailureDoesNotStopBatch(t *testing.T) {
	locator := &fakeLocator{resolveErr: errs.New(errs.KindNotFound, "unknown ticker")}
	orch, _ := newTestOrchestrator(t, locator, &fakeFetcher{})
	sup := NewSupervisor(orch, 1)

	report := sup.Run(context.Background(), []string{"AAAA", "BBBB"}, edgar.ListRequest{})
	require.Len(t, report.Tickers, 2)
	for _, tk := range report.Tickers {
		assert.True(t, tk.Failed())
	}
}

func TestWriteReport(t *testing.T) {
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
	report := NewSupervisor(orch, 1).Run(context.Background(), []string{"MSFT"}, edgar.ListRequest{})

	base := t.TempDir()
	dir, err := WriteReport(base, report)
	require.NoError(t, err)

	md, err := os.ReadFile(filepath.Join(dir, "report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "| MSFT | 10-K | 2024 annual | ok |")

	html, err := os.ReadFile(filepath.Join(dir, "report.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<table>")
}
