package edgar

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

// stubFetcher serves canned bodies by URL.
type stubFetcher struct {
	responses map[string][]byte
	calls     []string
}

func (s *stubFetcher) Get(_ context.Context, url string) ([]byte, error) {
	s.calls = append(s.calls, url)
	if body, ok := s.responses[url]; ok {
		return body, nil
	}
	return nil, errs.New(errs.KindNotFound, "GET %s: 404", url)
}

const tickersJSON = `{
  "0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
  "1": {"cik_str": 789019, "ticker": "MSFT", "title": "MICROSOFT CORP"},
  "2": {"cik_str": 1094517, "ticker": "TM", "title": "TOYOTA MOTOR CORP"}
}`

func TestResolveCIK(t *testing.T) {
	stub := &stubFetcher{responses: map[string][]byte{
		companyTickersURL: []byte(tickersJSON),
	}}
	c := NewClient(stub)

	cik, title, err := c.ResolveCIK(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", cik)
	assert.Equal(t, "Apple Inc.", title)

	// Second lookup reuses the cached map.
	_, _, err = c.ResolveCIK(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Len(t, stub.calls, 1)

	_, _, err = c.ResolveCIK(context.Background(), "ZZZZ")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func submissionsJSON(forms ...string) []byte {
	var accs, dates, reports, docs, quoted string
	for i, f := range forms {
		if i > 0 {
			accs, dates, reports, docs, quoted = accs+",", dates+",", reports+",", docs+",", quoted+","
		}
		accs += fmt.Sprintf("%q", fmt.Sprintf("0000320193-2%d-0000%02d", i, i+1))
		dates += fmt.Sprintf("%q", fmt.Sprintf("202%d-02-0%d", i%4, i%9+1))
		reports += fmt.Sprintf("%q", fmt.Sprintf("201%d-12-31", i%4))
		docs += fmt.Sprintf("%q", fmt.Sprintf("doc%d.htm", i))
		quoted += fmt.Sprintf("%q", f)
	}
	forms2 := quoted
	return []byte(fmt.Sprintf(`{
	  "cik": "320193", "name": "Apple Inc.",
	  "filings": {"recent": {
	    "accessionNumber": [%s],
	    "filingDate": [%s],
	    "reportDate": [%s],
	    "form": [%s],
	    "primaryDocument": [%s]
	  }}}`, accs, dates, reports, forms2, docs))
}

func TestListFilingsFiltersAndSorts(t *testing.T) {
	stub := &stubFetcher{responses: map[string][]byte{
		fmt.Sprintf(submissionsURL, "0000320193"): submissionsJSON("10-Q", "10-K", "8-K", "10-Q"),
	}}
	c := NewClient(stub)

	refs, err := c.ListFilings(context.Background(), "AAPL", "0000320193", ListRequest{
		FilingTypes: []string{"10-Q"},
	})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	for _, r := range refs {
		assert.Equal(t, "10-Q", r.FormType)
		assert.False(t, r.Substituted)
	}
	// Descending by filing date.
	assert.True(t, refs[0].FilingDate.After(refs[1].FilingDate))
}

func TestListFilingsDropsInvalidEntries(t *testing.T) {
	body := []byte(`{
	  "cik": "320193", "name": "Apple Inc.",
	  "filings": {"recent": {
	    "accessionNumber": ["0000320193-24-000001", "bogus-accession", "0000320193-24-000003"],
	    "filingDate": ["2024-02-01", "2024-02-02", "2024-02-03"],
	    "reportDate": ["2023-12-30", "2023-12-30", "2024-06-30"],
	    "form": ["10-Q", "10-Q", "10-Q"],
	    "primaryDocument": ["a.htm", "b.htm", "c.htm"]
	  }}}`)
	stub := &stubFetcher{responses: map[string][]byte{
		fmt.Sprintf(submissionsURL, "0000320193"): body,
	}}
	c := NewClient(stub)

	// Second entry has a malformed accession, third a period end after the
	// filing date; only the first survives.
	refs, err := c.ListFilings(context.Background(), "AAPL", "0000320193", ListRequest{})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "0000320193-24-000001", refs[0].AccessionNumber)
}

func TestListFilingsTruncatedArraysDoNotPanic(t *testing.T) {
	// The form array is one entry short of the accession array.
	body := []byte(`{
	  "cik": "320193", "name": "Apple Inc.",
	  "filings": {"recent": {
	    "accessionNumber": ["0000320193-24-000001", "0000320193-24-000002", "0000320193-24-000003"],
	    "filingDate": ["2024-02-01", "2024-05-01", "2024-08-01"],
	    "reportDate": ["2023-12-30", "2024-03-30", "2024-06-29"],
	    "form": ["10-Q", "10-Q"],
	    "primaryDocument": ["a.htm", "b.htm"]
	  }}}`)
	stub := &stubFetcher{responses: map[string][]byte{
		fmt.Sprintf(submissionsURL, "0000320193"): body,
	}}
	c := NewClient(stub)

	refs, err := c.ListFilings(context.Background(), "AAPL", "0000320193", ListRequest{})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "0000320193-24-000002", refs[0].AccessionNumber)
}

func TestListFilingsSubstitutes20F(t *testing.T) {
	stub := &stubFetcher{responses: map[string][]byte{
		fmt.Sprintf(submissionsURL, "0001094517"): submissionsJSON("20-F", "6-K"),
	}}
	c := NewClient(stub)

	refs, err := c.ListFilings(context.Background(), "TM", "0001094517", ListRequest{
		FilingTypes: []string{"10-K"},
	})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "20-F", refs[0].FormType)
	assert.True(t, refs[0].Substituted)
}

func TestListFilingsEmptyIsNotFound(t *testing.T) {
	stub := &stubFetcher{responses: map[string][]byte{
		fmt.Sprintf(submissionsURL, "0000320193"): submissionsJSON("8-K"),
	}}
	c := NewClient(stub)

	_, err := c.ListFilings(context.Background(), "AAPL", "0000320193", ListRequest{
		FilingTypes: []string{"10-Q"},
	})
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestStripViewerURL(t *testing.T) {
	assert.Equal(t,
		"https://www.sec.gov/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm",
		StripViewerURL("https://www.sec.gov/ix?doc=/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm"))
	assert.Equal(t, "https://example.org/plain.htm", StripViewerURL("https://example.org/plain.htm"))
}
