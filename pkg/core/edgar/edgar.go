// Package edgar locates filings on SEC EDGAR: ticker to CIK resolution,
// filing enumeration via the submissions API, and per-accession document
// discovery. API documentation: https://www.sec.gov/developer
package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

const (
	companyTickersURL = "https://www.sec.gov/files/company_tickers.json"
	submissionsURL    = "https://data.sec.gov/submissions/CIK%s.json"
	archiveURL        = "https://www.sec.gov/Archives/edgar/data/%s/%s"
)

// Fetcher is the transport the locator runs on. Production wiring passes
// *fetch.Client; tests pass a stub.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Client resolves tickers and enumerates filings. The ticker map is fetched
// once and cached for the life of the process.
type Client struct {
	fetcher Fetcher
	logger  *zap.Logger

	mu      sync.RWMutex
	tickers map[string]tickerEntry // upper-case ticker -> entry
}

type tickerEntry struct {
	CIK   int    `json:"cik_str"`
	Tick  string `json:"ticker"`
	Title string `json:"title"`
}

// NewClient creates a locator backed by the given fetcher.
func NewClient(fetcher Fetcher) *Client {
	return &Client{
		fetcher: fetcher,
		logger:  zap.L().Named("edgar"),
	}
}

// ResolveCIK maps a ticker symbol to its zero-padded 10-digit CIK.
// The company title is returned alongside for artifact headers.
func (c *Client) ResolveCIK(ctx context.Context, ticker string) (cik, title string, err error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return "", "", errs.New(errs.KindNotFound, "empty ticker")
	}

	c.mu.RLock()
	entry, ok := c.tickers[ticker]
	c.mu.RUnlock()
	if !ok {
		if err := c.loadTickerMap(ctx); err != nil {
			return "", "", err
		}
		c.mu.RLock()
		entry, ok = c.tickers[ticker]
		c.mu.RUnlock()
	}
	if !ok {
		return "", "", errs.New(errs.KindNotFound, "ticker %s not in SEC company list", ticker)
	}
	return fmt.Sprintf("%010d", entry.CIK), entry.Title, nil
}

func (c *Client) loadTickerMap(ctx context.Context) error {
	body, err := c.fetcher.Get(ctx, companyTickersURL)
	if err != nil {
		return err
	}

	// Response shape: { "0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}, ... }
	var raw map[string]tickerEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return errs.Wrap(errs.KindParse, fmt.Errorf("company tickers: %w", err))
	}

	byTicker := make(map[string]tickerEntry, len(raw))
	for _, e := range raw {
		byTicker[strings.ToUpper(e.Tick)] = e
	}

	c.mu.Lock()
	c.tickers = byTicker
	c.mu.Unlock()
	c.logger.Debug("loaded ticker map", zap.Int("entries", len(byTicker)))
	return nil
}

// archivePath builds an EDGAR archive URL for a file inside an accession.
// CIK loses its leading zeros; the accession loses its dashes.
func archivePath(cik, accession, file string) string {
	cikTrim := strings.TrimLeft(cik, "0")
	accFlat := strings.ReplaceAll(accession, "-", "")
	return fmt.Sprintf(archiveURL, cikTrim, accFlat+"/"+file)
}

// StripViewerURL rewrites an inline-XBRL viewer link (".../ix?doc=/Archives/...")
// to the underlying document URL.
func StripViewerURL(url string) string {
	if i := strings.Index(url, "ix?doc="); i >= 0 {
		doc := url[i+len("ix?doc="):]
		if strings.HasPrefix(doc, "/") {
			return "https://www.sec.gov" + doc
		}
		return doc
	}
	return url
}
