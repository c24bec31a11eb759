package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

var accessionRe = regexp.MustCompile(`^\d{10}-\d{2}-\d{6}$`)

// FilingRef identifies one submission selected for processing.
type FilingRef struct {
	Ticker          string
	CIK             string // zero-padded 10 digits
	CompanyName     string
	AccessionNumber string // dash-formatted, e.g. "0000950170-24-087843"
	FormType        string
	FilingDate      time.Time
	PeriodEnd       time.Time
	PrimaryDocument string
	// Substituted is set when a 10-K request fell back to 20-F.
	Substituted bool
}

// ListRequest filters the submissions index.
type ListRequest struct {
	FilingTypes []string // e.g. {"10-K", "10-Q"}; empty means all
	StartYear   int      // inclusive filter on filing date year; 0 = open
	EndYear     int
	Limit       int // 0 = no limit
}

// submissionsResponse mirrors the EDGAR submissions API. Filing attributes
// arrive as parallel arrays indexed together.
type submissionsResponse struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			ReportDate      []string `json:"reportDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// ListFilings enumerates a company's filings matching req, sorted by filing
// date descending. When req asks for 10-K and none exist, the enumeration is
// retried with 20-F and each result is marked Substituted.
func (c *Client) ListFilings(ctx context.Context, ticker, cik string, req ListRequest) ([]FilingRef, error) {
	sub, err := c.fetchSubmissions(ctx, cik)
	if err != nil {
		return nil, err
	}

	refs := c.filterFilings(sub, ticker, cik, req)

	if len(refs) == 0 && contains(req.FilingTypes, "10-K") && !contains(req.FilingTypes, "20-F") {
		foreign := req
		foreign.FilingTypes = replace(req.FilingTypes, "10-K", "20-F")
		refs = c.filterFilings(sub, ticker, cik, foreign)
		for i := range refs {
			refs[i].Substituted = true
		}
		if len(refs) > 0 {
			c.logger.Info("no 10-K filings, substituting 20-F",
				zap.String("ticker", ticker), zap.Int("count", len(refs)))
		}
	}

	if len(refs) == 0 {
		return nil, errs.New(errs.KindNotFound, "no filings for %s matching %v", ticker, req.FilingTypes)
	}

	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].FilingDate.After(refs[j].FilingDate)
	})
	if req.Limit > 0 && len(refs) > req.Limit {
		refs = refs[:req.Limit]
	}
	return refs, nil
}

func (c *Client) fetchSubmissions(ctx context.Context, cik string) (*submissionsResponse, error) {
	body, err := c.fetcher.Get(ctx, fmt.Sprintf(submissionsURL, cik))
	if err != nil {
		return nil, err
	}
	var sub submissionsResponse
	if err := json.Unmarshal(body, &sub); err != nil {
		return nil, errs.Wrap(errs.KindParse, fmt.Errorf("submissions for CIK %s: %w", cik, err))
	}
	return &sub, nil
}

func (c *Client) filterFilings(sub *submissionsResponse, ticker, cik string, req ListRequest) []FilingRef {
	recent := sub.Filings.Recent
	wanted := make(map[string]bool, len(req.FilingTypes))
	for _, ft := range req.FilingTypes {
		wanted[ft] = true
	}

	// The submissions payload uses parallel arrays; a truncated response can
	// leave them unequal, so only the common prefix is trusted.
	n := len(recent.AccessionNumber)
	for _, l := range []int{len(recent.FilingDate), len(recent.ReportDate), len(recent.Form), len(recent.PrimaryDocument)} {
		if l < n {
			n = l
		}
	}
	if n < len(recent.AccessionNumber) {
		c.logger.Warn("submissions arrays have unequal lengths, using common prefix",
			zap.String("ticker", ticker), zap.Int("entries", n))
	}

	var refs []FilingRef
	for i := 0; i < n; i++ {
		form := recent.Form[i]
		if len(wanted) > 0 && !wanted[form] {
			continue
		}
		if !accessionRe.MatchString(recent.AccessionNumber[i]) {
			c.logger.Warn("dropping filing with malformed accession number",
				zap.String("ticker", ticker),
				zap.String("accession", recent.AccessionNumber[i]))
			continue
		}
		filingDate, err := time.Parse("2006-01-02", recent.FilingDate[i])
		if err != nil {
			continue
		}
		if req.StartYear > 0 && filingDate.Year() < req.StartYear {
			continue
		}
		if req.EndYear > 0 && filingDate.Year() > req.EndYear {
			continue
		}
		// Report date can be absent for some form types.
		periodEnd, _ := time.Parse("2006-01-02", recent.ReportDate[i])
		if periodEnd.After(filingDate) {
			c.logger.Warn("dropping filing with period end after filing date",
				zap.String("ticker", ticker),
				zap.String("accession", recent.AccessionNumber[i]),
				zap.Time("period_end", periodEnd),
				zap.Time("filing_date", filingDate))
			continue
		}

		refs = append(refs, FilingRef{
			Ticker:          ticker,
			CIK:             cik,
			CompanyName:     sub.Name,
			AccessionNumber: recent.AccessionNumber[i],
			FormType:        form,
			FilingDate:      filingDate,
			PeriodEnd:       periodEnd,
			PrimaryDocument: recent.PrimaryDocument[i],
		})
	}
	return refs
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func replace(list []string, old, with string) []string {
	out := make([]string, len(list))
	for i, v := range list {
		if v == old {
			out[i] = with
		} else {
			out[i] = v
		}
	}
	return out
}
