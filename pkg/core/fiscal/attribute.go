package fiscal

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
	"github.com/peakyragnar/NativeLLM/pkg/core/xbrl"
)

// Attribution is the fiscal placement of one filing.
type Attribution struct {
	Year       int
	Period     string // annual, Q1, Q2, Q3
	Source     string // registry, filing-evidence, derived
	Confidence float64
}

// PathSegment returns the period folder used in artifact paths.
func (a Attribution) PathSegment() string { return a.Period }

// Attributor computes attributions against a shared read-mostly registry.
type Attributor struct {
	registry *Registry
	logger   *zap.Logger
}

func NewAttributor(registry *Registry) *Attributor {
	return &Attributor{registry: registry, logger: zap.L().Named("fiscal")}
}

// annualForm reports whether the form type is an annual report.
func annualForm(formType string) bool {
	return formType == "10-K" || formType == "20-F"
}

// Attribute determines (fiscal_year, fiscal_period) for a filing. facts may
// be nil when no XBRL layer was found. A FiscalAmbiguous error is a warning:
// attribution proceeded with reduced confidence. A Parse-kind error means no
// fiscal year could be determined at all and the filing must not be stored.
func (a *Attributor) Attribute(ticker, formType string, periodEnd time.Time, facts *xbrl.FactTable) (Attribution, error) {
	attr, warn := a.attribute(ticker, formType, periodEnd, facts)

	// Annual forms are annual regardless of any contrary evidence.
	if annualForm(formType) && attr.Period != PeriodAnnual {
		a.logger.Warn("overriding period for annual form",
			zap.String("ticker", ticker),
			zap.String("form", formType),
			zap.String("evidence_period", attr.Period))
		attr.Period = PeriodAnnual
	}
	return attr, warn
}

func (a *Attributor) attribute(ticker, formType string, periodEnd time.Time, facts *xbrl.FactTable) (Attribution, error) {
	ticker = strings.ToUpper(ticker)

	if pattern, ok := a.registry.Lookup(ticker); ok {
		if attr, ok := fromKnownDate(pattern, periodEnd); ok {
			return attr, nil
		}
		if !periodEnd.IsZero() {
			return fromCalendar(pattern.FYEMonth, periodEnd, SourceRegistry, 0.95), nil
		}
	}

	if attr, warn, ok := a.fromEvidence(ticker, formType, periodEnd, facts); ok {
		return attr, warn
	}

	if fye, ok := a.registry.LearnedFYE(ticker); ok && !periodEnd.IsZero() {
		return fromCalendar(fye, periodEnd, SourceDerived, 0.8), nil
	}

	return a.fallback(ticker, formType, periodEnd)
}

// fromKnownDate checks the pinned period-end table.
func fromKnownDate(pattern CompanyPattern, periodEnd time.Time) (Attribution, bool) {
	if len(pattern.Known) == 0 || periodEnd.IsZero() {
		return Attribution{}, false
	}
	kp, ok := pattern.Known[periodEnd.Format("2006-01-02")]
	if !ok {
		return Attribution{}, false
	}
	return Attribution{Year: kp.Year, Period: kp.Period, Source: SourceRegistry, Confidence: 1.0}, true
}

// fromCalendar buckets the period end by month offset from the fiscal year
// end, with one month of tolerance for week-based calendars. The fiscal
// year is the calendar year in which the fiscal year ends.
func fromCalendar(fye time.Month, periodEnd time.Time, source string, confidence float64) Attribution {
	month := periodEnd.Month()
	offset := (int(month) - int(fye) + 12) % 12

	var period string
	switch {
	case offset <= 1 || offset == 11:
		period = PeriodAnnual
	case offset <= 4:
		period = PeriodQ1
	case offset <= 7:
		period = PeriodQ2
	default:
		period = PeriodQ3
	}

	var year int
	if offset == 1 {
		// A week-based fiscal year that ran a few days past the FYE month;
		// the fiscal year ended last month.
		year = periodEnd.AddDate(0, -1, 0).Year()
	} else {
		monthsToFYE := (int(fye) - int(month) + 12) % 12
		year = periodEnd.Year()
		if int(month)+monthsToFYE > 12 {
			year++
		}
	}
	return Attribution{Year: year, Period: period, Source: source, Confidence: confidence}
}

// fromEvidence reads dei facts out of the XBRL layer. Explicit focus facts
// are authoritative; a Q4 focus is folded into annual since the system
// never emits Q4.
func (a *Attributor) fromEvidence(ticker, formType string, periodEnd time.Time, facts *xbrl.FactTable) (Attribution, error, bool) {
	if facts == nil {
		return Attribution{}, nil, false
	}
	focus, hasFocus := facts.FactValue("dei:DocumentFiscalPeriodFocus")
	yearFocus, hasYear := facts.FactValue("dei:DocumentFiscalYearFocus")
	if !hasFocus && !hasYear {
		return Attribution{}, nil, false
	}

	attr := Attribution{Source: SourceEvidence, Confidence: 1.0}
	var warn error

	switch strings.ToUpper(strings.TrimSpace(focus)) {
	case "FY":
		attr.Period = PeriodAnnual
	case "Q1":
		attr.Period = PeriodQ1
	case "Q2":
		attr.Period = PeriodQ2
	case "Q3":
		attr.Period = PeriodQ3
	case "Q4":
		attr.Period = PeriodAnnual
		attr.Confidence = 0.7
		warn = errs.New(errs.KindFiscalAmbiguous, "%s: dei period focus Q4 folded into annual", ticker)
	default:
		if annualForm(formType) {
			attr.Period = PeriodAnnual
		} else {
			attr.Period = fromCalendar(time.December, periodEnd, SourceEvidence, 0).Period
		}
		attr.Confidence = 0.7
		warn = errs.New(errs.KindFiscalAmbiguous, "%s: unrecognized dei period focus %q", ticker, focus)
	}

	if y, err := strconv.Atoi(strings.TrimSpace(yearFocus)); err == nil && y > 1900 {
		attr.Year = y
	} else if !periodEnd.IsZero() {
		attr.Year = periodEnd.Year()
		if attr.Confidence == 1.0 {
			attr.Confidence = 0.9
		}
	}
	if attr.Year == 0 {
		return Attribution{}, errs.New(errs.KindParse,
			"%s: fiscal year unresolved from filing evidence", ticker), true
	}

	// The evidence pins the fiscal year end; remember it for this filer's
	// other filings that lack dei facts.
	if attr.Period == PeriodAnnual && !periodEnd.IsZero() {
		a.registry.Observe(ticker, periodEnd.Month())
	}
	return attr, warn, true
}

// fallback classifies against a December fiscal year when nothing better is
// available. Without a period end there is no year to attribute to, and a
// zero year would leak into the artifact path, so that case is a failure.
func (a *Attributor) fallback(ticker, formType string, periodEnd time.Time) (Attribution, error) {
	if periodEnd.IsZero() {
		return Attribution{}, errs.New(errs.KindParse,
			"%s: no period end date and no filing evidence, cannot attribute", ticker)
	}
	if annualForm(formType) {
		return Attribution{
			Year:       periodEnd.Year(),
			Period:     PeriodAnnual,
			Source:     SourceDerived,
			Confidence: 0.6,
		}, nil
	}
	attr := fromCalendar(time.December, periodEnd, SourceDerived, 0.6)
	return attr, errs.New(errs.KindFiscalAmbiguous,
		"%s: %s attributed from default calendar, confidence %.1f", ticker, formType, attr.Confidence)
}
