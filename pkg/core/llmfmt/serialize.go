// Package llmfmt renders parsed filings into the LLM-native text format:
// a header block, data dictionaries for contexts and units, then every
// fact with its references. The output is a pure function of its inputs.
package llmfmt

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
	"github.com/peakyragnar/NativeLLM/pkg/core/fiscal"
	"github.com/peakyragnar/NativeLLM/pkg/core/xbrl"
)

// Document bundles everything the serializer needs for one filing.
type Document struct {
	Ticker      string
	CompanyName string
	CIK         string
	FormType    string
	FilingDate  time.Time
	PeriodEnd   time.Time
	Attribution fiscal.Attribution
	Table       *xbrl.FactTable
}

// Serialize renders the document. A nil fact table is treated as empty
// (text-only filings still get a header and empty dictionaries).
func Serialize(doc Document) (string, error) {
	if doc.Ticker == "" || doc.FormType == "" {
		return "", errs.New(errs.KindSerialize, "document missing ticker or form type")
	}
	table := doc.Table
	if table == nil {
		table = xbrl.NewFactTable(xbrl.SourceTextOnly)
	}

	var b strings.Builder
	writeHeader(&b, doc, table)
	writeContexts(&b, table)
	writeUnits(&b, table)
	writeFacts(&b, table)

	out := b.String()
	if out == "" {
		return "", errs.New(errs.KindSerialize, "serializer produced no output")
	}
	return out, nil
}

func writeHeader(b *strings.Builder, doc Document, table *xbrl.FactTable) {
	b.WriteString("@DOCUMENT: " + doc.Ticker + "-" + doc.FormType + "-" + doc.PeriodEnd.Format("2006-01-02") + "\n")
	b.WriteString("@FILING_DATE: " + doc.FilingDate.Format("2006-01-02") + "\n")
	b.WriteString("@COMPANY: " + doc.CompanyName + "\n")
	b.WriteString("@CIK: " + doc.CIK + "\n")
	b.WriteString("@FISCAL_YEAR: " + strconv.Itoa(doc.Attribution.Year) + "\n")
	b.WriteString("@FISCAL_PERIOD: " + doc.Attribution.Period + "\n")
	b.WriteString("@SOURCE_FORMAT: " + table.Source.String() + "\n")
}

func writeContexts(b *strings.Builder, table *xbrl.FactTable) {
	b.WriteString("\n@DATA_DICTIONARY: CONTEXTS\n")
	for _, id := range table.ContextOrder {
		b.WriteString("@CONTEXT_DEF: " + id + " | " + table.Contexts[id].Label() + "\n")
	}
}

func writeUnits(b *strings.Builder, table *xbrl.FactTable) {
	b.WriteString("\n@DATA_DICTIONARY: UNITS\n")
	for _, id := range table.UnitOrder {
		b.WriteString("@UNIT_DEF: " + id + " | " + table.Units[id].Label() + "\n")
	}
}

// writeFacts emits facts grouped by concept name alphabetically, then by
// the referenced context's period end ascending. Ties keep document order.
func writeFacts(b *strings.Builder, table *xbrl.FactTable) {
	b.WriteString("\n@FACTS\n")

	order := make([]int, len(table.Facts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		fi, fj := table.Facts[order[i]], table.Facts[order[j]]
		ni, nj := table.Symbols.Name(fi.Concept), table.Symbols.Name(fj.Concept)
		if ni != nj {
			return ni < nj
		}
		return contextEnd(table, fi.ContextRef).Before(contextEnd(table, fj.ContextRef))
	})

	for _, idx := range order {
		f := table.Facts[idx]
		b.WriteString("\n@CONCEPT: " + table.Symbols.Name(f.Concept) + "\n")
		b.WriteString("@VALUE: " + f.ValueText + "\n")
		if f.Numeric != nil {
			b.WriteString("@NORMALIZED: " + strconv.FormatFloat(*f.Numeric, 'f', -1, 64) + "\n")
		}
		if f.UnitRef != "" {
			b.WriteString("@UNIT_REF: " + f.UnitRef + "\n")
		}
		if f.Decimals != "" {
			b.WriteString("@DECIMALS: " + f.Decimals + "\n")
		}
		b.WriteString("@CONTEXT_REF: " + f.ContextRef + "\n")
	}
}

func contextEnd(table *xbrl.FactTable, contextRef string) time.Time {
	if ctx, ok := table.Contexts[contextRef]; ok {
		return ctx.Period.End()
	}
	return time.Time{}
}
