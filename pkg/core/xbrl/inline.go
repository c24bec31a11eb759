package xbrl

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

// Tag and attribute names as the HTML parser reports them: element and
// attribute names are lowercased, attribute values keep their case.
const (
	ixHeader       = "ix\\:header"
	ixResources    = "ix\\:resources"
	ixNonFraction  = "ix\\:nonfraction"
	ixNonNumeric   = "ix\\:nonnumeric"
	ixFraction     = "ix\\:fraction"
	ixContinuation = "ix\\:continuation"
)

// ExtractInline pulls XBRL facts out of an inline-tagged HTML filing.
// Context and unit definitions normally live in a hidden ix:header block;
// when the block is absent the whole document is scanned.
func ExtractInline(data []byte) (*FactTable, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.KindParse, err)
	}
	logger := zap.L().Named("ixbrl")

	table := NewFactTable(SourceInline)

	scope := doc.Find(ixHeader + ", " + ixResources)
	hiddenBlock := scope.Length() > 0
	if !hiddenBlock {
		logger.Debug("no hidden ix:header block, scanning full document")
		scope = doc.Selection
	}
	extractInlineContexts(scope, table, logger)
	extractInlineUnits(scope, table)
	if hiddenBlock && len(table.ContextOrder) == 0 {
		// Some 2022-era filings tuck definitions outside the header.
		extractInlineContexts(doc.Selection, table, logger)
		extractInlineUnits(doc.Selection, table)
	}

	continuations := collectContinuations(doc)

	doc.Find(ixNonFraction).Each(func(_ int, s *goquery.Selection) {
		if fact, ok := inlineNumericFact(s, table.Symbols); ok {
			table.Facts = append(table.Facts, fact)
		}
	})
	doc.Find(ixNonNumeric).Each(func(_ int, s *goquery.Selection) {
		if fact, ok := inlineTextFact(s, table.Symbols, continuations); ok {
			table.Facts = append(table.Facts, fact)
		}
	})
	doc.Find(ixFraction).Each(func(_ int, s *goquery.Selection) {
		if fact, ok := inlineFractionFact(s, table.Symbols); ok {
			table.Facts = append(table.Facts, fact)
		}
	})

	table.pruneUnresolved(logger)
	if len(table.Facts) == 0 {
		return nil, errs.New(errs.KindParse, "no inline XBRL facts found")
	}
	return table, nil
}

func extractInlineContexts(scope *goquery.Selection, table *FactTable, logger *zap.Logger) {
	scope.Find("xbrli\\:context, context").Each(func(_ int, s *goquery.Selection) {
		id, ok := s.Attr("id")
		if !ok || id == "" {
			return
		}
		period := Period{
			Instant:   strings.TrimSpace(s.Find("xbrli\\:instant, instant").First().Text()),
			StartDate: strings.TrimSpace(s.Find("xbrli\\:startdate, startdate").First().Text()),
			EndDate:   strings.TrimSpace(s.Find("xbrli\\:enddate, enddate").First().Text()),
		}
		if period.Instant != "" && (period.StartDate != "" || period.EndDate != "") {
			logger.Warn("skipping context with both instant and duration", zap.String("id", id))
			return
		}
		ctx := Context{
			ID:       id,
			EntityID: strings.TrimSpace(s.Find("xbrli\\:identifier, identifier").First().Text()),
			Period:   period,
		}
		s.Find("xbrldi\\:explicitmember, explicitmember").Each(func(_ int, m *goquery.Selection) {
			axis, _ := m.Attr("dimension")
			if axis == "" {
				return
			}
			if ctx.Dimensions == nil {
				ctx.Dimensions = make(map[string]string)
			}
			ctx.Dimensions[axis] = strings.TrimSpace(m.Text())
		})
		if !table.AddContext(ctx) {
			logger.Warn("duplicate context id, keeping first", zap.String("id", id))
		}
	})
}

func extractInlineUnits(scope *goquery.Selection, table *FactTable) {
	scope.Find("xbrli\\:unit, unit").Each(func(_ int, s *goquery.Selection) {
		id, ok := s.Attr("id")
		if !ok || id == "" {
			return
		}
		unit := Unit{ID: id}
		if divide := s.Find("xbrli\\:divide, divide"); divide.Length() > 0 {
			unit.Numerator = strings.TrimSpace(
				divide.Find("xbrli\\:unitnumerator, unitnumerator").Find("xbrli\\:measure, measure").First().Text())
			unit.Denominator = strings.TrimSpace(
				divide.Find("xbrli\\:unitdenominator, unitdenominator").Find("xbrli\\:measure, measure").First().Text())
		} else {
			unit.Measure = strings.TrimSpace(s.Find("xbrli\\:measure, measure").First().Text())
		}
		table.AddUnit(unit)
	})
}

// collectContinuations indexes ix:continuation elements by id so text facts
// can stitch their continuedAt chains back together.
func collectContinuations(doc *goquery.Document) map[string]*goquery.Selection {
	out := make(map[string]*goquery.Selection)
	doc.Find(ixContinuation).Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("id"); ok && id != "" {
			out[id] = s
		}
	})
	return out
}

func inlineNumericFact(s *goquery.Selection, symbols *SymbolTable) (Fact, bool) {
	name, _ := s.Attr("name")
	contextRef, _ := s.Attr("contextref")
	if name == "" || contextRef == "" {
		return Fact{}, false
	}

	display := strings.TrimSpace(s.Text())
	fact := Fact{
		Concept:    symbols.Intern(name),
		Namespace:  prefixOf(name),
		ValueText:  display,
		ContextRef: contextRef,
		Nil:        attrValue(s, "xsi:nil") == "true",
	}
	fact.UnitRef, _ = s.Attr("unitref")
	fact.Decimals, _ = s.Attr("decimals")

	format, _ := s.Attr("format")
	if num, err := normalizeNumber(display, format); err == nil {
		if scale, scaleErr := strconv.Atoi(attrValue(s, "scale")); scaleErr == nil && scale != 0 {
			num *= math.Pow10(scale)
		}
		if attrValue(s, "sign") == "-" {
			num = -num
		}
		fact.Numeric = &num
	}
	return fact, true
}

func inlineTextFact(s *goquery.Selection, symbols *SymbolTable, continuations map[string]*goquery.Selection) (Fact, bool) {
	name, _ := s.Attr("name")
	contextRef, _ := s.Attr("contextref")
	if name == "" || contextRef == "" {
		return Fact{}, false
	}

	var b strings.Builder
	b.WriteString(s.Text())
	// Follow the continuedAt chain in order; a cycle guard caps the walk.
	next := attrValue(s, "continuedat")
	for seen := 0; next != "" && seen < len(continuations)+1; seen++ {
		cont, ok := continuations[next]
		if !ok {
			break
		}
		b.WriteString(cont.Text())
		next = attrValue(cont, "continuedat")
	}

	return Fact{
		Concept:    symbols.Intern(name),
		Namespace:  prefixOf(name),
		ValueText:  strings.TrimSpace(b.String()),
		ContextRef: contextRef,
		Nil:        attrValue(s, "xsi:nil") == "true",
	}, true
}

func inlineFractionFact(s *goquery.Selection, symbols *SymbolTable) (Fact, bool) {
	name, _ := s.Attr("name")
	contextRef, _ := s.Attr("contextref")
	if name == "" || contextRef == "" {
		return Fact{}, false
	}

	numText := strings.TrimSpace(s.Find("ix\\:numerator").First().Text())
	denText := strings.TrimSpace(s.Find("ix\\:denominator").First().Text())
	fact := Fact{
		Concept:    symbols.Intern(name),
		Namespace:  prefixOf(name),
		ValueText:  numText + "/" + denText,
		ContextRef: contextRef,
	}
	fact.UnitRef, _ = s.Attr("unitref")

	num, errN := strconv.ParseFloat(numText, 64)
	den, errD := strconv.ParseFloat(denText, 64)
	if errN == nil && errD == nil && den != 0 {
		v := num / den
		fact.Numeric = &v
	}
	return fact, true
}

// normalizeNumber applies an ixt transform to the displayed text.
func normalizeNumber(text, format string) (float64, error) {
	base := format
	if i := strings.IndexByte(format, ':'); i >= 0 {
		base = format[i+1:]
	}
	switch base {
	case "fixed-zero", "zerodash", "numdash", "num-dash":
		return 0, nil
	case "fixed-empty":
		return 0, errs.New(errs.KindParse, "fixed-empty has no numeric value")
	case "num-comma-decimal":
		// European style: dots group thousands, comma is the decimal mark.
		text = strings.ReplaceAll(text, ".", "")
		text = strings.ReplaceAll(text, ",", ".")
	default:
		// num-dot-decimal and unformatted text both drop grouping commas.
		text = strings.ReplaceAll(text, ",", "")
	}
	text = strings.TrimSpace(strings.Trim(text, "$() "))
	if text == "" || text == "-" || text == "—" {
		return 0, errs.New(errs.KindParse, "no numeric content")
	}
	return strconv.ParseFloat(text, 64)
}

func prefixOf(concept string) string {
	if i := strings.IndexByte(concept, ':'); i >= 0 {
		return concept[:i]
	}
	return ""
}

func attrValue(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return v
}
