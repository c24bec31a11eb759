package xbrl

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

// Parse reads a standalone XBRL instance document. Parsing is lenient:
// unknown entities and prefix mismatches do not halt it, and a malformed
// tail after usable facts still yields a table.
func Parse(data []byte) (*FactTable, error) {
	dec := newLenientDecoder(bytes.NewReader(data))
	table := NewFactTable(SourceTraditional)
	logger := zap.L().Named("xbrl")

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Salvage whatever parsed before the breakage.
			if len(table.Facts) > 0 || len(table.ContextOrder) > 0 {
				logger.Warn("instance truncated, keeping parsed prefix",
					zap.Int("facts", len(table.Facts)), zap.Error(err))
				break
			}
			return nil, errs.Wrap(errs.KindParse, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "context":
			ctx, err := decodeContext(dec, start)
			if err != nil {
				logger.Warn("skipping malformed context", zap.Error(err))
				continue
			}
			if !table.AddContext(ctx) {
				logger.Warn("duplicate context id, keeping first", zap.String("id", ctx.ID))
			}
		case "unit":
			unit, err := decodeUnit(dec, start)
			if err != nil {
				logger.Warn("skipping malformed unit", zap.Error(err))
				continue
			}
			table.AddUnit(unit)
		case "schemaRef", "linkbaseRef", "roleRef", "arcroleRef", "xbrl":
			// structural, never facts
		default:
			if fact, ok := decodeFact(dec, start, table.Symbols); ok {
				table.Facts = append(table.Facts, fact)
			}
		}
	}

	table.pruneUnresolved(logger)
	if len(table.ContextOrder) == 0 && len(table.Facts) == 0 {
		return nil, errs.New(errs.KindParse, "no contexts or facts in instance document")
	}
	return table, nil
}

func newLenientDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		// EDGAR instances are UTF-8 or ASCII regardless of declared charset.
		return input, nil
	}
	return dec
}

// xml-mapped shapes for context and unit subtrees. Child names match on
// local name only, so namespace prefixes do not matter.

type contextXML struct {
	ID     string `xml:"id,attr"`
	Entity struct {
		Identifier string     `xml:"identifier"`
		Segment    segmentXML `xml:"segment"`
	} `xml:"entity"`
	Period struct {
		Instant   string `xml:"instant"`
		StartDate string `xml:"startDate"`
		EndDate   string `xml:"endDate"`
	} `xml:"period"`
	Scenario segmentXML `xml:"scenario"`
}

type segmentXML struct {
	Members []struct {
		Dimension string `xml:"dimension,attr"`
		Member    string `xml:",chardata"`
	} `xml:"explicitMember"`
}

type unitXML struct {
	ID      string `xml:"id,attr"`
	Measure string `xml:"measure"`
	Divide  *struct {
		Numerator   string `xml:"unitNumerator>measure"`
		Denominator string `xml:"unitDenominator>measure"`
	} `xml:"divide"`
}

func decodeContext(dec *xml.Decoder, start xml.StartElement) (Context, error) {
	var raw contextXML
	if err := dec.DecodeElement(&raw, &start); err != nil {
		return Context{}, err
	}
	period := Period{
		Instant:   strings.TrimSpace(raw.Period.Instant),
		StartDate: strings.TrimSpace(raw.Period.StartDate),
		EndDate:   strings.TrimSpace(raw.Period.EndDate),
	}
	if period.Instant != "" && (period.StartDate != "" || period.EndDate != "") {
		return Context{}, errs.New(errs.KindParse, "context %s declares both instant and duration", raw.ID)
	}
	ctx := Context{
		ID:       raw.ID,
		EntityID: strings.TrimSpace(raw.Entity.Identifier),
		Period:   period,
	}
	for _, seg := range []segmentXML{raw.Entity.Segment, raw.Scenario} {
		for _, m := range seg.Members {
			if ctx.Dimensions == nil {
				ctx.Dimensions = make(map[string]string)
			}
			ctx.Dimensions[m.Dimension] = strings.TrimSpace(m.Member)
		}
	}
	return ctx, nil
}

func decodeUnit(dec *xml.Decoder, start xml.StartElement) (Unit, error) {
	var raw unitXML
	if err := dec.DecodeElement(&raw, &start); err != nil {
		return Unit{}, err
	}
	unit := Unit{ID: raw.ID, Measure: strings.TrimSpace(raw.Measure)}
	if raw.Divide != nil {
		unit.Measure = ""
		unit.Numerator = strings.TrimSpace(raw.Divide.Numerator)
		unit.Denominator = strings.TrimSpace(raw.Divide.Denominator)
	}
	return unit, nil
}

// decodeFact treats any element carrying a contextRef attribute as a fact.
func decodeFact(dec *xml.Decoder, start xml.StartElement, symbols *SymbolTable) (Fact, bool) {
	contextRef := attr(start.Attr, "contextRef")
	if contextRef == "" {
		return Fact{}, false
	}

	var value string
	if err := dec.DecodeElement(&value, &start); err != nil {
		return Fact{}, false
	}
	value = strings.TrimSpace(value)

	fact := Fact{
		Concept:    symbols.Intern(conceptName(start.Name)),
		Namespace:  start.Name.Space,
		ValueText:  value,
		ContextRef: contextRef,
		UnitRef:    attr(start.Attr, "unitRef"),
		Decimals:   attr(start.Attr, "decimals"),
		Precision:  attr(start.Attr, "precision"),
		Nil:        attr(start.Attr, "nil") == "true",
	}
	if fact.UnitRef != "" && !fact.Nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64); err == nil {
			fact.Numeric = &v
		}
	}
	return fact, true
}

// conceptName rebuilds the prefixed concept. The decoder resolves prefixes
// to namespace URIs, so the familiar prefix is recovered from the URI.
func conceptName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return namespacePrefix(name.Space) + ":" + name.Local
}

func namespacePrefix(uri string) string {
	switch {
	case strings.Contains(uri, "us-gaap"):
		return "us-gaap"
	case strings.Contains(uri, "/dei"):
		return "dei"
	case strings.Contains(uri, "ifrs"):
		return "ifrs-full"
	case strings.Contains(uri, "srt"):
		return "srt"
	case strings.Contains(uri, "country"):
		return "country"
	case strings.Contains(uri, "xbrl.org") && strings.Contains(uri, "instance"):
		return "xbrli"
	}
	// Company extension namespaces look like http://www.microsoft.com/20240630
	// or http://xbrl.sec.gov/<prefix>/<year>; take the hostname's second-level
	// label or the first path segment.
	trimmed := strings.TrimPrefix(strings.TrimPrefix(uri, "https://"), "http://")
	parts := strings.Split(trimmed, "/")
	if len(parts) > 1 && strings.Contains(parts[0], "xbrl.sec.gov") {
		return parts[1]
	}
	host := strings.TrimPrefix(parts[0], "www.")
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

func attr(attrs []xml.Attr, local string) string {
	for _, a := range attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
