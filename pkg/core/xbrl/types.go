// Package xbrl parses XBRL fact data from SEC filings, both standalone
// instance documents and inline (iXBRL) tags embedded in the filing HTML.
package xbrl

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Source tags where a filing's facts came from.
type Source int

const (
	SourceTraditional Source = iota // standalone *_htm.xml instance
	SourceInline                    // ix:* tags in the primary HTML
	SourceTextOnly                  // no XBRL; empty fact table
)

func (s Source) String() string {
	switch s {
	case SourceTraditional:
		return "traditional-xbrl"
	case SourceInline:
		return "inline-xbrl"
	default:
		return "text-only"
	}
}

// ConceptID is an interned concept handle. Facts carry ids instead of
// repeated concept strings; the SymbolTable resolves them back.
type ConceptID int32

// SymbolTable interns concept names for one filing. Not safe for concurrent
// writes; a filing is parsed by a single worker.
type SymbolTable struct {
	byName map[string]ConceptID
	names  []string
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byName: make(map[string]ConceptID)}
}

// Intern returns the id for name, assigning one on first sight.
func (t *SymbolTable) Intern(name string) ConceptID {
	if id, ok := t.byName[name]; ok {
		return id
	}
	id := ConceptID(len(t.names))
	t.byName[name] = id
	t.names = append(t.names, name)
	return id
}

// Name resolves an id. Unknown ids return the empty string.
func (t *SymbolTable) Name(id ConceptID) string {
	if int(id) < 0 || int(id) >= len(t.names) {
		return ""
	}
	return t.names[id]
}

func (t *SymbolTable) Len() int { return len(t.names) }

// Period is either an instant or a start/end duration, both as the
// YYYY-MM-DD strings the filing reported.
type Period struct {
	Instant   string
	StartDate string
	EndDate   string
}

// End returns the period's instant or end date parsed, zero when absent.
func (p Period) End() time.Time {
	s := p.EndDate
	if s == "" {
		s = p.Instant
	}
	t, _ := time.Parse("2006-01-02", s)
	return t
}

// Label renders the period the way the data dictionary prints it.
func (p Period) Label() string {
	if p.Instant != "" {
		return "Instant: " + p.Instant
	}
	if p.StartDate != "" || p.EndDate != "" {
		return fmt.Sprintf("Period: %s to %s", p.StartDate, p.EndDate)
	}
	return "Unknown period"
}

// Context is a reusable descriptor for a fact's entity, period, and
// segment/scenario dimensions.
type Context struct {
	ID         string
	EntityID   string
	Period     Period
	Dimensions map[string]string // axis -> member, explicitMember entries
}

// Label renders the context for the data dictionary: the period label plus
// sorted dimension members when present.
func (c Context) Label() string {
	label := c.Period.Label()
	if len(c.Dimensions) == 0 {
		return label
	}
	axes := make([]string, 0, len(c.Dimensions))
	for axis := range c.Dimensions {
		axes = append(axes, axis)
	}
	sort.Strings(axes)
	var b strings.Builder
	b.WriteString(label)
	for _, axis := range axes {
		b.WriteString(" | Segment: ")
		b.WriteString(c.Dimensions[axis])
	}
	return b.String()
}

// Unit is a measurement unit: a single measure or a divide ratio.
type Unit struct {
	ID          string
	Measure     string
	Numerator   string // set together with Denominator for divide units
	Denominator string
}

// Label renders the unit for the data dictionary.
func (u Unit) Label() string {
	if u.Numerator != "" {
		return u.Numerator + " / " + u.Denominator
	}
	return u.Measure
}

// Fact is one reported value. ValueText preserves the source text verbatim;
// Numeric carries the normalized value when one could be derived.
type Fact struct {
	Concept    ConceptID
	Namespace  string // namespace URI for traditional, prefix as written for inline
	ValueText  string
	Numeric    *float64
	ContextRef string
	UnitRef    string
	Decimals   string // as reported, may be "INF" or empty
	Precision  string
	Nil        bool // xsi:nil="true"
}

// FactTable is everything extracted from one filing's XBRL layer.
type FactTable struct {
	Source   Source
	Symbols  *SymbolTable
	Contexts map[string]Context
	// ContextOrder preserves first-seen document order for duplicate
	// resolution and stable iteration.
	ContextOrder []string
	Units        map[string]Unit
	UnitOrder    []string
	Facts        []Fact
}

func NewFactTable(source Source) *FactTable {
	return &FactTable{
		Source:   source,
		Symbols:  NewSymbolTable(),
		Contexts: make(map[string]Context),
		Units:    make(map[string]Unit),
	}
}

// AddContext records a context definition. Duplicate ids keep the first
// occurrence; the caller decides whether to log the collision.
func (ft *FactTable) AddContext(c Context) (kept bool) {
	if _, exists := ft.Contexts[c.ID]; exists {
		return false
	}
	ft.Contexts[c.ID] = c
	ft.ContextOrder = append(ft.ContextOrder, c.ID)
	return true
}

func (ft *FactTable) AddUnit(u Unit) (kept bool) {
	if _, exists := ft.Units[u.ID]; exists {
		return false
	}
	ft.Units[u.ID] = u
	ft.UnitOrder = append(ft.UnitOrder, u.ID)
	return true
}

// pruneUnresolved drops facts whose contextRef does not resolve to a parsed
// context, and clears unitRefs that point at no parsed unit. Every fact that
// survives satisfies the join invariants the serializer relies on.
func (ft *FactTable) pruneUnresolved(logger *zap.Logger) {
	kept := ft.Facts[:0]
	for _, f := range ft.Facts {
		if _, ok := ft.Contexts[f.ContextRef]; !ok {
			logger.Warn("dropping fact with unresolved contextRef",
				zap.String("concept", ft.Symbols.Name(f.Concept)),
				zap.String("context_ref", f.ContextRef))
			continue
		}
		if f.UnitRef != "" {
			if _, ok := ft.Units[f.UnitRef]; !ok {
				logger.Warn("clearing unresolved unitRef",
					zap.String("concept", ft.Symbols.Name(f.Concept)),
					zap.String("unit_ref", f.UnitRef))
				f.UnitRef = ""
			}
		}
		kept = append(kept, f)
	}
	ft.Facts = kept
}

// FactValue looks up the single fact for a concept name, used for dei
// evidence extraction. Returns the first match in document order.
func (ft *FactTable) FactValue(concept string) (string, bool) {
	id, ok := ft.Symbols.byName[concept]
	if !ok {
		return "", false
	}
	for _, f := range ft.Facts {
		if f.Concept == id {
			return f.ValueText, true
		}
	}
	return "", false
}
