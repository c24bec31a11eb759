package xbrl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

const sampleInstance = `<?xml version="1.0" encoding="utf-8"?>
<xbrl xmlns="http://www.xbrl.org/2003/instance"
      xmlns:xbrli="http://www.xbrl.org/2003/instance"
      xmlns:xbrldi="http://xbrl.org/2006/xbrldi"
      xmlns:us-gaap="http://fasb.org/us-gaap/2024"
      xmlns:dei="http://xbrl.sec.gov/dei/2024"
      xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
      xmlns:iso4217="http://www.xbrl.org/2003/iso4217">
  <xbrli:context id="C1">
    <xbrli:entity>
      <xbrli:identifier scheme="http://www.sec.gov/CIK">0000789019</xbrli:identifier>
    </xbrli:entity>
    <xbrli:period>
      <xbrli:startDate>2023-07-01</xbrli:startDate>
      <xbrli:endDate>2024-06-30</xbrli:endDate>
    </xbrli:period>
  </xbrli:context>
  <xbrli:context id="C2">
    <xbrli:entity>
      <xbrli:identifier scheme="http://www.sec.gov/CIK">0000789019</xbrli:identifier>
      <xbrli:segment>
        <xbrldi:explicitMember dimension="us-gaap:StatementBusinessSegmentsAxis">msft:IntelligentCloudMember</xbrldi:explicitMember>
      </xbrli:segment>
    </xbrli:entity>
    <xbrli:period>
      <xbrli:instant>2024-06-30</xbrli:instant>
    </xbrli:period>
  </xbrli:context>
  <xbrli:context id="C1">
    <xbrli:entity>
      <xbrli:identifier scheme="http://www.sec.gov/CIK">9999999999</xbrli:identifier>
    </xbrli:entity>
    <xbrli:period>
      <xbrli:instant>1999-01-01</xbrli:instant>
    </xbrli:period>
  </xbrli:context>
  <xbrli:unit id="usd">
    <xbrli:measure>iso4217:USD</xbrli:measure>
  </xbrli:unit>
  <xbrli:unit id="usdPerShare">
    <xbrli:divide>
      <xbrli:unitNumerator><xbrli:measure>iso4217:USD</xbrli:measure></xbrli:unitNumerator>
      <xbrli:unitDenominator><xbrli:measure>xbrli:shares</xbrli:measure></xbrli:unitDenominator>
    </xbrli:divide>
  </xbrli:unit>
  <us-gaap:Revenues contextRef="C1" unitRef="usd" decimals="-6">245122000000</us-gaap:Revenues>
  <us-gaap:EarningsPerShareBasic contextRef="C1" unitRef="usdPerShare" decimals="2">11.86</us-gaap:EarningsPerShareBasic>
  <us-gaap:CommitmentsAndContingencies contextRef="C2" unitRef="usd" xsi:nil="true"/>
  <dei:DocumentFiscalPeriodFocus contextRef="C1">FY</dei:DocumentFiscalPeriodFocus>
</xbrl>`

func TestParseInstance(t *testing.T) {
	table, err := Parse([]byte(sampleInstance))
	require.NoError(t, err)
	assert.Equal(t, SourceTraditional, table.Source)

	// Duplicate C1 keeps the first definition.
	require.Len(t, table.ContextOrder, 2)
	c1 := table.Contexts["C1"]
	assert.Equal(t, "0000789019", c1.EntityID)
	assert.Equal(t, "2023-07-01", c1.Period.StartDate)
	assert.Equal(t, "2024-06-30", c1.Period.EndDate)

	c2 := table.Contexts["C2"]
	assert.Equal(t, "2024-06-30", c2.Period.Instant)
	assert.Equal(t, "msft:IntelligentCloudMember", c2.Dimensions["us-gaap:StatementBusinessSegmentsAxis"])

	require.Len(t, table.UnitOrder, 2)
	assert.Equal(t, "iso4217:USD", table.Units["usd"].Measure)
	assert.Equal(t, "iso4217:USD", table.Units["usdPerShare"].Numerator)
	assert.Equal(t, "xbrli:shares", table.Units["usdPerShare"].Denominator)

	require.Len(t, table.Facts, 4)
	rev := table.Facts[0]
	assert.Equal(t, "us-gaap:Revenues", table.Symbols.Name(rev.Concept))
	assert.Equal(t, "245122000000", rev.ValueText)
	assert.Equal(t, "usd", rev.UnitRef)
	assert.Equal(t, "-6", rev.Decimals)
	require.NotNil(t, rev.Numeric)
	assert.Equal(t, 245122000000.0, *rev.Numeric)
}

func TestParseRetainsNilFacts(t *testing.T) {
	table, err := Parse([]byte(sampleInstance))
	require.NoError(t, err)

	var nilFact *Fact
	for i := range table.Facts {
		if table.Facts[i].Nil {
			nilFact = &table.Facts[i]
		}
	}
	require.NotNil(t, nilFact)
	assert.Empty(t, nilFact.ValueText)
	assert.Nil(t, nilFact.Numeric)
}

func TestParseFactValueForEvidence(t *testing.T) {
	table, err := Parse([]byte(sampleInstance))
	require.NoError(t, err)

	focus, ok := table.FactValue("dei:DocumentFiscalPeriodFocus")
	require.True(t, ok)
	assert.Equal(t, "FY", focus)

	_, ok = table.FactValue("dei:NotPresent")
	assert.False(t, ok)
}

func TestParseEveryContextRefResolves(t *testing.T) {
	table, err := Parse([]byte(sampleInstance))
	require.NoError(t, err)
	for _, f := range table.Facts {
		_, ok := table.Contexts[f.ContextRef]
		assert.True(t, ok, "unresolved contextRef %s", f.ContextRef)
		if f.UnitRef != "" {
			_, ok := table.Units[f.UnitRef]
			assert.True(t, ok, "unresolved unitRef %s", f.UnitRef)
		}
	}
}

func TestParseLenientRecovery(t *testing.T) {
	// Undeclared entity plus truncated tail; the parsed prefix survives.
	broken := `<?xml version="1.0"?>
<xbrl xmlns:xbrli="http://www.xbrl.org/2003/instance" xmlns:us-gaap="http://fasb.org/us-gaap/2024">
  <xbrli:context id="C1">
    <xbrli:period><xbrli:instant>2024-06-30</xbrli:instant></xbrli:period>
  </xbrli:context>
  <us-gaap:Assets contextRef="C1" unitRef="usd">512&nbsp;</us-gaap:Assets>
  <us-gaap:Liabilities contextRef="C1" unitRef="usd">300`
	table, err := Parse([]byte(broken))
	require.NoError(t, err)
	assert.NotEmpty(t, table.Facts)
	assert.Contains(t, table.Contexts, "C1")
}

func TestParseDropsDanglingContextRefs(t *testing.T) {
	instance := `<?xml version="1.0"?>
<xbrl xmlns:xbrli="http://www.xbrl.org/2003/instance" xmlns:us-gaap="http://fasb.org/us-gaap/2024">
  <xbrli:context id="C1">
    <xbrli:period><xbrli:instant>2024-06-30</xbrli:instant></xbrli:period>
  </xbrli:context>
  <us-gaap:Assets contextRef="C1">512</us-gaap:Assets>
  <us-gaap:Liabilities contextRef="GHOST">300</us-gaap:Liabilities>
</xbrl>`
	table, err := Parse([]byte(instance))
	require.NoError(t, err)

	require.Len(t, table.Facts, 1)
	assert.Equal(t, "us-gaap:Assets", table.Symbols.Name(table.Facts[0].Concept))
	for _, f := range table.Facts {
		_, ok := table.Contexts[f.ContextRef]
		assert.True(t, ok, "unresolved contextRef %s survived", f.ContextRef)
	}
}

func TestParseClearsDanglingUnitRefs(t *testing.T) {
	instance := `<?xml version="1.0"?>
<xbrl xmlns:xbrli="http://www.xbrl.org/2003/instance" xmlns:us-gaap="http://fasb.org/us-gaap/2024">
  <xbrli:context id="C1">
    <xbrli:period><xbrli:instant>2024-06-30</xbrli:instant></xbrli:period>
  </xbrli:context>
  <us-gaap:Assets contextRef="C1" unitRef="nosuch">512</us-gaap:Assets>
</xbrl>`
	table, err := Parse([]byte(instance))
	require.NoError(t, err)

	require.Len(t, table.Facts, 1)
	assert.Empty(t, table.Facts[0].UnitRef)
	assert.Equal(t, "512", table.Facts[0].ValueText)
}

func TestParseEmptyDocument(t *testing.T) {
	_, err := Parse([]byte(`<?xml version="1.0"?><xbrl></xbrl>`))
	assert.True(t, errs.IsKind(err, errs.KindParse))
}

func TestPeriodLabel(t *testing.T) {
	assert.Equal(t, "Instant: 2024-06-30", Period{Instant: "2024-06-30"}.Label())
	assert.Equal(t, "Period: 2023-07-01 to 2024-06-30",
		Period{StartDate: "2023-07-01", EndDate: "2024-06-30"}.Label())
}

func TestContextLabelWithDimensions(t *testing.T) {
	c := Context{
		Period: Period{Instant: "2024-06-30"},
		Dimensions: map[string]string{
			"us-gaap:StatementBusinessSegmentsAxis": "msft:IntelligentCloudMember",
		},
	}
	assert.Equal(t, "Instant: 2024-06-30 | Segment: msft:IntelligentCloudMember", c.Label())
}

func TestNamespacePrefix(t *testing.T) {
	assert.Equal(t, "us-gaap", namespacePrefix("http://fasb.org/us-gaap/2024"))
	assert.Equal(t, "dei", namespacePrefix("http://xbrl.sec.gov/dei/2024"))
	assert.Equal(t, "microsoft", namespacePrefix("http://www.microsoft.com/20240630"))
}
