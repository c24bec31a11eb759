package fiscal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverrides(t *testing.T) {
	// hjson: comments and unquoted keys are fine.
	content := `{
  // drifting 52/53-week calendar
  COST: {
    fiscal_year_end_month: 8
    known: {
      "2023-09-03": { year: 2023, period: "annual" }
    }
  }
  MSFT: {
    fiscal_year_end_month: 6
  }
}`
	path := filepath.Join(t.TempDir(), "fiscal.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	reg := NewRegistry()
	require.NoError(t, reg.LoadOverrides(path))

	cost, ok := reg.Lookup("COST")
	require.True(t, ok)
	assert.Equal(t, time.August, cost.FYEMonth)
	assert.Equal(t, KnownPeriod{Year: 2023, Period: "annual"}, cost.Known["2023-09-03"])

	a := NewAttributor(reg)
	attr, warn := a.Attribute("COST", "10-K", date(2023, 9, 3), nil)
	assert.NoError(t, warn)
	assert.Equal(t, 2023, attr.Year)
	assert.Equal(t, PeriodAnnual, attr.Period)
	assert.Equal(t, 1.0, attr.Confidence)
}

func TestLoadOverridesRejectsBadMonth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fiscal.hjson")
	require.NoError(t, os.WriteFile(path, []byte(`{ X: { fiscal_year_end_month: 13 } }`), 0o644))

	reg := NewRegistry()
	assert.Error(t, reg.LoadOverrides(path))
}

func TestObserveDoesNotShadowRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Observe("MSFT", time.December)
	_, ok := reg.LearnedFYE("MSFT")
	assert.False(t, ok)
}
