package composite

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapbiomas/brazil-cerrado/internal/band"
)

func day(year, yday int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, yday-1)
}

func md(s string) MonthDay {
	m, err := ParseMonthDay(s)
	if err != nil {
		panic(err)
	}
	return m
}

func testSettings() Settings {
	return Settings{
		Period:        FullYear,
		Dry:           Window{Start: md("01-01"), End: md("05-15")},
		Wet:           Window{Start: md("05-16"), End: md("12-31")},
		RankingBand:   "ndvi",
		DryPercentile: 25,
		WetPercentile: 75,
		MinPercentile: 5,
		MaxPercentile: 95,
	}
}

func ndviSeries(year int, days []int, values []float64) []band.Observation {
	obs := make([]band.Observation, len(days))
	for i := range days {
		obs[i] = band.NewObservation(day(year, days[i]), band.Values{"ndvi": values[i]})
	}
	return obs
}

func TestPercentileLinearInterpolation(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"single", []float64{0.4}, 75, 0.4},
		{"two at p75", []float64{0.5, 0.8}, 75, 0.725},
		{"three at p25", []float64{0.2, 0.5, 0.8}, 25, 0.35},
		{"median even", []float64{1, 2, 3, 4}, 50, 2.5},
		{"p0", []float64{1, 2, 3}, 0, 1},
		{"p100", []float64{1, 2, 3}, 100, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Percentile(tt.sorted, tt.p), 1e-12)
		})
	}
	assert.True(t, band.IsNoData(Percentile(nil, 50)))
}

func TestPopStdDev(t *testing.T) {
	assert.InDelta(t, math.Sqrt(2.0/3.0), PopStdDev([]float64{1, 2, 3}), 1e-12)
	assert.Equal(t, 0.0, PopStdDev([]float64{7}))
	assert.True(t, band.IsNoData(PopStdDev(nil)))
}

func TestWindowContainsWrapsAcrossNewYear(t *testing.T) {
	w := Window{Start: md("10-01"), End: md("03-31")}
	assert.True(t, w.Contains(time.Date(2020, time.November, 5, 0, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2020, time.February, 29, 0, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2020, time.March, 31, 0, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2020, time.July, 1, 0, 0, 0, 0, time.UTC)))
}

func TestComposeWetPercentile(t *testing.T) {
	c := NewCompositor(testSettings())
	// days 100 (Apr 10), 150 (May 30), 200 (Jul 19)
	out := c.Compose(ndviSeries(2021, []int{100, 150, 200}, []float64{0.2, 0.5, 0.8}), []string{"ndvi"})

	assert.InDelta(t, 0.725, out["ndvi_p75"], 1e-12)
	assert.InDelta(t, 0.2, out["ndvi_p25"], 1e-12)
	assert.InDelta(t, 0.5, out["ndvi_median"], 1e-12)
	assert.InDelta(t, 0.65, out["ndvi_median_wet"], 1e-12)
	assert.InDelta(t, 0.2, out["ndvi_median_dry"], 1e-12)
	assert.InDelta(t, 0.2+0.05*2*0.3, out["ndvi_min"], 1e-12)
	assert.InDelta(t, math.Sqrt(0.06), out["ndvi_stdDev"], 1e-12)
}

func TestComposeEmptyWetWindowIsNoData(t *testing.T) {
	c := NewCompositor(testSettings())
	out := c.Compose(ndviSeries(2021, []int{20, 40, 60}, []float64{0.3, 0.4, 0.5}), []string{"ndvi"})

	assert.True(t, band.IsNoData(out["ndvi_median_wet"]))
	assert.True(t, band.IsNoData(out["ndvi_p75"]))
	assert.InDelta(t, 0.4, out["ndvi_median_dry"], 1e-12)
	assert.InDelta(t, 0.35, out["ndvi_p25"], 1e-12)
}

func TestComposeEmptySeriesEmitsEveryBand(t *testing.T) {
	c := NewCompositor(testSettings())
	temporal := []string{"ndvi", "red"}
	out := c.Compose(nil, temporal)
	for _, n := range c.FeatureNames(temporal) {
		v, ok := out[n]
		require.True(t, ok, n)
		assert.True(t, band.IsNoData(v), n)
	}
	assert.Len(t, out, len(c.FeatureNames(temporal)))
}

func TestComposeIgnoresOrderAndOutOfPeriod(t *testing.T) {
	s := testSettings()
	s.Period = Window{Start: md("02-01"), End: md("11-30")}
	c := NewCompositor(s)

	days := []int{10, 45, 90, 120, 160, 200, 250, 300, 350}
	values := []float64{0.9, 0.21, 0.33, 0.47, 0.52, 0.61, 0.74, 0.58, -0.9}
	obs := ndviSeries(2019, days, values)

	want := c.Compose(obs, []string{"ndvi"})
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := append([]band.Observation(nil), obs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, c.Compose(shuffled, []string{"ndvi"}))
	}
	// Jan 10 and Dec 16 fall outside the period
	assert.InDelta(t, 0.52, want["ndvi_median"], 1e-12)
}

func TestSettingsValidate(t *testing.T) {
	s := testSettings()
	require.NoError(t, s.Validate())
	s.WetPercentile = s.DryPercentile
	require.Error(t, s.Validate())
}

func TestSchemaRegistryDetectsDrift(t *testing.T) {
	r := NewSchemaRegistry()
	require.NoError(t, r.Check("col", "r1", 2019, []string{"b", "a"}))
	require.NoError(t, r.Check("col", "r2", 2019, []string{"a", "b"}))

	err := r.Check("col", "r1", 2020, []string{"a", "c"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaDrift))

	var drift *SchemaDriftError
	require.True(t, errors.As(err, &drift))
	assert.Equal(t, []string{"b"}, drift.Missing)
	assert.Equal(t, []string{"c"}, drift.Extra)
	assert.Equal(t, 2020, drift.Year)

	// other collections are tracked independently
	require.NoError(t, r.Check("other", "r1", 2020, []string{"z"}))
}
