package spectral

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapbiomas/brazil-cerrado/internal/band"
)

var sample = band.Values{
	"blue": 0.04, "green": 0.07, "red": 0.05, "nir": 0.35,
	"swir1": 0.2, "swir2": 0.1, "re1": 0.12, "re2": 0.25, "re3": 0.3,
}

func TestComputeKnownValues(t *testing.T) {
	tests := []struct {
		name string
		want float64
	}{
		{"ndvi", (0.35 - 0.05) / (0.35 + 0.05)},
		{"nbr", (0.35 - 0.1) / (0.35 + 0.1)},
		{"mndwi", (0.07 - 0.2) / (0.07 + 0.2)},
		{"cai", 0.1 / 0.2},
		{"evi2", 2.5 * (0.35 - 0.05) / (0.35 + 2.4*0.05 + 1)},
		{"gcvi", 0.35/0.07 - 1},
		{"msi", 0.2 / 0.35},
		{"hallcover", -0.017*0.05 - 0.007*0.35 - 0.079*0.1 + 5.22},
		{"vi700", (0.12 - 0.05) / (0.12 + 0.05)},
		{"ndre", (0.35 - 0.12) / (0.35 + 0.12)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Compute(tt.name, sample), 1e-12)
		})
	}
}

func TestComputeMissingInputIsNoData(t *testing.T) {
	v := sample.Clone()
	delete(v, "swir2")
	assert.True(t, band.IsNoData(Compute("nbr", v)))

	v["swir2"] = math.NaN()
	assert.True(t, band.IsNoData(Compute("nbr", v)))

	// unrelated indices still resolve
	assert.False(t, band.IsNoData(Compute("ndvi", v)))
}

func TestComputeZeroDenominator(t *testing.T) {
	v := band.Values{"nir": 0, "red": 0}
	assert.True(t, band.IsNoData(Compute("ndvi", v)))
}

func TestApplyIsOrderIndependent(t *testing.T) {
	names := Names()
	reversed := make([]string, len(names))
	for i, n := range names {
		reversed[len(names)-1-i] = n
	}

	a := Apply(sample, names)
	b := Apply(sample, reversed)
	require.Equal(t, len(a), len(b))
	for k, x := range a {
		if band.IsNoData(x) {
			assert.True(t, band.IsNoData(b[k]), k)
			continue
		}
		assert.Equal(t, x, b[k], k)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate([]string{"ndvi", "ireci"}))
	require.Error(t, Validate([]string{"ndvi", "bogus"}))
}
