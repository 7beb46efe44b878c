package sma

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapbiomas/brazil-cerrado/internal/band"
)

func mix(lib Library, weights [3]float64) band.Values {
	v := band.Values{}
	for _, b := range lib.Bands {
		var x float64
		for j, em := range lib.Endmembers {
			x += weights[j] * em.Reflectance[b]
		}
		v[b] = x
	}
	return v
}

func TestUnmixRecoversLinearMixture(t *testing.T) {
	lib, err := LibraryFor("landsat-8")
	require.NoError(t, err)
	u := NewUnmixer(lib)

	got := u.Unmix(mix(lib, [3]float64{0.5, 0.3, 0.2}))
	assert.InDelta(t, 0.5, got[GV], 1e-9)
	assert.InDelta(t, 0.3, got[Soil], 1e-9)
	assert.InDelta(t, 0.2, got[Shade], 1e-9)
	assert.InDelta(t, 0, got[RMSE], 1e-9)
}

func TestUnmixFractionsSumToOneAndAreNotClamped(t *testing.T) {
	lib, err := LibraryFor("sentinel-2")
	require.NoError(t, err)
	u := NewUnmixer(lib)

	// brighter than pure soil, outside the simplex
	v := mix(lib, [3]float64{0.1, 1.4, -0.5})
	got := u.Unmix(v)
	assert.InDelta(t, 1, got[GV]+got[Soil]+got[Shade], 1e-9)
	assert.Greater(t, got[Soil], 1.0)
	assert.Less(t, got[Shade], 0.0)
}

func TestUnmixNoDataPropagates(t *testing.T) {
	lib, err := LibraryFor("landsat-5")
	require.NoError(t, err)
	v := mix(lib, [3]float64{0.4, 0.4, 0.2})
	v["swir1"] = math.NaN()

	got := NewUnmixer(lib).Unmix(v)
	for _, name := range Fractions {
		assert.True(t, band.IsNoData(got[name]), name)
	}
}

func TestLibraryForUnknownSensor(t *testing.T) {
	_, err := LibraryFor("modis")
	require.Error(t, err)
}

func TestDeriveFractionIndices(t *testing.T) {
	got := DeriveFractionIndices(band.Values{GV: 0.6, Soil: 0.2, Shade: 0.2})
	gvs := 0.6 / 0.8
	assert.InDelta(t, (gvs-0.2)/(gvs+0.2), got["ndfi"], 1e-12)
	assert.InDelta(t, 0.4/0.8, got["sefi"], 1e-12)
	assert.InDelta(t, 0.2, got["wefi"], 1e-12)
	assert.InDelta(t, 0.2, got["fns"], 1e-12)

	full := DeriveFractionIndices(band.Values{GV: 0, Soil: 0, Shade: 1})
	assert.True(t, band.IsNoData(full["ndfi"]))
	assert.True(t, band.IsNoData(full["sefi"]))

	missing := DeriveFractionIndices(band.Values{GV: 0.5})
	assert.True(t, band.IsNoData(missing["fns"]))
}
