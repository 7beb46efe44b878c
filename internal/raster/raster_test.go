package raster

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapbiomas/brazil-cerrado/internal/composite"
	"github.com/mapbiomas/brazil-cerrado/internal/engine"
)

func TestSceneDatesFiltersYearAndNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"2021-07-19.tif", "2021-04-10.tif", "2020-12-31.tif", "notes.txt", "cloudy.tif"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	dates, err := SceneDates(dir, 2021)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, time.Date(2021, time.April, 10, 0, 0, 0, 0, time.UTC), dates[0])
	assert.Equal(t, time.Date(2021, time.July, 19, 0, 0, 0, 0, time.UTC), dates[1])

	_, err = SceneDates(filepath.Join(dir, "missing"), 2021)
	require.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	tags := engine.Tags{Collection: "cerrado-landsat", Version: 10, Biome: "CERRADO", Region: "12", Year: 2021}
	assert.Equal(t, filepath.Join("/out", "cerrado-landsat", "v10", "CERRADO_12_2021_v10.tif"), OutputPath("/out", tags))
}

func TestStorageType(t *testing.T) {
	dtype, _ := storage([]composite.PackedBand{{Type: composite.Int8}, {Type: composite.Int16}})
	assert.Equal(t, godal.Int16, dtype)
	dtype, _ = storage([]composite.PackedBand{{Type: composite.Int8}, {Type: composite.Int32}})
	assert.Equal(t, godal.Int32, dtype)
	dtype, _ = storage([]composite.PackedBand{{Type: composite.Int64}})
	assert.Equal(t, godal.Float64, dtype)
}

func TestStorageNoDataNeverCollidesWithValues(t *testing.T) {
	for _, lo := range []float64{math.MinInt8, math.MinInt16, math.MinInt32 + 1} {
		b := composite.NewFeatureBand("x", 2020, []float64{lo, 0})
		pb, err := composite.Packer{Policy: composite.Mask}.PackBand(b, 1, nil)
		require.NoError(t, err)
		dtype, nodata := storage([]composite.PackedBand{pb})
		if dtype == godal.Float64 {
			continue
		}
		assert.Less(t, nodata, lo, "no-data %v must sit below stored value %v", nodata, lo)
	}
}

func TestLayerPathPrefersPerYearFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fire_age_2020.tif"), nil, 0644))
	a := NewGeoTIFFAuxiliary(dir)
	assert.Equal(t, filepath.Join(dir, "fire_age_2020.tif"), a.LayerPath("fire_age", 2020))
	assert.Equal(t, filepath.Join(dir, "fire_age.tif"), a.LayerPath("fire_age", 2021))
}

func TestWriteClassificationRejectsMismatchedGrid(t *testing.T) {
	err := WriteClassification(filepath.Join(t.TempDir(), "c.tif"), composite.Grid{Width: 2, Height: 2}, engine.Tags{}, []int{1, 2})
	require.Error(t, err)
}
