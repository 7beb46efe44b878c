package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapbiomas/brazil-cerrado/internal/composite"
	"github.com/mapbiomas/brazil-cerrado/internal/engine"
)

var grid = composite.Grid{Width: 2, Height: 1, GeoTransform: [6]float64{-48, 1, 0, -15, 0, -1}}

func output(t *testing.T) *engine.AnnualOutput {
	t.Helper()
	c, err := composite.NewAnnualComposite("12", 2021, grid)
	require.NoError(t, err)
	return &engine.AnnualOutput{
		Tags:      engine.Tags{Collection: "c", Version: 1, Biome: "CERRADO", Region: "12", Year: 2021},
		Composite: c,
		Bands: []composite.PackedBand{
			{Name: "ndvi_p75", Type: composite.Int16, Scale: 10000, Values: []int64{7250, 0}, Valid: []bool{true, false}},
			{Name: "year", Type: composite.Int16, Scale: 1, Values: []int64{2021, 2021}, Valid: []bool{true, true}},
		},
	}
}

func TestPixelIndex(t *testing.T) {
	i, ok := PixelIndex(grid, -46.2, -15.9)
	require.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = PixelIndex(grid, -45.5, -15.5)
	assert.False(t, ok)
}

func TestExtractDropsMaskedAndForeignPoints(t *testing.T) {
	points := []SamplePoint{
		{ID: "a", Region: "12", Longitude: -47.5, Latitude: -15.5, Reference: 4},
		{ID: "b", Region: "12", Longitude: -46.5, Latitude: -15.5, Reference: 3},
		{ID: "c", Region: "21", Longitude: -47.5, Latitude: -15.5, Reference: 3},
		{ID: "d", Region: "12", Longitude: 0, Latitude: 0, Reference: 3},
	}
	samples, err := Extract(output(t), points)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "a", samples[0].Point.ID)
	assert.Equal(t, int64(7250), samples[0].Values["ndvi_p75"])
	assert.Equal(t, 2021, samples[0].Year)
}

func TestSubsampleIsDeterministic(t *testing.T) {
	samples := make([]Sample, 10)
	for i := range samples {
		samples[i] = Sample{Point: SamplePoint{ID: string(rune('a' + i))}}
	}
	a := Subsample(samples, "12", 2021, 0.7)
	b := Subsample(samples, "12", 2021, 0.7)
	assert.Len(t, a, 7)
	assert.Equal(t, a, b)
	assert.Len(t, Subsample(samples, "12", 2021, 1), 10)
}

func TestLoadPointsAndWriteTable(t *testing.T) {
	dir := t.TempDir()
	pointsPath := filepath.Join(dir, "points.csv")
	require.NoError(t, os.WriteFile(pointsPath, []byte("id,region,longitude,latitude,reference\na,12,-47.5,-15.5,4\n"), 0644))

	points, err := LoadPoints(pointsPath)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 4, points[0].Reference)

	out := output(t)
	tablePath := filepath.Join(dir, "train", "samples.csv")
	samples, err := Extract(out, points)
	require.NoError(t, err)
	require.NoError(t, WriteTable(tablePath, out.BandNames(), samples))
	data, err := os.ReadFile(tablePath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{"id,region,reference,ndvi_p75,year", "a,12,4,7250,2021"}, lines)

	schemaPath := filepath.Join(dir, "train", "schema.csv")
	require.NoError(t, WriteSchema(schemaPath, out.Bands))
	file, err := os.Open(schemaPath)
	require.NoError(t, err)
	defer file.Close()
	var rows []BandSchemaRow
	require.NoError(t, gocsv.UnmarshalFile(file, &rows))
	assert.Equal(t, BandSchemaRow{Name: "ndvi_p75", Type: "int16", Scale: 10000}, rows[0])
}

// UTM zone 23S, 30 m pixels; centers carry the WGS84 position of each pixel.
var utmGrid = composite.Grid{
	Width:        2,
	Height:       2,
	GeoTransform: [6]float64{300000, 30, 0, 8350000, 0, -30},
	Projection:   `PROJCS["WGS 84 / UTM zone 23S",GEOGCS["WGS 84",DATUM["WGS_1984"]],AUTHORITY["EPSG","32723"]]`,
}

var utmCenters = []orb.Point{
	{-46.8653, -14.9218}, {-46.86502, -14.9218},
	{-46.8653, -14.92207}, {-46.86502, -14.92207},
}

func projectedOutput(t *testing.T, centers []orb.Point) *engine.AnnualOutput {
	t.Helper()
	c, err := composite.NewAnnualComposite("12", 2021, utmGrid)
	require.NoError(t, err)
	return &engine.AnnualOutput{
		Tags:      engine.Tags{Collection: "c", Version: 1, Region: "12", Year: 2021},
		Composite: c,
		Centers:   centers,
		Bands: []composite.PackedBand{
			{Name: "ndvi_p75", Type: composite.Int16, Scale: 10000, Values: []int64{7250, 6100, 5000, 0}, Valid: []bool{true, true, true, false}},
		},
	}
}

func TestExtractOnProjectedGrid(t *testing.T) {
	points := []SamplePoint{
		{ID: "a", Region: "12", Longitude: -46.8653, Latitude: -14.9218, Reference: 4},
		{ID: "b", Region: "12", Longitude: -46.86505, Latitude: -14.92178, Reference: 3},
		{ID: "c", Region: "12", Longitude: -46.86502, Latitude: -14.92207, Reference: 3},
		{ID: "far", Region: "12", Longitude: -46.5, Latitude: -14.5, Reference: 3},
	}
	samples, err := Extract(projectedOutput(t, utmCenters), points)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "a", samples[0].Point.ID)
	assert.Equal(t, int64(7250), samples[0].Values["ndvi_p75"])
	assert.Equal(t, "b", samples[1].Point.ID)
	assert.Equal(t, int64(6100), samples[1].Values["ndvi_p75"])
}

func TestExtractRejectsProjectedGridWithoutCenters(t *testing.T) {
	_, err := Extract(projectedOutput(t, nil), []SamplePoint{{ID: "a", Region: "12"}})
	require.ErrorIs(t, err, ErrNoCenters)
}

func TestGeographicGrid(t *testing.T) {
	assert.True(t, grid.Geographic())
	assert.True(t, composite.Grid{Projection: `GEOGCS["WGS 84",DATUM["WGS_1984"]]`}.Geographic())
	assert.False(t, utmGrid.Geographic())
}
