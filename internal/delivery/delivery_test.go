package delivery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapbiomas/brazil-cerrado/internal/cache"
	"github.com/mapbiomas/brazil-cerrado/internal/composite"
	"github.com/mapbiomas/brazil-cerrado/internal/dataset"
	"github.com/mapbiomas/brazil-cerrado/internal/engine"
	"github.com/mapbiomas/brazil-cerrado/internal/ml"
)

var grid = composite.Grid{Width: 2, Height: 1, GeoTransform: [6]float64{-48, 1, 0, -15, 0, -1}}

func annualOutput(t *testing.T, region string, year int) *engine.AnnualOutput {
	t.Helper()
	c, err := composite.NewAnnualComposite(region, year, grid)
	require.NoError(t, err)
	return &engine.AnnualOutput{
		Tags:      engine.Tags{Collection: "c", Version: 1, Biome: "CERRADO", Region: region, Year: year, RunID: "run-1"},
		Composite: c,
		AOI:       []bool{true, true},
		Bands: []composite.PackedBand{
			{Name: "ndvi_median", Type: composite.Int16, Scale: 10000, Values: []int64{7250, 1200}, Valid: []bool{true, true}},
			{Name: "year", Type: composite.Int16, Scale: 1, Values: []int64{int64(year), int64(year)}, Valid: []bool{true, true}},
		},
	}
}

// fakeWrite touches the output path so the ledger sees an existing file.
func fakeWrite(calls *int) func(string, *engine.AnnualOutput) error {
	return func(path string, _ *engine.AnnualOutput) error {
		*calls++
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		return os.WriteFile(path, []byte("tif"), 0644)
	}
}

func TestExportSinkSkipsLedgeredOutputs(t *testing.T) {
	dir := t.TempDir()
	ledger := cache.NewFileCacheAt[ExportRecord](filepath.Join(dir, "exports"))
	calls := 0
	sink := NewExportSink(filepath.Join(dir, "composites"), ledger, Options{})
	sink.write = fakeWrite(&calls)

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, annualOutput(t, "12", 2021)))
	require.NoError(t, sink.Write(ctx, annualOutput(t, "12", 2021)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, sink.Skipped())

	want := filepath.Join(dir, "composites", "c", "v1", "CERRADO_12_2021_v1.tif")
	assert.Equal(t, []string{want}, sink.Written())

	rec, ok := ledger.Get(ledgerKey(ledger, annualOutput(t, "12", 2021).Tags))
	require.True(t, ok)
	assert.Equal(t, want, rec.Path)
	assert.Equal(t, []string{"ndvi_median", "year"}, rec.Bands)
}

func TestExportSinkRewritesWhenFileIsGone(t *testing.T) {
	dir := t.TempDir()
	ledger := cache.NewFileCacheAt[ExportRecord](filepath.Join(dir, "exports"))
	calls := 0
	sink := NewExportSink(filepath.Join(dir, "composites"), ledger, Options{})
	sink.write = fakeWrite(&calls)

	out := annualOutput(t, "12", 2021)
	require.NoError(t, sink.Write(context.Background(), out))
	require.NoError(t, os.Remove(sink.Written()[0]))
	require.NoError(t, sink.Write(context.Background(), out))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, sink.Skipped())
}

func TestExportSinkForceAndPreview(t *testing.T) {
	dir := t.TempDir()
	ledger := cache.NewFileCacheAt[ExportRecord](filepath.Join(dir, "exports"))
	calls := 0
	sink := NewExportSink(filepath.Join(dir, "composites"), ledger, Options{Force: true, Preview: "ndvi_median"})
	sink.write = fakeWrite(&calls)

	out := annualOutput(t, "12", 2021)
	require.NoError(t, sink.Write(context.Background(), out))
	require.NoError(t, sink.Write(context.Background(), out))
	assert.Equal(t, 2, calls)

	_, err := os.Stat(filepath.Join(dir, "composites", "c", "v1", "CERRADO_12_2021_v1_ndvi_median.png"))
	assert.NoError(t, err)
}

func TestExportSinkPropagatesWriteErrors(t *testing.T) {
	dir := t.TempDir()
	ledger := cache.NewFileCacheAt[ExportRecord](dir)
	sink := NewExportSink(dir, ledger, Options{})
	sink.write = func(string, *engine.AnnualOutput) error { return errors.New("disk full") }

	require.Error(t, sink.Write(context.Background(), annualOutput(t, "12", 2021)))
	_, ok := ledger.Get(ledgerKey(ledger, annualOutput(t, "12", 2021).Tags))
	assert.False(t, ok)
}

func TestSampleSinkOrdersAndSubsamples(t *testing.T) {
	points := []dataset.SamplePoint{
		{ID: "b", Region: "12", Longitude: -46.5, Latitude: -15.5, Reference: 3},
		{ID: "a", Region: "12", Longitude: -47.5, Latitude: -15.5, Reference: 4},
		{ID: "z", Region: "21", Longitude: -47.5, Latitude: -15.5, Reference: 12},
	}
	fraction := func(region string) float64 {
		if region == "21" {
			return 0
		}
		return 1
	}
	sink := NewSampleSink(points, fraction)
	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, annualOutput(t, "12", 2021)))
	require.NoError(t, sink.Write(ctx, annualOutput(t, "21", 2020)))
	require.NoError(t, sink.Write(ctx, annualOutput(t, "12", 2020)))

	samples := sink.Samples()
	require.Len(t, samples, 4)
	var got []string
	for _, s := range samples {
		got = append(got, s.Point.ID)
	}
	assert.Equal(t, []string{"a", "b", "a", "b"}, got)
	assert.Equal(t, 2020, samples[0].Year)
	assert.Equal(t, int64(7250), samples[0].Values["ndvi_median"])
	assert.Len(t, sink.Bands(), 2)
}

func TestSchemaPath(t *testing.T) {
	assert.Equal(t, "/x/train_schema.csv", SchemaPath("/x/train.csv"))
}

type fakeClassifier struct{ err error }

func (f fakeClassifier) Classify(_ context.Context, out *engine.AnnualOutput) (*ml.Classification, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ml.Classification{Tags: out.Tags, Classes: []int{4, ml.NoClass}}, nil
}

func TestClassifySinkWritesClassMaps(t *testing.T) {
	dir := t.TempDir()
	sink := NewClassifySink(fakeClassifier{}, dir)
	var gotClasses []int
	sink.write = func(path string, g composite.Grid, tags engine.Tags, classes []int) error {
		gotClasses = classes
		assert.Equal(t, grid, g)
		return nil
	}

	require.NoError(t, sink.Write(context.Background(), annualOutput(t, "12", 2021)))
	assert.Equal(t, []int{4, ml.NoClass}, gotClasses)
	assert.Equal(t, []string{filepath.Join(dir, "c", "v1", "CERRADO_12_2021_v1.tif")}, sink.Written())

	sink = NewClassifySink(fakeClassifier{err: errors.New("unavailable")}, dir)
	require.Error(t, sink.Write(context.Background(), annualOutput(t, "12", 2021)))
}

const regionsJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"region_id":"21"},"geometry":{"type":"Polygon","coordinates":[[[-47,-16],[-46,-16],[-46,-15],[-47,-15],[-47,-16]]]}},
{"type":"Feature","properties":{"region_id":"12"},"geometry":{"type":"Polygon","coordinates":[[[-48,-16],[-47,-16],[-47,-15],[-48,-15],[-48,-16]]]}}
]}`

func TestListRegions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.geojson")
	require.NoError(t, os.WriteFile(path, []byte(regionsJSON), 0644))

	ids, err := ListRegions(Options{RegionsPath: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"12", "21"}, ids)
}

func TestSchemaFromConfig(t *testing.T) {
	bands, err := Schema(filepath.Join("..", "..", "configs", "cerrado_landsat.yaml"))
	require.NoError(t, err)
	assert.Contains(t, bands, "ndvi_median_wet")
	assert.Contains(t, bands, "amp_ndvi_3yr")
	assert.Contains(t, bands, "fire_age")
	assert.Contains(t, bands, "year")
}

func TestGeneratePointsStratifiesInsideRegion(t *testing.T) {
	dir := t.TempDir()
	regions := filepath.Join(dir, "regions.geojson")
	require.NoError(t, os.WriteFile(regions, []byte(regionsJSON), 0644))

	var read []string
	prev := readReference
	readReference = func(path string) (composite.Grid, []float64, []orb.Point, error) {
		read = append(read, path)
		centers := []orb.Point{{-47.8, -15.2}, {-47.2, -15.2}, {-47.5, -15.8}, {-46.5, -15.5}}
		return composite.Grid{Width: 4, Height: 1}, []float64{3, 3, 4, 3}, centers, nil
	}
	t.Cleanup(func() { readReference = prev })

	opts := Options{
		ConfigPath:  filepath.Join("..", "..", "configs", "cerrado_landsat.yaml"),
		RegionsPath: regions,
		Regions:     []string{"12"},
	}
	outPath := filepath.Join(dir, "points.csv")
	n, err := GeneratePoints(opts, Allocation{Size: 4, Min: 1, ReferenceDir: filepath.Join(dir, "reference")}, outPath)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{filepath.Join(dir, "reference", "12.tif")}, read)

	points, err := dataset.LoadPoints(outPath)
	require.NoError(t, err)
	require.Len(t, points, 3)
	for _, p := range points {
		assert.Equal(t, "12", p.Region)
		assert.NotEqual(t, -46.5, p.Longitude, "pixel outside the region was drawn")
	}
	assert.Equal(t, 4, points[2].Reference)

	_, err = GeneratePoints(opts, Allocation{Size: 0}, outPath)
	assert.Error(t, err)
}
