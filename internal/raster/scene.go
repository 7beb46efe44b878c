// Package raster reads observation stacks and auxiliary layers from GeoTIFF
// files and writes packed composites back to GeoTIFF.
package raster

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"

	"github.com/mapbiomas/brazil-cerrado/internal/auxiliary"
	"github.com/mapbiomas/brazil-cerrado/internal/band"
	"github.com/mapbiomas/brazil-cerrado/internal/composite"
	"github.com/mapbiomas/brazil-cerrado/internal/engine"
	"github.com/mapbiomas/brazil-cerrado/internal/log"
	"github.com/mapbiomas/brazil-cerrado/internal/utils"
)

const sceneDateLayout = "2006-01-02"

// GeoTIFFSource reads <root>/<region>/<YYYY-MM-DD>.tif scenes. Raster band k
// holds the sensor band bands[k].
type GeoTIFFSource struct {
	root  string
	bands []string
}

func NewGeoTIFFSource(root string, bands []string) *GeoTIFFSource {
	return &GeoTIFFSource{root: root, bands: append([]string(nil), bands...)}
}

// SceneDates lists the acquisition dates of a region within year, ascending.
func SceneDates(dir string, year int) ([]time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenes folder: %w", err)
	}
	var dates []time.Time
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".tif") {
			continue
		}
		date, err := time.Parse(sceneDateLayout, strings.TrimSuffix(name, ".tif"))
		if err != nil {
			log.Debugf("skipping %s: not a dated scene", name)
			continue
		}
		if date.Year() == year {
			dates = append(dates, date)
		}
	}
	return utils.SortDates(dates, true), nil
}

func (s *GeoTIFFSource) Scene(ctx context.Context, region auxiliary.Region, year int) (*engine.Scene, error) {
	dir := filepath.Join(s.root, region.ID)
	dates, err := SceneDates(dir, year)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("no scenes for region %s in %d", region.ID, year)
	}

	var scene *engine.Scene
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, date.Format(sceneDateLayout)+".tif")

		var (
			grid    composite.Grid
			rasters [][]float64
			centers []orb.Point
		)
		utils.ExecuteWithMutex(func() {
			grid, rasters, centers, err = readStack(path, len(s.bands), scene == nil)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read scene %s: %w", path, err)
		}

		if scene == nil {
			scene = &engine.Scene{
				Grid:    grid,
				Centers: centers,
				Series:  make([]band.Series, grid.Len()),
				Bands:   append([]string(nil), s.bands...),
			}
			for i, c := range centers {
				scene.Series[i].Pixel = band.Pixel{X: i % grid.Width, Y: i / grid.Width, Lon: c.Lon(), Lat: c.Lat()}
			}
		} else if grid.Key() != scene.Grid.Key() {
			return nil, fmt.Errorf("scene %s grid %s differs from %s", path, grid.Key(), scene.Grid.Key())
		}

		for i := range scene.Series {
			values := make(band.Values, len(s.bands))
			for k, name := range s.bands {
				values[name] = rasters[k][i]
			}
			scene.Series[i].Observations = append(scene.Series[i].Observations, band.NewObservation(date, values))
		}
	}
	log.Debugw("scene stack loaded", "region", region.ID, "year", year, "dates", len(dates))
	return scene, nil
}

// readStack reads every band of a dataset into float rasters, no-data as NaN.
// Pixel centers are only computed when withCenters is set.
func readStack(path string, nBands int, withCenters bool) (composite.Grid, [][]float64, []orb.Point, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return composite.Grid{}, nil, nil, fmt.Errorf("failed to open TIFF file: %w", err)
	}
	defer ds.Close()

	grid, err := gridOf(ds)
	if err != nil {
		return composite.Grid{}, nil, nil, err
	}
	bands := ds.Bands()
	if len(bands) < nBands {
		return composite.Grid{}, nil, nil, fmt.Errorf("dataset has %d bands, %d configured", len(bands), nBands)
	}

	rasters := make([][]float64, nBands)
	for k := 0; k < nBands; k++ {
		rasters[k], err = readBand(bands[k], grid)
		if err != nil {
			return composite.Grid{}, nil, nil, err
		}
	}

	var centers []orb.Point
	if withCenters {
		centers, err = pixelCenters(ds, grid)
		if err != nil {
			return composite.Grid{}, nil, nil, err
		}
	}
	return grid, rasters, centers, nil
}

func gridOf(ds *godal.Dataset) (composite.Grid, error) {
	gt, err := ds.GeoTransform()
	if err != nil {
		return composite.Grid{}, fmt.Errorf("failed to get GeoTransform: %w", err)
	}
	st := ds.Structure()
	return composite.Grid{Width: st.SizeX, Height: st.SizeY, GeoTransform: gt, Projection: ds.Projection()}, nil
}

func readBand(b godal.Band, grid composite.Grid) ([]float64, error) {
	data := make([]float64, grid.Len())
	if err := b.Read(0, 0, data, grid.Width, grid.Height); err != nil {
		return nil, fmt.Errorf("failed to read raster data: %w", err)
	}
	if nodata, ok := b.NoData(); ok {
		for i, v := range data {
			if v == nodata || (math.IsNaN(nodata) && math.IsNaN(v)) {
				data[i] = band.NoData
			}
		}
	}
	return data, nil
}

// pixelCenters converts every pixel center to WGS84 lon/lat.
func pixelCenters(ds *godal.Dataset, grid composite.Grid) ([]orb.Point, error) {
	n := grid.Len()
	xs, ys := make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i], ys[i] = grid.PixelCenter(i)
	}

	srcSR := ds.SpatialRef()
	if srcSR != nil {
		defer srcSR.Close()
		dstSR, err := godal.NewSpatialRefFromEPSG(4326)
		if err != nil {
			return nil, fmt.Errorf("failed to build WGS84 reference: %w", err)
		}
		defer dstSR.Close()
		if !srcSR.IsSame(dstSR) {
			tr, err := godal.NewTransform(srcSR, dstSR)
			if err != nil {
				return nil, fmt.Errorf("failed to build transform: %w", err)
			}
			defer tr.Close()
			if err := tr.TransformEx(xs, ys, nil, nil); err != nil {
				return nil, fmt.Errorf("transform error: %w", err)
			}
		}
	}

	centers := make([]orb.Point, n)
	for i := range centers {
		centers[i] = orb.Point{xs[i], ys[i]}
	}
	return centers, nil
}

// GeoTIFFAuxiliary reads <root>/<name>.tif, or <root>/<name>_<year>.tif when
// a per-year file exists.
type GeoTIFFAuxiliary struct {
	root string
}

func NewGeoTIFFAuxiliary(root string) *GeoTIFFAuxiliary {
	return &GeoTIFFAuxiliary{root: root}
}

func (a *GeoTIFFAuxiliary) LayerPath(name string, year int) string {
	perYear := filepath.Join(a.root, fmt.Sprintf("%s_%d.tif", name, year))
	if _, err := os.Stat(perYear); err == nil {
		return perYear
	}
	return filepath.Join(a.root, name+".tif")
}

func (a *GeoTIFFAuxiliary) Layer(_ context.Context, region auxiliary.Region, grid composite.Grid, name string, year int) ([]float64, error) {
	path := a.LayerPath(name, year)
	var (
		values []float64
		err    error
	)
	utils.ExecuteWithMutex(func() {
		values, err = readLayer(path, grid)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read layer %s for region %s: %w", name, region.ID, err)
	}
	return values, nil
}

func readLayer(path string, grid composite.Grid) ([]float64, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open TIFF file: %w", err)
	}
	defer ds.Close()

	layerGrid, err := gridOf(ds)
	if err != nil {
		return nil, err
	}
	if layerGrid.Key() != grid.Key() {
		return nil, fmt.Errorf("layer grid %s is not aligned with %s", layerGrid.Key(), grid.Key())
	}
	return readBand(ds.Bands()[0], grid)
}

// ReadReference reads the first band of a reference class map together with
// the WGS84 center of each pixel.
func ReadReference(path string) (composite.Grid, []float64, []orb.Point, error) {
	var (
		grid    composite.Grid
		rasters [][]float64
		centers []orb.Point
		err     error
	)
	utils.ExecuteWithMutex(func() {
		grid, rasters, centers, err = readStack(path, 1, true)
	})
	if err != nil {
		return composite.Grid{}, nil, nil, fmt.Errorf("failed to read reference map %s: %w", path, err)
	}
	return grid, rasters[0], centers, nil
}
