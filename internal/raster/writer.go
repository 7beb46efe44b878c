package raster

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/airbusgeo/godal"

	"github.com/mapbiomas/brazil-cerrado/internal/composite"
	"github.com/mapbiomas/brazil-cerrado/internal/engine"
	"github.com/mapbiomas/brazil-cerrado/internal/utils"
)

// OutputName follows <BIOME>_<region>_<year>_v<version>.tif.
func OutputName(t engine.Tags) string {
	return fmt.Sprintf("%s_%s_%d_v%d.tif", t.Biome, t.Region, t.Year, t.Version)
}

// OutputPath places an output under <root>/<collection>/v<version>/.
func OutputPath(root string, t engine.Tags) string {
	return filepath.Join(root, t.Collection, fmt.Sprintf("v%d", t.Version), OutputName(t))
}

// storage picks one GeoTIFF data type wide enough for every band, since a
// GeoTIFF holds a single type. Int8 is widened to Int16 for GDAL builds
// without signed bytes; Int64 is stored as Float64.
func storage(bands []composite.PackedBand) (godal.DataType, float64) {
	widest := composite.Int8
	for _, b := range bands {
		if b.Type > widest {
			widest = b.Type
		}
	}
	switch widest {
	case composite.Int8, composite.Int16:
		return godal.Int16, math.MinInt16
	case composite.Int32:
		return godal.Int32, math.MinInt32
	default:
		return godal.Float64, math.NaN()
	}
}

// WriteComposite writes a packed output as a multi-band GeoTIFF with tags
// as dataset metadata and band names as band metadata.
func WriteComposite(path string, out *engine.AnnualOutput) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	var err error
	utils.ExecuteWithMutex(func() {
		err = writeComposite(path, out)
	})
	return err
}

func writeComposite(path string, out *engine.AnnualOutput) error {
	grid := out.Composite.Grid()
	dtype, nodata := storage(out.Bands)

	tmp := path + ".tmp"
	ds, err := godal.Create(godal.GTiff, tmp, len(out.Bands), dtype, grid.Width, grid.Height,
		godal.CreationOption("COMPRESS=DEFLATE", "TILED=YES"))
	if err != nil {
		return fmt.Errorf("failed to create TIFF file: %w", err)
	}

	if err := ds.SetGeoTransform(grid.GeoTransform); err != nil {
		ds.Close()
		return fmt.Errorf("failed to set GeoTransform: %w", err)
	}
	if grid.Projection != "" {
		if err := ds.SetProjection(grid.Projection); err != nil {
			ds.Close()
			return fmt.Errorf("failed to set projection: %w", err)
		}
	}

	tags := out.Tags.Map()
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := ds.SetMetadata(k, tags[k]); err != nil {
			ds.Close()
			return fmt.Errorf("failed to set metadata %s: %w", k, err)
		}
	}

	bands := ds.Bands()
	for k, pb := range out.Bands {
		if err := writeBand(bands[k], pb, dtype, nodata, grid); err != nil {
			ds.Close()
			return fmt.Errorf("failed to write band %s: %w", pb.Name, err)
		}
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("failed to close TIFF file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp TIFF file: %w", err)
	}
	return nil
}

func writeBand(b godal.Band, pb composite.PackedBand, dtype godal.DataType, nodata float64, grid composite.Grid) error {
	if err := b.SetNoData(nodata); err != nil {
		return err
	}
	if err := b.SetMetadata("name", pb.Name); err != nil {
		return err
	}
	if err := b.SetMetadata("type", pb.Type.String()); err != nil {
		return err
	}
	if err := b.SetMetadata("scale", fmt.Sprint(pb.Scale)); err != nil {
		return err
	}

	switch dtype {
	case godal.Int16:
		buf := make([]int16, len(pb.Values))
		for i, v := range pb.Values {
			buf[i] = int16(nodata)
			if pb.Valid[i] {
				buf[i] = int16(v)
			}
		}
		return b.Write(0, 0, buf, grid.Width, grid.Height)
	case godal.Int32:
		buf := make([]int32, len(pb.Values))
		for i, v := range pb.Values {
			buf[i] = int32(nodata)
			if pb.Valid[i] {
				buf[i] = int32(v)
			}
		}
		return b.Write(0, 0, buf, grid.Width, grid.Height)
	default:
		buf := make([]float64, len(pb.Values))
		for i, v := range pb.Values {
			buf[i] = nodata
			if pb.Valid[i] {
				buf[i] = float64(v)
			}
		}
		return b.Write(0, 0, buf, grid.Width, grid.Height)
	}
}

// WriteClassification writes a single Int16 class band; -1 is no-data.
func WriteClassification(path string, grid composite.Grid, tags engine.Tags, classes []int) error {
	if len(classes) != grid.Len() {
		return fmt.Errorf("classification has %d pixels, grid has %d", len(classes), grid.Len())
	}
	pb := composite.PackedBand{
		Name:   "classification",
		Type:   composite.Int16,
		Scale:  1,
		Values: make([]int64, len(classes)),
		Valid:  make([]bool, len(classes)),
	}
	for i, c := range classes {
		pb.Values[i] = int64(c)
		pb.Valid[i] = c >= 0
	}
	c, err := composite.NewAnnualComposite(tags.Region, tags.Year, grid)
	if err != nil {
		return err
	}
	return WriteComposite(path, &engine.AnnualOutput{Tags: tags, Composite: c, Bands: []composite.PackedBand{pb}})
}
