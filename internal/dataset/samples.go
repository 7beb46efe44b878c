package dataset

import (
	"encoding/csv"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/mapbiomas/brazil-cerrado/internal/composite"
	"github.com/mapbiomas/brazil-cerrado/internal/engine"
)

// SamplePoint is one labelled training location.
type SamplePoint struct {
	ID        string  `csv:"id"`
	Region    string  `csv:"region"`
	Longitude float64 `csv:"longitude"`
	Latitude  float64 `csv:"latitude"`
	Reference int     `csv:"reference"`
}

// BandSchemaRow documents one packed band of a training table.
type BandSchemaRow struct {
	Name  string  `csv:"band"`
	Type  string  `csv:"type"`
	Scale float64 `csv:"scale"`
}

// Sample is the packed feature vector at a sample point.
type Sample struct {
	Point  SamplePoint
	Year   int
	Values map[string]int64
}

func LoadPoints(path string) ([]SamplePoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sample points: %w", err)
	}
	defer file.Close()

	var points []SamplePoint
	if err := gocsv.UnmarshalFile(file, &points); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sample points: %w", err)
	}
	return points, nil
}

// PixelIndex maps a lon/lat to the row-major pixel holding it through the
// geotransform of a north-up geographic grid.
func PixelIndex(grid composite.Grid, lon, lat float64) (int, bool) {
	gt := grid.GeoTransform
	if gt[1] == 0 || gt[5] == 0 {
		return 0, false
	}
	col := int(math.Floor((lon - gt[0]) / gt[1]))
	row := int(math.Floor((lat - gt[3]) / gt[5]))
	if col < 0 || col >= grid.Width || row < 0 || row >= grid.Height {
		return 0, false
	}
	return row*grid.Width + col, true
}

// Extract samples the packed output at the points of its region. Points that
// fall off the grid or on any masked band are dropped.
func Extract(out *engine.AnnualOutput, points []SamplePoint) ([]Sample, error) {
	locator, err := NewLocator(out.Composite.Grid(), out.Centers)
	if err != nil {
		return nil, fmt.Errorf("cannot locate samples of region %s year %d: %w", out.Tags.Region, out.Tags.Year, err)
	}
	var samples []Sample
	for _, p := range points {
		if p.Region != out.Tags.Region {
			continue
		}
		i, ok := locator.Pixel(p.Longitude, p.Latitude)
		if !ok {
			continue
		}
		values := make(map[string]int64, len(out.Bands))
		valid := true
		for _, b := range out.Bands {
			if !b.Valid[i] {
				valid = false
				break
			}
			values[b.Name] = b.Values[i]
		}
		if valid {
			samples = append(samples, Sample{Point: p, Year: out.Tags.Year, Values: values})
		}
	}
	return samples, nil
}

// Subsample keeps round(fraction·n) samples chosen by a seed derived from
// region and year, so repeated runs pick the same points.
func Subsample(samples []Sample, region string, year int, fraction float64) []Sample {
	if fraction >= 1 || len(samples) == 0 {
		return samples
	}
	keep := int(math.Round(fraction * float64(len(samples))))
	h := fnv.New64a()
	fmt.Fprintf(h, "%s/%d", region, year)
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	idx := rng.Perm(len(samples))[:keep]
	sort.Ints(idx)
	out := make([]Sample, keep)
	for k, i := range idx {
		out[k] = samples[i]
	}
	return out
}

// WriteTable writes samples as CSV with one column per band, in band order.
// The year is carried by the year band.
func WriteTable(path string, bands []string, samples []Sample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create samples directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create samples file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := append([]string{"id", "region", "reference"}, bands...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{s.Point.ID, s.Point.Region, strconv.Itoa(s.Point.Reference)}
		for _, b := range bands {
			row = append(row, strconv.FormatInt(s.Values[b], 10))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteSchema writes the band manifest next to a training table.
func WriteSchema(path string, bands []composite.PackedBand) error {
	rows := make([]BandSchemaRow, len(bands))
	for i, b := range bands {
		rows[i] = BandSchemaRow{Name: b.Name, Type: b.Type.String(), Scale: b.Scale}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create schema file: %w", err)
	}
	defer file.Close()
	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	return nil
}
