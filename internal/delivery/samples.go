package delivery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mapbiomas/brazil-cerrado/internal/composite"
	"github.com/mapbiomas/brazil-cerrado/internal/dataset"
	"github.com/mapbiomas/brazil-cerrado/internal/engine"
	"github.com/mapbiomas/brazil-cerrado/internal/log"
)

// SampleSink extracts training rows from each output as it is produced.
type SampleSink struct {
	points   []dataset.SamplePoint
	fraction func(region string) float64

	mu      sync.Mutex
	samples []dataset.Sample
	bands   []composite.PackedBand
}

func NewSampleSink(points []dataset.SamplePoint, fraction func(region string) float64) *SampleSink {
	return &SampleSink{points: points, fraction: fraction}
}

func (s *SampleSink) Write(_ context.Context, out *engine.AnnualOutput) error {
	t := out.Tags
	extracted, err := dataset.Extract(out, s.points)
	if err != nil {
		return err
	}
	kept := dataset.Subsample(extracted, t.Region, t.Year, s.fraction(t.Region))
	log.Debugw("samples extracted", "region", t.Region, "year", t.Year, "found", len(extracted), "kept", len(kept))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bands == nil {
		s.bands = out.Bands
	}
	s.samples = append(s.samples, kept...)
	return nil
}

// Samples returns every kept row ordered by region, year and point id.
func (s *SampleSink) Samples() []dataset.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]dataset.Sample(nil), s.samples...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Point.Region != b.Point.Region {
			return a.Point.Region < b.Point.Region
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Point.ID < b.Point.ID
	})
	return out
}

func (s *SampleSink) Bands() []composite.PackedBand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bands
}

// SchemaPath is the band manifest written next to a training table.
func SchemaPath(tablePath string) string {
	return strings.TrimSuffix(tablePath, ".csv") + "_schema.csv"
}

// ExportSamples composites the collection and writes the packed feature
// vectors at the points of pointsPath to outPath.
func ExportSamples(ctx context.Context, opts Options, pointsPath, outPath string) (int, error) {
	c, regions, err := LoadCollection(opts)
	if err != nil {
		return 0, err
	}
	points, err := dataset.LoadPoints(pointsPath)
	if err != nil {
		return 0, err
	}
	e, err := NewEngine(c, opts)
	if err != nil {
		return 0, err
	}

	sink := NewSampleSink(points, c.Fraction)
	if err := engine.NewRunner(e, sink).Run(ctx, regions, c.YearRange()); err != nil {
		notifyFailure(fmt.Sprintf("samples for %s v%d", c.ID, c.Version), err)
		return 0, err
	}

	bands := sink.Bands()
	if len(bands) == 0 {
		return 0, errors.New("no outputs produced, nothing to sample")
	}
	samples := sink.Samples()
	if err := dataset.WriteTable(outPath, e.ExpectedBands(), samples); err != nil {
		return 0, err
	}
	if err := dataset.WriteSchema(SchemaPath(outPath), bands); err != nil {
		return 0, err
	}
	log.Infow("training samples exported", "path", outPath, "rows", len(samples))
	notifySuccess(fmt.Sprintf("Training samples for %s v%d exported: %d rows", c.ID, c.Version, len(samples)))
	return len(samples), nil
}
