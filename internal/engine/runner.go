package engine

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/mapbiomas/brazil-cerrado/internal/auxiliary"
	"github.com/mapbiomas/brazil-cerrado/internal/history"
	"github.com/mapbiomas/brazil-cerrado/internal/log"
)

// Sink receives every annual output in year order per region.
type Sink interface {
	Write(ctx context.Context, out *AnnualOutput) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, out *AnnualOutput) error

func (f SinkFunc) Write(ctx context.Context, out *AnnualOutput) error {
	return f(ctx, out)
}

// Runner processes regions in parallel and the years of each region in
// sequence, one history per region.
type Runner struct {
	engine      *Engine
	sink        Sink
	parallelism int
}

func NewRunner(e *Engine, sink Sink) *Runner {
	p := e.collection.RegionParallelism
	if p <= 0 {
		p = 1
	}
	return &Runner{engine: e, sink: sink, parallelism: p}
}

// Run stops every region at the first error, schema drift included.
func (r *Runner) Run(ctx context.Context, regions []auxiliary.Region, years []int) error {
	sorted := append([]int(nil), years...)
	sort.Ints(sorted)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, region := range regions {
		region := region
		g.Go(func() error {
			return r.runRegion(ctx, region, sorted)
		})
	}
	return g.Wait()
}

func (r *Runner) runRegion(ctx context.Context, region auxiliary.Region, years []int) error {
	h := history.New(region.ID)
	for _, year := range years {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := r.engine.ProcessYear(ctx, region, h, year)
		if err != nil {
			log.Errorw("annual composite failed", "region", region.ID, "year", year, "error", err)
			return fmt.Errorf("region %s year %d: %w", region.ID, year, err)
		}
		if err := r.sink.Write(ctx, out); err != nil {
			return fmt.Errorf("failed to write region %s year %d: %w", region.ID, year, err)
		}
	}
	return nil
}
