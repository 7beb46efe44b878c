package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/mapbiomas/brazil-cerrado/internal/auxiliary"
	"github.com/mapbiomas/brazil-cerrado/internal/band"
	"github.com/mapbiomas/brazil-cerrado/internal/composite"
	"github.com/mapbiomas/brazil-cerrado/internal/config"
	"github.com/mapbiomas/brazil-cerrado/internal/history"
	"github.com/mapbiomas/brazil-cerrado/internal/log"
	"github.com/mapbiomas/brazil-cerrado/internal/sma"
	"github.com/mapbiomas/brazil-cerrado/internal/telemetry"
)

// Engine turns observation stacks into packed annual composites for one
// collection. It holds no per-region state; histories are owned by callers.
type Engine struct {
	collection *config.Collection
	scenes     SceneSource
	aux        AuxiliarySource

	deriver    *composite.Deriver
	compositor *composite.Compositor
	metrics    *history.Engine
	covariates *auxiliary.Synthesizer
	packer     composite.Packer
	scale      composite.ScaleFunc
	schemas    *composite.SchemaRegistry

	workers   int
	runID     string
	progress  bool
	telemetry *telemetry.Metrics
}

type Option func(*Engine)

// WithSchemaRegistry shares a schema registry between engines.
func WithSchemaRegistry(r *composite.SchemaRegistry) Option {
	return func(e *Engine) { e.schemas = r }
}

func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// WithProgress toggles the terminal progress bar.
func WithProgress(on bool) Option {
	return func(e *Engine) { e.progress = on }
}

func WithTelemetry(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.telemetry = m }
}

func New(c *config.Collection, scenes SceneSource, aux AuxiliarySource, opts ...Option) (*Engine, error) {
	settings, err := c.Settings()
	if err != nil {
		return nil, fmt.Errorf("failed to read compositor settings: %w", err)
	}

	var unmixer *sma.Unmixer
	if c.SMA {
		lib, err := sma.LibraryFor(c.Sensor)
		if err != nil {
			return nil, err
		}
		unmixer = sma.NewUnmixer(lib)
	}
	if aux == nil && len(c.Auxiliary.Layers) > 0 {
		return nil, errors.New("auxiliary layers configured without an auxiliary source")
	}

	e := &Engine{
		collection: c,
		scenes:     scenes,
		aux:        aux,
		deriver:    composite.NewDeriver(c.Indices, unmixer),
		compositor: composite.NewCompositor(settings),
		metrics:    history.NewEngine(c.MetricsSpec()),
		covariates: auxiliary.NewSynthesizer(auxiliary.DefaultTransform),
		packer:     c.Packer(),
		scale:      c.ScaleFunc(),
		schemas:    composite.NewSchemaRegistry(),
		workers:    c.Workers,
		runID:      uuid.NewString(),
		progress:   true,
	}
	if e.workers <= 0 {
		e.workers = 1
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Collection() *config.Collection {
	return e.collection
}

func (e *Engine) RunID() string {
	return e.runID
}

// ExpectedBands lists the band set every output of the collection carries,
// in output order.
func (e *Engine) ExpectedBands() []string {
	c := e.collection
	names := e.compositor.FeatureNames(e.deriver.BandNames(c.Bands))
	names = append(names, e.metrics.Spec().Names()...)
	if c.Auxiliary.Covariates {
		names = append(names, auxiliary.Names...)
	}
	for _, l := range c.Auxiliary.Layers {
		names = append(names, l.Name)
	}
	names = append(names, composite.YearBand)
	sort.Strings(names)
	return names
}

// ProcessYear composites one year of a region, records it in h and returns
// the packed output. Years of a region must be processed in increasing order
// against the same history.
func (e *Engine) ProcessYear(ctx context.Context, region auxiliary.Region, h *history.History, year int) (*AnnualOutput, error) {
	started := time.Now()
	c := e.collection

	scene, err := e.scenes.Scene(ctx, region, year)
	if err != nil {
		return nil, fmt.Errorf("failed to load scene: %w", err)
	}
	if err := scene.validate(); err != nil {
		return nil, fmt.Errorf("invalid scene for region %s year %d: %w", region.ID, year, err)
	}
	aoi := region.Mask(scene.Centers)

	annual, composited, err := e.compose(ctx, region.ID, year, scene, aoi)
	if err != nil {
		return nil, err
	}
	if err := h.Put(annual); err != nil {
		return nil, err
	}

	state, metricBands, err := e.metrics.Compute(h, year, aoi)
	if err != nil {
		return nil, fmt.Errorf("failed to compute rolling metrics: %w", err)
	}

	extra := metricBands
	if c.Auxiliary.Covariates {
		cov, err := e.covariates.Bands(region.ID, scene.Grid, scene.Centers, aoi, year)
		if err != nil {
			return nil, err
		}
		extra = append(extra, cov...)
	}
	for _, l := range c.Auxiliary.Layers {
		values, err := e.aux.Layer(ctx, region, scene.Grid, l.Name, year)
		if err != nil {
			return nil, fmt.Errorf("failed to load auxiliary layer %s: %w", l.Name, err)
		}
		if len(values) != scene.Grid.Len() {
			return nil, fmt.Errorf("auxiliary layer %s has %d pixels, grid has %d", l.Name, len(values), scene.Grid.Len())
		}
		extra = append(extra, composite.NewFeatureBand(l.Name, year, clip(values, aoi)))
	}
	extra = append(extra, yearBand(year, aoi))

	full, err := annual.With(extra...)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble composite: %w", err)
	}

	if err := e.schemas.Check(c.ID, region.ID, year, full.BandNames()); err != nil {
		e.telemetry.SchemaDrift(c.ID)
		return nil, err
	}

	packed, err := e.packer.Pack(full, e.scale, aoi)
	if err != nil {
		return nil, err
	}

	took := time.Since(started)
	e.telemetry.PixelsComposited(c.ID, region.ID, composited)
	e.telemetry.YearProcessed(c.ID, state.String(), took)
	log.Infow("annual composite built",
		"collection", c.ID, "region", region.ID, "year", year,
		"state", state.String(), "pixels", composited, "bands", len(packed), "took", took)

	return &AnnualOutput{
		Tags: Tags{
			Collection: c.ID,
			Version:    c.Version,
			Biome:      c.Biome,
			Region:     region.ID,
			Year:       year,
			RunID:      e.runID,
		},
		State:     state,
		Composite: full,
		Bands:     packed,
		AOI:       aoi,
		Centers:   scene.Centers,
	}, nil
}

// compose runs derivation and temporal reduction over every AOI pixel.
func (e *Engine) compose(ctx context.Context, region string, year int, scene *Scene, aoi []bool) (*composite.AnnualComposite, int, error) {
	temporal := e.deriver.BandNames(scene.Bands)
	builder := composite.NewBuilder(region, year, scene.Grid, e.compositor.FeatureNames(temporal))

	var bar *progressbar.ProgressBar
	description := fmt.Sprintf("Compositing %s/%d", region, year)
	if e.progress {
		bar = progressbar.Default(int64(scene.Grid.Height), description)
	} else {
		bar = progressbar.DefaultSilent(int64(scene.Grid.Height), description)
	}

	var (
		mu             sync.Mutex
		composited     int
		errChan        = make(chan error, 1)
		stopProcessing sync.Once
	)
	wp := workerpool.New(e.workers)
	width := scene.Grid.Width
	for y := 0; y < scene.Grid.Height; y++ {
		row := y
		wp.Submit(func() {
			if err := ctx.Err(); err != nil {
				stopProcessing.Do(func() { errChan <- err })
				return
			}
			count := 0
			for x := 0; x < width; x++ {
				i := row*width + x
				if !aoi[i] {
					continue
				}
				obs := scene.Series[i].Observations
				derived := make([]band.Observation, len(obs))
				for k, o := range obs {
					derived[k] = e.deriver.Derive(o)
				}
				builder.SetPixel(i, e.compositor.Compose(derived, temporal))
				count++
			}
			mu.Lock()
			composited += count
			_ = bar.Add(1)
			mu.Unlock()
		})
	}

	go func() {
		wp.StopWait()
		close(errChan)
	}()
	if err := <-errChan; err != nil {
		// drain remaining workers before touching the builder
		for range errChan {
		}
		return nil, 0, fmt.Errorf("compositing interrupted: %w", err)
	}
	_ = bar.Finish()

	return builder.Build(), composited, nil
}

func clip(values []float64, aoi []bool) []float64 {
	out := make([]float64, len(aoi))
	for i := range out {
		out[i] = band.NoData
		if aoi[i] {
			out[i] = values[i]
		}
	}
	return out
}

func yearBand(year int, aoi []bool) *composite.FeatureBand {
	values := make([]float64, len(aoi))
	for i := range values {
		values[i] = band.NoData
		if aoi[i] {
			values[i] = float64(year)
		}
	}
	return composite.NewFeatureBand(composite.YearBand, year, values)
}
