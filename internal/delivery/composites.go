package delivery

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mapbiomas/brazil-cerrado/internal/cache"
	"github.com/mapbiomas/brazil-cerrado/internal/engine"
	"github.com/mapbiomas/brazil-cerrado/internal/log"
	"github.com/mapbiomas/brazil-cerrado/internal/notification"
	"github.com/mapbiomas/brazil-cerrado/internal/properties"
	"github.com/mapbiomas/brazil-cerrado/internal/raster"
	"github.com/mapbiomas/brazil-cerrado/internal/telemetry"
	"github.com/mapbiomas/brazil-cerrado/output"
)

// ExportRecord is the ledger entry of one written output.
type ExportRecord struct {
	Path  string   `json:"path"`
	RunID string   `json:"run_id"`
	Bands []string `json:"bands"`
}

// ExportSink writes outputs as GeoTIFFs and records them in the export
// ledger. Outputs already in the ledger are skipped unless forced; their
// years are still composited upstream so histories stay complete.
type ExportSink struct {
	root    string
	ledger  cache.Store[ExportRecord]
	metrics *telemetry.Metrics
	preview string
	force   bool
	write   func(path string, out *engine.AnnualOutput) error

	mu      sync.Mutex
	written []string
	skipped int
}

func NewExportSink(root string, ledger cache.Store[ExportRecord], opts Options) *ExportSink {
	return &ExportSink{
		root:    root,
		ledger:  ledger,
		metrics: opts.Metrics,
		preview: opts.Preview,
		force:   opts.Force,
		write:   raster.WriteComposite,
	}
}

func ledgerKey(ledger cache.Store[ExportRecord], t engine.Tags) string {
	return ledger.Key(t.Collection, t.Version, t.Region, t.Year)
}

func (s *ExportSink) Write(_ context.Context, out *engine.AnnualOutput) error {
	t := out.Tags
	key := ledgerKey(s.ledger, t)
	if !s.force {
		if rec, ok := s.ledger.Get(key); ok {
			if _, err := os.Stat(rec.Path); err == nil {
				log.Infow("output already exported", "region", t.Region, "year", t.Year, "path", rec.Path)
				s.metrics.OutputWritten(t.Collection, true)
				s.mu.Lock()
				s.skipped++
				s.mu.Unlock()
				return nil
			}
		}
	}

	path := raster.OutputPath(s.root, t)
	if err := s.write(path, out); err != nil {
		return err
	}
	if err := s.ledger.Set(key, ExportRecord{Path: path, RunID: t.RunID, Bands: out.BandNames()}); err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}
	s.metrics.OutputWritten(t.Collection, false)

	if s.preview != "" {
		if pb, ok := out.Band(s.preview); ok {
			png := strings.TrimSuffix(path, ".tif") + "_" + s.preview + ".png"
			if err := output.SavePreview(png, pb, out.Composite.Grid()); err != nil {
				log.Warnw("failed to save preview", "path", png, "error", err)
			}
		} else {
			log.Warnw("preview band not in output", "band", s.preview)
		}
	}

	s.mu.Lock()
	s.written = append(s.written, path)
	s.mu.Unlock()
	log.Debugw("output written", "path", path)
	return nil
}

// Written lists the paths written so far, sorted.
func (s *ExportSink) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.written...)
	sort.Strings(out)
	return out
}

func (s *ExportSink) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// Report summarises a composite run.
type Report struct {
	RunID   string
	Written []string
	Skipped int
	Took    time.Duration
}

// RunComposites builds and exports every (region, year) of a collection.
func RunComposites(ctx context.Context, opts Options) (*Report, error) {
	started := time.Now()
	c, regions, err := LoadCollection(opts)
	if err != nil {
		return nil, err
	}
	e, err := NewEngine(c, opts)
	if err != nil {
		return nil, err
	}

	ledger := cache.NewFileCache[ExportRecord]("exports")
	sink := NewExportSink(properties.DataPath("composites"), ledger, opts)

	log.Infow("starting composite run", "collection", c.ID, "version", c.Version,
		"regions", len(regions), "years", len(c.YearRange()), "run_id", e.RunID())
	if err := engine.NewRunner(e, sink).Run(ctx, regions, c.YearRange()); err != nil {
		notifyFailure(fmt.Sprintf("collection %s v%d", c.ID, c.Version), err)
		return nil, err
	}

	report := &Report{RunID: e.RunID(), Written: sink.Written(), Skipped: sink.Skipped(), Took: time.Since(started)}
	notifySuccess(fmt.Sprintf("Collection %s v%d exported", c.ID, c.Version),
		notification.DiscordField{Name: "Written", Value: strconv.Itoa(len(report.Written)), Inline: true},
		notification.DiscordField{Name: "Skipped", Value: strconv.Itoa(report.Skipped), Inline: true},
		notification.DiscordField{Name: "Run", Value: report.RunID},
	)
	return report, nil
}
