package delivery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mapbiomas/brazil-cerrado/internal/composite"
	"github.com/mapbiomas/brazil-cerrado/internal/engine"
	"github.com/mapbiomas/brazil-cerrado/internal/log"
	"github.com/mapbiomas/brazil-cerrado/internal/ml"
	"github.com/mapbiomas/brazil-cerrado/internal/properties"
	"github.com/mapbiomas/brazil-cerrado/internal/raster"
)

type Classifier interface {
	Classify(ctx context.Context, out *engine.AnnualOutput) (*ml.Classification, error)
}

// ClassifySink sends each output to the classifier and writes the class map.
type ClassifySink struct {
	classifier Classifier
	root       string
	write      func(path string, grid composite.Grid, tags engine.Tags, classes []int) error

	mu      sync.Mutex
	written []string
}

func NewClassifySink(classifier Classifier, root string) *ClassifySink {
	return &ClassifySink{classifier: classifier, root: root, write: raster.WriteClassification}
}

func (s *ClassifySink) Write(ctx context.Context, out *engine.AnnualOutput) error {
	result, err := s.classifier.Classify(ctx, out)
	if err != nil {
		return fmt.Errorf("failed to classify region %s year %d: %w", out.Tags.Region, out.Tags.Year, err)
	}
	path := raster.OutputPath(s.root, out.Tags)
	if err := s.write(path, out.Composite.Grid(), out.Tags, result.Classes); err != nil {
		return err
	}
	s.mu.Lock()
	s.written = append(s.written, path)
	s.mu.Unlock()
	return nil
}

func (s *ClassifySink) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.written...)
	sort.Strings(out)
	return out
}

// ClassifyComposites composites the collection and classifies every output
// through the external classifier.
func ClassifyComposites(ctx context.Context, opts Options) ([]string, error) {
	c, regions, err := LoadCollection(opts)
	if err != nil {
		return nil, err
	}
	e, err := NewEngine(c, opts)
	if err != nil {
		return nil, err
	}
	client, err := ml.NewClient(properties.ClassifierAddr(), ml.DialOptions(ctx)...)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	sink := NewClassifySink(client, properties.DataPath("classification"))
	if err := engine.NewRunner(e, sink).Run(ctx, regions, c.YearRange()); err != nil {
		notifyFailure(fmt.Sprintf("classification of %s v%d", c.ID, c.Version), err)
		return nil, err
	}
	written := sink.Written()
	log.Infow("classification finished", "collection", c.ID, "outputs", len(written))
	notifySuccess(fmt.Sprintf("Classification of %s v%d finished: %d maps", c.ID, c.Version, len(written)))
	return written, nil
}
