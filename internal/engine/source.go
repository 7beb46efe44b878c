// Package engine builds packed annual composites for regions and years.
package engine

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/mapbiomas/brazil-cerrado/internal/auxiliary"
	"github.com/mapbiomas/brazil-cerrado/internal/band"
	"github.com/mapbiomas/brazil-cerrado/internal/composite"
)

// Scene is the observation stack of one region for one year.
type Scene struct {
	Grid composite.Grid
	// Centers holds the lon/lat of every pixel center, row major.
	Centers []orb.Point
	// Series holds one time series per pixel, row major.
	Series []band.Series
	// Bands are the sensor bands present in the stack.
	Bands []string
}

func (s *Scene) validate() error {
	n := s.Grid.Len()
	if n == 0 {
		return fmt.Errorf("empty grid")
	}
	if len(s.Centers) != n || len(s.Series) != n {
		return fmt.Errorf("scene has %d centers and %d series for a grid of %d", len(s.Centers), len(s.Series), n)
	}
	return nil
}

// SceneSource loads observation stacks.
type SceneSource interface {
	Scene(ctx context.Context, region auxiliary.Region, year int) (*Scene, error)
}

// AuxiliarySource loads opaque per-pixel layers aligned to a grid, such as
// elevation or fire age.
type AuxiliarySource interface {
	Layer(ctx context.Context, region auxiliary.Region, grid composite.Grid, name string, year int) ([]float64, error)
}
