package dataset

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"

	"github.com/mapbiomas/brazil-cerrado/internal/composite"
)

// ErrNoCenters is returned for a projected grid without lon/lat pixel centers.
var ErrNoCenters = errors.New("projected grid has no lon/lat pixel centers")

type pixelCenter struct {
	p orb.Point
	i int
}

func (c pixelCenter) Point() orb.Point { return c.p }

// Locator maps lon/lat to grid pixels. Geographic grids invert the
// geotransform; projected grids search the WGS84 pixel centers.
type Locator struct {
	grid    composite.Grid
	centers []orb.Point
	tree    *quadtree.Quadtree
}

func NewLocator(grid composite.Grid, centers []orb.Point) (*Locator, error) {
	l := &Locator{grid: grid}
	if grid.Geographic() {
		return l, nil
	}
	if len(centers) != grid.Len() || grid.Len() == 0 {
		return nil, fmt.Errorf("%w: %d centers for %d pixels", ErrNoCenters, len(centers), grid.Len())
	}

	var bound orb.Bound
	first := true
	for _, c := range centers {
		if math.IsNaN(c[0]) || math.IsNaN(c[1]) {
			continue
		}
		if first {
			bound, first = c.Bound(), false
		} else {
			bound = bound.Extend(c)
		}
	}
	if first {
		return nil, fmt.Errorf("%w: every center is undefined", ErrNoCenters)
	}

	l.centers = centers
	l.tree = quadtree.New(bound.Pad(1e-9))
	for i, c := range centers {
		if math.IsNaN(c[0]) || math.IsNaN(c[1]) {
			continue
		}
		if err := l.tree.Add(pixelCenter{p: c, i: i}); err != nil {
			return nil, fmt.Errorf("failed to index pixel %d: %w", i, err)
		}
	}
	return l, nil
}

// Pixel returns the pixel holding lon/lat. On projected grids the nearest
// center is accepted when the point lies within half a pixel diagonal of it.
func (l *Locator) Pixel(lon, lat float64) (int, bool) {
	if l.tree == nil {
		return PixelIndex(l.grid, lon, lat)
	}
	p := orb.Point{lon, lat}
	found := l.tree.Find(p)
	if found == nil {
		return 0, false
	}
	i := found.(pixelCenter).i
	if planar.Distance(p, l.centers[i]) > l.halfDiagonal(i) {
		return 0, false
	}
	return i, true
}

// halfDiagonal estimates half the pixel diagonal at i from its neighbours.
func (l *Locator) halfDiagonal(i int) float64 {
	w, h := l.grid.Width, l.grid.Height
	x, y := i%w, i/w
	spacing := func(j int) float64 {
		if math.IsNaN(l.centers[j][0]) {
			return 0
		}
		return planar.Distance(l.centers[i], l.centers[j])
	}

	var sx, sy float64
	switch {
	case x+1 < w:
		sx = spacing(i + 1)
	case x > 0:
		sx = spacing(i - 1)
	}
	switch {
	case y+1 < h:
		sy = spacing(i + w)
	case y > 0:
		sy = spacing(i - w)
	}
	if sx == 0 {
		sx = sy
	}
	if sy == 0 {
		sy = sx
	}
	return math.Hypot(sx, sy) / 2
}
