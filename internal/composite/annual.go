package composite

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mapbiomas/brazil-cerrado/internal/band"
)

// YearBand carries the composite year on every AOI pixel.
const YearBand = "year"

// Grid describes the raster layout shared by every band of a composite.
type Grid struct {
	Width        int
	Height       int
	GeoTransform [6]float64
	Projection   string
}

func (g Grid) Len() int {
	return g.Width * g.Height
}

// Key identifies a grid for memoization.
func (g Grid) Key() string {
	return fmt.Sprintf("%dx%d:%v", g.Width, g.Height, g.GeoTransform)
}

// Geographic reports whether map coordinates are lon/lat degrees. An empty
// projection is taken as geographic.
func (g Grid) Geographic() bool {
	wkt := strings.ToUpper(strings.TrimSpace(g.Projection))
	return wkt == "" || strings.HasPrefix(wkt, "GEOGCS[") || strings.HasPrefix(wkt, "GEOGCRS[")
}

// PixelCenter returns the map coordinates of the center of pixel i.
func (g Grid) PixelCenter(i int) (float64, float64) {
	x, y := float64(i%g.Width)+0.5, float64(i/g.Width)+0.5
	gt := g.GeoTransform
	return gt[0] + gt[1]*x + gt[2]*y, gt[3] + gt[4]*x + gt[5]*y
}

// FeatureBand is a named raster for one year. Values are owned by the band
// and only handed out as copies.
type FeatureBand struct {
	name   string
	year   int
	values []float64
}

func NewFeatureBand(name string, year int, values []float64) *FeatureBand {
	return &FeatureBand{name: name, year: year, values: append([]float64(nil), values...)}
}

func (b *FeatureBand) Name() string { return b.name }
func (b *FeatureBand) Year() int    { return b.year }
func (b *FeatureBand) Len() int     { return len(b.values) }

func (b *FeatureBand) At(i int) float64 {
	return b.values[i]
}

func (b *FeatureBand) Values() []float64 {
	return append([]float64(nil), b.values...)
}

// AnnualComposite is the feature image of one region and year. Adding bands
// yields a new composite.
type AnnualComposite struct {
	region string
	year   int
	grid   Grid
	bands  map[string]*FeatureBand
}

func NewAnnualComposite(region string, year int, grid Grid, bands ...*FeatureBand) (*AnnualComposite, error) {
	c := &AnnualComposite{region: region, year: year, grid: grid, bands: make(map[string]*FeatureBand, len(bands))}
	if err := c.add(bands); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *AnnualComposite) add(bands []*FeatureBand) error {
	for _, b := range bands {
		if b.year != c.year {
			return fmt.Errorf("band %s is for year %d, composite is %d", b.name, b.year, c.year)
		}
		if len(b.values) != c.grid.Len() {
			return fmt.Errorf("band %s has %d pixels, grid has %d", b.name, len(b.values), c.grid.Len())
		}
		if _, dup := c.bands[b.name]; dup {
			return fmt.Errorf("duplicate band %s", b.name)
		}
		c.bands[b.name] = b
	}
	return nil
}

// With returns a copy of c extended with bands. Bands are shared, not copied,
// since they cannot change.
func (c *AnnualComposite) With(bands ...*FeatureBand) (*AnnualComposite, error) {
	next := &AnnualComposite{region: c.region, year: c.year, grid: c.grid, bands: make(map[string]*FeatureBand, len(c.bands)+len(bands))}
	for k, b := range c.bands {
		next.bands[k] = b
	}
	if err := next.add(bands); err != nil {
		return nil, err
	}
	return next, nil
}

func (c *AnnualComposite) Region() string { return c.region }
func (c *AnnualComposite) Year() int      { return c.year }
func (c *AnnualComposite) Grid() Grid     { return c.grid }

func (c *AnnualComposite) Band(name string) (*FeatureBand, bool) {
	b, ok := c.bands[name]
	return b, ok
}

// Value returns no-data when the band is absent.
func (c *AnnualComposite) Value(name string, i int) float64 {
	b, ok := c.bands[name]
	if !ok {
		return band.NoData
	}
	return b.values[i]
}

func (c *AnnualComposite) BandNames() []string {
	names := make([]string, 0, len(c.bands))
	for k := range c.bands {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Builder fills pre-allocated band rasters pixel by pixel. Concurrent Set
// calls are safe as long as they touch distinct pixels.
type Builder struct {
	region string
	year   int
	grid   Grid
	names  []string
	values map[string][]float64
}

func NewBuilder(region string, year int, grid Grid, names []string) *Builder {
	values := make(map[string][]float64, len(names))
	for _, n := range names {
		raster := make([]float64, grid.Len())
		for i := range raster {
			raster[i] = band.NoData
		}
		values[n] = raster
	}
	return &Builder{region: region, year: year, grid: grid, names: append([]string(nil), names...), values: values}
}

// SetPixel writes every known band of v at pixel i; bands not in v stay no-data.
func (b *Builder) SetPixel(i int, v band.Values) {
	for _, n := range b.names {
		if x, ok := v[n]; ok {
			b.values[n][i] = x
		}
	}
}

// Build hands the rasters over to a new composite. The builder must not be
// used afterwards.
func (b *Builder) Build() *AnnualComposite {
	c := &AnnualComposite{region: b.region, year: b.year, grid: b.grid, bands: make(map[string]*FeatureBand, len(b.names))}
	for _, n := range b.names {
		c.bands[n] = &FeatureBand{name: n, year: b.year, values: b.values[n]}
	}
	b.values = nil
	return c
}
