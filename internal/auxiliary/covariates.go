package auxiliary

import (
	"fmt"
	"math"
	"sync"

	"github.com/paulmach/orb"

	"github.com/mapbiomas/brazil-cerrado/internal/band"
	"github.com/mapbiomas/brazil-cerrado/internal/composite"
)

const (
	Latitude     = "latitude"
	LongitudeSin = "longitude_sin"
	LongitudeCos = "longitude_cos"
)

// Names lists the synthesized covariates.
var Names = []string{Latitude, LongitudeCos, LongitudeSin}

// Transform holds the affine constants applied to coordinates.
type Transform struct {
	LatOffset float64
	LatScale  float64
	LonScale  float64
}

// DefaultTransform gives latitude = round((lat+5)·-1000) and the longitude
// terms round(f(lon)·-10000).
var DefaultTransform = Transform{LatOffset: 5, LatScale: -1000, LonScale: -10000}

func (t Transform) Latitude(lat float64) float64 {
	return math.Round((lat + t.LatOffset) * t.LatScale)
}

func (t Transform) LongitudeSin(lon float64) float64 {
	return math.Round(math.Sin(lon*math.Pi/180) * t.LonScale)
}

func (t Transform) LongitudeCos(lon float64) float64 {
	return math.Round(math.Cos(lon*math.Pi/180) * t.LonScale)
}

type rasters struct {
	lat, sin, cos []float64
}

// Synthesizer memoizes the covariate rasters per grid and region, since they
// do not depend on the year.
type Synthesizer struct {
	transform Transform

	mu    sync.Mutex
	cache map[string]rasters
}

func NewSynthesizer(t Transform) *Synthesizer {
	return &Synthesizer{transform: t, cache: map[string]rasters{}}
}

// Bands returns the covariate bands for year. Pixels outside aoi are no-data.
func (s *Synthesizer) Bands(region string, grid composite.Grid, centers []orb.Point, aoi []bool, year int) ([]*composite.FeatureBand, error) {
	n := grid.Len()
	if len(centers) != n || len(aoi) != n {
		return nil, fmt.Errorf("covariates of %s: %d centers and %d mask pixels for a grid of %d", region, len(centers), len(aoi), n)
	}

	key := region + "/" + grid.Key()
	s.mu.Lock()
	r, ok := s.cache[key]
	if !ok {
		r = rasters{lat: make([]float64, n), sin: make([]float64, n), cos: make([]float64, n)}
		for i, p := range centers {
			if !aoi[i] {
				r.lat[i], r.sin[i], r.cos[i] = band.NoData, band.NoData, band.NoData
				continue
			}
			r.lat[i] = s.transform.Latitude(p.Lat())
			r.sin[i] = s.transform.LongitudeSin(p.Lon())
			r.cos[i] = s.transform.LongitudeCos(p.Lon())
		}
		s.cache[key] = r
	}
	s.mu.Unlock()

	return []*composite.FeatureBand{
		composite.NewFeatureBand(Latitude, year, r.lat),
		composite.NewFeatureBand(LongitudeSin, year, r.sin),
		composite.NewFeatureBand(LongitudeCos, year, r.cos),
	}, nil
}
