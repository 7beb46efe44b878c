// Package band holds the per-pixel observation model shared by the
// derivation and compositing stages.
package band

import (
	"math"
	"sort"
	"time"
)

// NoData marks a masked or undefined value. Every stage propagates it
// instead of returning an error.
var NoData = math.NaN()

func IsNoData(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// Values maps a band name to a reflectance or derived value.
type Values map[string]float64

// Get returns NoData for absent bands.
func (v Values) Get(name string) float64 {
	x, ok := v[name]
	if !ok {
		return NoData
	}
	return x
}

func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

// Names returns the band names in lexical order.
func (v Values) Names() []string {
	names := make([]string, 0, len(v))
	for k := range v {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Pixel locates a grid cell and its center in geographic coordinates.
type Pixel struct {
	X, Y     int
	Lon, Lat float64
}

// Observation is one acquisition of one pixel. It cannot be changed once built.
type Observation struct {
	time   time.Time
	values Values
}

func NewObservation(t time.Time, values Values) Observation {
	return Observation{time: t, values: values.Clone()}
}

func (o Observation) Time() time.Time {
	return o.time
}

func (o Observation) Value(name string) float64 {
	return o.values.Get(name)
}

// Values returns a copy of the observation's bands.
func (o Observation) Values() Values {
	return o.values.Clone()
}

func (o Observation) Bands() []string {
	return o.values.Names()
}

// Series is the time series of a single pixel. It may be empty.
type Series struct {
	Pixel        Pixel
	Observations []Observation
}

// BandNames returns the union of band names over the series.
func (s Series) BandNames() []string {
	seen := map[string]struct{}{}
	for _, o := range s.Observations {
		for k := range o.values {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
