package history

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/mapbiomas/brazil-cerrado/internal/band"
	"github.com/mapbiomas/brazil-cerrado/internal/composite"
)

// Span is the number of consecutive years a metric looks back over,
// the current year included.
const Span = 3

type State int

const (
	WarmingUp State = iota
	Steady
)

func (s State) String() string {
	if s == Steady {
		return "STEADY"
	}
	return "WARMING_UP"
}

// Spec names the composite bands the rolling metrics read.
type Spec struct {
	// AmplitudeBand is the temporal band whose _median_wet and _median_dry
	// feed the amplitude, e.g. "ndvi".
	AmplitudeBand string
	// VarianceBands are feature bands whose population variance is taken,
	// e.g. "ndvi_p25" and "nbr_median".
	VarianceBands []string
	// Sentinel fills every metric inside the AOI while warming up.
	Sentinel float64
}

func (s Spec) AmplitudeName() string {
	return fmt.Sprintf("amp_%s_%dyr", s.AmplitudeBand, Span)
}

func (s Spec) VarianceName(b string) string {
	return fmt.Sprintf("var_%s_%dyr", b, Span)
}

// Names lists the metric bands in output order.
func (s Spec) Names() []string {
	names := []string{s.AmplitudeName()}
	for _, b := range s.VarianceBands {
		names = append(names, s.VarianceName(b))
	}
	return names
}

// Inputs lists the composite bands that must exist for Steady computation.
func (s Spec) Inputs() []string {
	in := []string{s.AmplitudeBand + "_median_wet", s.AmplitudeBand + "_median_dry"}
	return append(in, s.VarianceBands...)
}

// Engine computes rolling metrics from a read-only history.
type Engine struct {
	spec Spec
}

func NewEngine(spec Spec) *Engine {
	return &Engine{spec: spec}
}

func (e *Engine) Spec() Spec {
	return e.spec
}

// State is Steady only when the year and the Span-1 years before it are all
// present. Gaps keep the engine warming up.
func (e *Engine) State(h *History, year int) State {
	for y := year - Span + 1; y <= year; y++ {
		if _, ok := h.Get(y); !ok {
			return WarmingUp
		}
	}
	return Steady
}

// Compute returns the metric bands of year. The year must already be in h.
// Pixels outside aoi are no-data; aoi may be nil.
func (e *Engine) Compute(h *History, year int, aoi []bool) (State, []*composite.FeatureBand, error) {
	current, ok := h.Get(year)
	if !ok {
		return WarmingUp, nil, fmt.Errorf("year %d not written to history of %s", year, h.Region())
	}
	n := current.Grid().Len()
	if aoi != nil && len(aoi) != n {
		return WarmingUp, nil, fmt.Errorf("aoi has %d pixels, grid has %d", len(aoi), n)
	}
	inside := func(i int) bool { return aoi == nil || aoi[i] }

	state := e.State(h, year)
	if state == WarmingUp {
		bands := make([]*composite.FeatureBand, 0, len(e.spec.Names()))
		for _, name := range e.spec.Names() {
			values := make([]float64, n)
			for i := range values {
				values[i] = band.NoData
				if inside(i) {
					values[i] = e.spec.Sentinel
				}
			}
			bands = append(bands, composite.NewFeatureBand(name, year, values))
		}
		return state, bands, nil
	}

	window := make([]*composite.AnnualComposite, 0, Span)
	for y := year - Span + 1; y <= year; y++ {
		c, _ := h.Get(y)
		for _, in := range e.spec.Inputs() {
			if _, ok := c.Band(in); !ok {
				return state, nil, fmt.Errorf("composite %d of %s lacks band %s", y, h.Region(), in)
			}
		}
		if c.Grid().Len() != n {
			return state, nil, fmt.Errorf("composite %d of %s has a different grid", y, h.Region())
		}
		window = append(window, c)
	}

	amp := make([]float64, n)
	wet, dry := e.spec.AmplitudeBand+"_median_wet", e.spec.AmplitudeBand+"_median_dry"
	wets, drys := make([]float64, Span), make([]float64, Span)
	for i := range amp {
		amp[i] = band.NoData
		if !inside(i) {
			continue
		}
		valid := true
		for k, c := range window {
			wets[k], drys[k] = c.Value(wet, i), c.Value(dry, i)
			if band.IsNoData(wets[k]) || band.IsNoData(drys[k]) {
				valid = false
				break
			}
		}
		if valid {
			amp[i] = floats.Max(wets) - floats.Min(drys)
		}
	}
	bands := []*composite.FeatureBand{composite.NewFeatureBand(e.spec.AmplitudeName(), year, amp)}

	samples := make([]float64, Span)
	for _, b := range e.spec.VarianceBands {
		variance := make([]float64, n)
		for i := range variance {
			variance[i] = band.NoData
			if !inside(i) {
				continue
			}
			valid := true
			for k, c := range window {
				samples[k] = c.Value(b, i)
				if band.IsNoData(samples[k]) {
					valid = false
				}
			}
			if valid {
				variance[i] = composite.PopVariance(sortedCopy(samples))
			}
		}
		bands = append(bands, composite.NewFeatureBand(e.spec.VarianceName(b), year, variance))
	}
	return state, bands, nil
}

func sortedCopy(x []float64) []float64 {
	out := append([]float64(nil), x...)
	sort.Float64s(out)
	return out
}
