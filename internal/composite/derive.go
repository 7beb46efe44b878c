package composite

import (
	"sort"

	"github.com/mapbiomas/brazil-cerrado/internal/band"
	"github.com/mapbiomas/brazil-cerrado/internal/sma"
	"github.com/mapbiomas/brazil-cerrado/internal/spectral"
)

// Deriver turns raw observations into the full set of temporal bands in two
// phases: indices and unmixing fractions read raw reflectance only, then
// fraction indices read the fractions only.
type Deriver struct {
	indices []string
	unmixer *sma.Unmixer
}

// NewDeriver builds a deriver; a nil unmixer disables fractions.
func NewDeriver(indices []string, unmixer *sma.Unmixer) *Deriver {
	idx := append([]string(nil), indices...)
	sort.Strings(idx)
	return &Deriver{indices: idx, unmixer: unmixer}
}

// Derive returns a new observation carrying raw bands plus derived bands.
func (d *Deriver) Derive(o band.Observation) band.Observation {
	raw := o.Values()
	out := raw.Clone()
	for k, v := range spectral.Apply(raw, d.indices) {
		out[k] = v
	}
	if d.unmixer != nil {
		fractions := d.unmixer.Unmix(raw)
		for k, v := range fractions {
			out[k] = v
		}
		for k, v := range sma.DeriveFractionIndices(fractions) {
			out[k] = v
		}
	}
	return band.NewObservation(o.Time(), out)
}

// BandNames lists the temporal bands Derive produces for the given raw bands.
func (d *Deriver) BandNames(raw []string) []string {
	names := append([]string(nil), raw...)
	names = append(names, d.indices...)
	if d.unmixer != nil {
		names = append(names, sma.Fractions...)
		names = append(names, sma.FractionIndices...)
	}
	sort.Strings(names)
	return dedupe(names)
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
