package spectral

import "github.com/mapbiomas/brazil-cerrado/internal/band"

// Apply evaluates the named indices against the raw input bands only. The
// result never feeds back into the inputs, so the order of names does not
// change any value.
func Apply(raw band.Values, names []string) band.Values {
	out := make(band.Values, len(names))
	for _, n := range names {
		out[n] = Compute(n, raw)
	}
	return out
}
