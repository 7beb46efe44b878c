// Package spectral computes per-observation vegetation, water and soil
// indices from surface reflectance.
package spectral

import (
	"fmt"
	"math"
	"sort"

	"github.com/mapbiomas/brazil-cerrado/internal/band"
)

// Index is a pure function of its declared input bands.
type Index struct {
	Name     string
	Requires []string
	formula  func(v band.Values) float64
}

// gariGamma weights the blue-red difference in GARI.
const gariGamma = 1.7

var catalogue = map[string]Index{}

func register(name string, requires []string, formula func(v band.Values) float64) {
	catalogue[name] = Index{Name: name, Requires: requires, formula: formula}
}

func init() {
	register("ndvi", []string{"nir", "red"}, func(v band.Values) float64 {
		return normalizedDifference(v["nir"], v["red"])
	})
	register("nbr", []string{"nir", "swir2"}, func(v band.Values) float64 {
		return normalizedDifference(v["nir"], v["swir2"])
	})
	register("mndwi", []string{"green", "swir1"}, func(v band.Values) float64 {
		return normalizedDifference(v["green"], v["swir1"])
	})
	register("pri", []string{"blue", "green"}, func(v band.Values) float64 {
		return normalizedDifference(v["blue"], v["green"])
	})
	register("cai", []string{"swir1", "swir2"}, func(v band.Values) float64 {
		return ratio(v["swir2"], v["swir1"])
	})
	register("evi2", []string{"nir", "red"}, func(v band.Values) float64 {
		return ratio(2.5*(v["nir"]-v["red"]), v["nir"]+2.4*v["red"]+1)
	})
	register("gcvi", []string{"nir", "green"}, func(v band.Values) float64 {
		return ratio(v["nir"], v["green"]) - 1
	})
	register("grnd", []string{"green", "red"}, func(v band.Values) float64 {
		return normalizedDifference(v["green"], v["red"])
	})
	register("msi", []string{"nir", "swir1"}, func(v band.Values) float64 {
		return ratio(v["swir1"], v["nir"])
	})
	register("gari", []string{"nir", "green", "blue", "red"}, func(v band.Values) float64 {
		g := v["green"] - gariGamma*(v["blue"]-v["red"])
		return normalizedDifference(v["nir"], g)
	})
	register("gndvi", []string{"nir", "green"}, func(v band.Values) float64 {
		return normalizedDifference(v["nir"], v["green"])
	})
	register("msavi", []string{"nir", "red"}, func(v band.Values) float64 {
		a := 2*v["nir"] + 1
		disc := a*a - 8*(v["nir"]-v["red"])
		if disc < 0 {
			return band.NoData
		}
		return (a - math.Sqrt(disc)) / 2
	})
	register("tgsi", []string{"red", "blue", "green"}, func(v band.Values) float64 {
		return ratio(v["red"]-v["blue"], v["red"]+v["blue"]+v["green"])
	})
	register("hallcover", []string{"red", "nir", "swir2"}, func(v band.Values) float64 {
		return -0.017*v["red"] - 0.007*v["nir"] - 0.079*v["swir2"] + 5.22
	})
	register("hallheight", []string{"red", "nir", "swir1"}, func(v band.Values) float64 {
		return -0.039*v["red"] - 0.011*v["nir"] - 0.026*v["swir1"] + 4.13
	})

	// red-edge family, sentinel-2 only
	register("ndvired", []string{"re2", "red"}, func(v band.Values) float64 {
		return normalizedDifference(v["re2"], v["red"])
	})
	register("vi700", []string{"re1", "red"}, func(v band.Values) float64 {
		return normalizedDifference(v["re1"], v["red"])
	})
	register("ireci", []string{"re3", "red", "re1", "re2"}, func(v band.Values) float64 {
		return ratio(v["re3"]-v["red"], ratio(v["re1"], v["re2"]))
	})
	register("cire", []string{"nir", "re1"}, func(v band.Values) float64 {
		return ratio(v["nir"], v["re1"]) - 1
	})
	register("tcari", []string{"re1", "red", "green"}, func(v band.Values) float64 {
		return 3 * ((v["re1"] - v["red"]) - 0.2*(v["re1"]-v["green"])*ratio(v["re1"], v["red"]))
	})
	register("sfdvi", []string{"nir", "green", "red", "re1"}, func(v band.Values) float64 {
		return (v["nir"]+v["green"])/2 - (v["red"]+v["re1"])/2
	})
	register("ndre", []string{"nir", "re1"}, func(v band.Values) float64 {
		return normalizedDifference(v["nir"], v["re1"])
	})
}

// Lookup returns the named index.
func Lookup(name string) (Index, bool) {
	idx, ok := catalogue[name]
	return idx, ok
}

// Names lists every known index in lexical order.
func Names() []string {
	names := make([]string, 0, len(catalogue))
	for k := range catalogue {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate rejects unknown index names.
func Validate(names []string) error {
	for _, n := range names {
		if _, ok := catalogue[n]; !ok {
			return fmt.Errorf("unknown spectral index %q", n)
		}
	}
	return nil
}

// Compute evaluates one index for one observation. Missing or no-data
// inputs and non-finite results come back as band.NoData.
func (idx Index) Compute(v band.Values) float64 {
	in := make(band.Values, len(idx.Requires))
	for _, b := range idx.Requires {
		x := v.Get(b)
		if band.IsNoData(x) {
			return band.NoData
		}
		in[b] = x
	}
	out := idx.formula(in)
	if band.IsNoData(out) {
		return band.NoData
	}
	return out
}

// Compute evaluates the named index, NoData for unknown names.
func Compute(name string, v band.Values) float64 {
	idx, ok := catalogue[name]
	if !ok {
		return band.NoData
	}
	return idx.Compute(v)
}

func normalizedDifference(a, b float64) float64 {
	return ratio(a-b, a+b)
}

func ratio(num, den float64) float64 {
	if den == 0 || band.IsNoData(den) || band.IsNoData(num) {
		return band.NoData
	}
	return num / den
}
