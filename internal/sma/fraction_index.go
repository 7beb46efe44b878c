package sma

import "github.com/mapbiomas/brazil-cerrado/internal/band"

// FractionIndices lists the indices derived from unmixing fractions.
var FractionIndices = []string{"ndfi", "sefi", "wefi", "fns"}

// DeriveFractionIndices runs after Unmix. gvs is green vegetation
// normalized by the non-shade share of the pixel.
func DeriveFractionIndices(f band.Values) band.Values {
	gv, soil, shade := f.Get(GV), f.Get(Soil), f.Get(Shade)
	out := band.Values{"ndfi": band.NoData, "sefi": band.NoData, "wefi": band.NoData, "fns": band.NoData}
	if band.IsNoData(gv) || band.IsNoData(soil) || band.IsNoData(shade) {
		return out
	}

	gvs := safeDiv(gv, 1-shade)
	if !band.IsNoData(gvs) {
		out["ndfi"] = safeDiv(gvs-soil, gvs+soil)
	}
	out["sefi"] = safeDiv(gv-soil, gv+soil)
	out["wefi"] = safeDiv(gv-(soil+shade), gv+soil+shade)
	out["fns"] = gv - (soil + shade)
	return out
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return band.NoData
	}
	return num / den
}
