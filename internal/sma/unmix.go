package sma

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mapbiomas/brazil-cerrado/internal/band"
)

// Unmixer solves sum-to-one constrained least squares for one library.
// Fractions are not clamped: values outside [0, 1] flag a poor endmember fit.
type Unmixer struct {
	lib Library
	a   *mat.Dense
	kkt *mat.Dense
}

func NewUnmixer(lib Library) *Unmixer {
	m := len(lib.Bands)
	a := mat.NewDense(m, 3, nil)
	for i, b := range lib.Bands {
		for j, em := range lib.Endmembers {
			a.Set(i, j, em.Reflectance[b])
		}
	}

	// [2AᵀA 1; 1ᵀ 0]
	var ata mat.Dense
	ata.Mul(a.T(), a)
	kkt := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			kkt.Set(i, j, 2*ata.At(i, j))
		}
		kkt.Set(i, 3, 1)
		kkt.Set(3, i, 1)
	}
	return &Unmixer{lib: lib, a: a, kkt: kkt}
}

// Unmix returns gv, soil, shade and the residual RMSE. A single no-data
// input band makes every output no-data.
func (u *Unmixer) Unmix(v band.Values) band.Values {
	out := band.Values{GV: band.NoData, Soil: band.NoData, Shade: band.NoData, RMSE: band.NoData}

	m := len(u.lib.Bands)
	r := mat.NewVecDense(m, nil)
	for i, b := range u.lib.Bands {
		x := v.Get(b)
		if band.IsNoData(x) {
			return out
		}
		r.SetVec(i, x)
	}

	var atr mat.VecDense
	atr.MulVec(u.a.T(), r)
	rhs := mat.NewVecDense(4, nil)
	for i := 0; i < 3; i++ {
		rhs.SetVec(i, 2*atr.AtVec(i))
	}
	rhs.SetVec(3, 1)

	var sol mat.VecDense
	if err := sol.SolveVec(u.kkt, rhs); err != nil {
		return out
	}

	f := mat.NewVecDense(3, []float64{sol.AtVec(0), sol.AtVec(1), sol.AtVec(2)})
	var fitted mat.VecDense
	fitted.MulVec(u.a, f)
	fitted.SubVec(&fitted, r)
	rmse := math.Sqrt(mat.Dot(&fitted, &fitted) / float64(m))

	for j, em := range u.lib.Endmembers {
		out[em.Name] = f.AtVec(j)
	}
	out[RMSE] = rmse
	return out
}
