package composite

import (
	"fmt"
	"math"

	"github.com/mapbiomas/brazil-cerrado/internal/band"
)

// IntType is the storage type a packed band is narrowed to.
type IntType int

const (
	Int8 IntType = iota
	Int16
	Int32
	Int64
)

func (t IntType) String() string {
	switch t {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	default:
		return "int64"
	}
}

// NarrowType returns the tightest signed type holding [lo, hi]. The minimum
// of int8, int16 and int32 is reserved as the stored no-data value.
func NarrowType(lo, hi int64) IntType {
	switch {
	case lo > math.MinInt8 && hi <= math.MaxInt8:
		return Int8
	case lo > math.MinInt16 && hi <= math.MaxInt16:
		return Int16
	case lo > math.MinInt32 && hi <= math.MaxInt32:
		return Int32
	default:
		return Int64
	}
}

// NoDataPolicy decides what packed no-data pixels inside the AOI become.
type NoDataPolicy string

const (
	// Mask leaves no-data pixels invalid.
	Mask NoDataPolicy = "mask"
	// Unmask replaces no-data pixels with the packer's sentinel.
	Unmask NoDataPolicy = "unmask"
)

func (p NoDataPolicy) Valid() bool {
	return p == Mask || p == Unmask
}

// PackedBand is a scaled, rounded, integer band.
type PackedBand struct {
	Name   string
	Type   IntType
	Scale  float64
	Values []int64
	Valid  []bool
}

// Unpack recovers the float value at i, within ±0.5/Scale of the original.
func (p PackedBand) Unpack(i int) (float64, bool) {
	if !p.Valid[i] {
		return band.NoData, false
	}
	return float64(p.Values[i]) / p.Scale, true
}

// Packer converts float composites to integer bands.
type Packer struct {
	Policy   NoDataPolicy
	Sentinel int64
}

// PackBand multiplies by scale, rounds half away from zero and narrows the
// type to the band's range. Pixels outside aoi are always invalid; aoi may
// be nil to cover the whole grid.
func (p Packer) PackBand(b *FeatureBand, scale float64, aoi []bool) (PackedBand, error) {
	if scale <= 0 {
		return PackedBand{}, fmt.Errorf("invalid scale %v for band %s", scale, b.Name())
	}
	n := b.Len()
	out := PackedBand{Name: b.Name(), Scale: scale, Values: make([]int64, n), Valid: make([]bool, n)}

	var lo, hi int64
	seen := false
	for i := 0; i < n; i++ {
		if aoi != nil && !aoi[i] {
			continue
		}
		v := b.At(i)
		var packed int64
		if band.IsNoData(v) {
			if p.Policy != Unmask {
				continue
			}
			packed = p.Sentinel
		} else {
			scaled := math.Round(v * scale)
			// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
			if scaled >= math.MaxInt64 || scaled < math.MinInt64 {
				return PackedBand{}, fmt.Errorf("band %s pixel %d overflows int64 at scale %v", b.Name(), i, scale)
			}
			packed = int64(scaled)
		}
		out.Values[i] = packed
		out.Valid[i] = true
		if !seen || packed < lo {
			lo = packed
		}
		if !seen || packed > hi {
			hi = packed
		}
		seen = true
	}
	out.Type = NarrowType(lo, hi)
	return out, nil
}

// ScaleFunc picks the scale factor of a band by name.
type ScaleFunc func(name string) float64

// Pack packs every band of c in name order.
func (p Packer) Pack(c *AnnualComposite, scale ScaleFunc, aoi []bool) ([]PackedBand, error) {
	names := c.BandNames()
	out := make([]PackedBand, 0, len(names))
	for _, n := range names {
		b, _ := c.Band(n)
		pb, err := p.PackBand(b, scale(n), aoi)
		if err != nil {
			return nil, fmt.Errorf("failed to pack %s: %w", n, err)
		}
		out = append(out, pb)
	}
	return out, nil
}
