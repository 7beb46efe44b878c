package engine

import (
	"strconv"

	"github.com/paulmach/orb"

	"github.com/mapbiomas/brazil-cerrado/internal/composite"
	"github.com/mapbiomas/brazil-cerrado/internal/history"
)

// Tags identify an annual output for export.
type Tags struct {
	Collection string
	Version    int
	Biome      string
	Region     string
	Year       int
	RunID      string
}

func (t Tags) Map() map[string]string {
	return map[string]string{
		"collection": t.Collection,
		"version":    strconv.Itoa(t.Version),
		"biome":      t.Biome,
		"region":     t.Region,
		"year":       strconv.Itoa(t.Year),
		"run_id":     t.RunID,
	}
}

// AnnualOutput is the packed feature image of one region and year.
type AnnualOutput struct {
	Tags      Tags
	State     history.State
	Composite *composite.AnnualComposite
	Bands     []composite.PackedBand
	AOI       []bool
	// Centers holds the WGS84 lon/lat of every pixel center.
	Centers []orb.Point
}

// Band returns the packed band with the given name.
func (o *AnnualOutput) Band(name string) (composite.PackedBand, bool) {
	for _, b := range o.Bands {
		if b.Name == name {
			return b, true
		}
	}
	return composite.PackedBand{}, false
}

func (o *AnnualOutput) BandNames() []string {
	names := make([]string, len(o.Bands))
	for i, b := range o.Bands {
		names[i] = b.Name
	}
	return names
}
