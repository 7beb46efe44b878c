package output

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"

	"github.com/mapbiomas/brazil-cerrado/internal/composite"
)

const legendHeight = 24

// Stretch returns the min and max valid value of a packed band.
func Stretch(pb composite.PackedBand) (int64, int64, bool) {
	lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
	found := false
	for i, v := range pb.Values {
		if !pb.Valid[i] {
			continue
		}
		found = true
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, found
}

// gray maps v into [0,1] over the band stretch.
func gray(v, lo, hi int64) float64 {
	if hi == lo {
		return 0.5
	}
	return float64(v-lo) / float64(hi-lo)
}

// SavePreview draws a grayscale quicklook of one packed band with a legend
// strip. Invalid pixels are drawn in red.
func SavePreview(path string, pb composite.PackedBand, grid composite.Grid) error {
	if len(pb.Values) != grid.Len() {
		return fmt.Errorf("band %s has %d pixels, grid has %d", pb.Name, len(pb.Values), grid.Len())
	}
	lo, hi, ok := Stretch(pb)
	if !ok {
		return fmt.Errorf("band %s has no valid pixels", pb.Name)
	}

	width := grid.Width
	if width < 160 {
		width = 160
	}
	dc := gg.NewContext(width, grid.Height+legendHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for i, v := range pb.Values {
		x, y := i%grid.Width, i/grid.Width
		if !pb.Valid[i] {
			dc.SetRGB(0.8, 0.1, 0.1)
		} else {
			g := gray(v, lo, hi)
			dc.SetRGB(g, g, g)
		}
		dc.SetPixel(x, y)
	}

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(fmt.Sprintf("%s [%d, %d]", pb.Name, lo, hi), 4, float64(grid.Height)+legendHeight/2, 0, 0.5)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create preview directory: %w", err)
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}
	return nil
}
