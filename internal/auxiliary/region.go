// Package auxiliary builds the geography-derived bands of a composite and
// the area-of-interest masks they are clipped to.
package auxiliary

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// RegionIDProperty is the feature property naming a classification region.
const RegionIDProperty = "region_id"

// Region is one classification region and its boundary.
type Region struct {
	ID       string
	Geometry orb.Geometry
}

// LoadRegions reads every feature of a GeoJSON FeatureCollection file.
func LoadRegions(path string) ([]Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read regions file: %w", err)
	}
	return ParseRegions(data)
}

func ParseRegions(data []byte) ([]Region, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal regions: %w", err)
	}

	regions := make([]Region, 0, len(fc.Features))
	seen := map[string]bool{}
	for i, f := range fc.Features {
		raw, ok := f.Properties[RegionIDProperty]
		if !ok {
			return nil, fmt.Errorf("feature %d has no %s property", i, RegionIDProperty)
		}
		id := fmt.Sprint(raw)
		if seen[id] {
			return nil, fmt.Errorf("duplicate region %s", id)
		}
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return nil, fmt.Errorf("region %s geometry is %s, want a polygon", id, f.Geometry.GeoJSONType())
		}
		seen[id] = true
		regions = append(regions, Region{ID: id, Geometry: f.Geometry})
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].ID < regions[j].ID })
	return regions, nil
}

// FindRegion picks a region by id.
func FindRegion(regions []Region, id string) (Region, error) {
	for _, r := range regions {
		if r.ID == id {
			return r, nil
		}
	}
	return Region{}, fmt.Errorf("region %s not found", id)
}

// Centroid returns latitude and longitude of the region's centroid.
func (r Region) Centroid() (float64, float64, error) {
	centroid, area := planar.CentroidArea(r.Geometry)
	if area <= 0 {
		return 0, 0, errors.New("error getting centroid")
	}
	return centroid.Y(), centroid.X(), nil
}

// Contains reports whether a lon/lat point falls inside the region.
func (r Region) Contains(p orb.Point) bool {
	switch g := r.Geometry.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	}
	return false
}

// Mask flags every pixel center inside the region.
func (r Region) Mask(centers []orb.Point) []bool {
	bound := r.Geometry.Bound()
	mask := make([]bool, len(centers))
	for i, p := range centers {
		mask[i] = bound.Contains(p) && r.Contains(p)
	}
	return mask
}
