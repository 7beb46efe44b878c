package delivery

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mapbiomas/brazil-cerrado/internal/dataset"
	"github.com/mapbiomas/brazil-cerrado/internal/log"
	"github.com/mapbiomas/brazil-cerrado/internal/properties"
	"github.com/mapbiomas/brazil-cerrado/internal/raster"
)

// Allocation sizes the stratified sample drawn in each region.
type Allocation struct {
	// Size is the sample budget of one region, split by class area.
	Size int
	// Min is the floor of every class present in the region.
	Min int
	// ReferenceDir holds one <region>.tif class map per region.
	ReferenceDir string
}

func DefaultAllocation() Allocation {
	return Allocation{Size: 7000, Min: 700, ReferenceDir: properties.DataPath("reference")}
}

var readReference = raster.ReadReference

// GeneratePoints draws class-stratified sample points from the reference map
// of every region and writes them as a points CSV.
func GeneratePoints(opts Options, alloc Allocation, outPath string) (int, error) {
	if alloc.Size <= 0 || alloc.Min < 0 {
		return 0, fmt.Errorf("invalid allocation: size %d, min %d", alloc.Size, alloc.Min)
	}
	_, regions, err := LoadCollection(opts)
	if err != nil {
		return 0, err
	}

	var points []dataset.SamplePoint
	for _, r := range regions {
		path := filepath.Join(alloc.ReferenceDir, r.ID+".tif")
		_, reference, centers, err := readReference(path)
		if err != nil {
			return 0, err
		}
		mask := r.Mask(centers)
		counts := dataset.ClassCounts(reference, mask)
		perClass := dataset.Allocate(counts, alloc.Size, alloc.Min)
		drawn, err := dataset.Stratify(r.ID, reference, centers, mask, perClass)
		if err != nil {
			return 0, fmt.Errorf("region %s: %w", r.ID, err)
		}
		log.Infow("sample points drawn", "region", r.ID, "classes", len(counts), "points", len(drawn))
		points = append(points, drawn...)
	}
	if len(points) == 0 {
		return 0, errors.New("no reference pixels inside the selected regions")
	}
	if err := dataset.WritePoints(outPath, points); err != nil {
		return 0, err
	}
	return len(points), nil
}
