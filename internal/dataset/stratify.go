package dataset

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"
)

// ClassCounts counts the pixels of each reference class inside the mask.
// A nil mask counts every pixel; no-data pixels are skipped.
func ClassCounts(reference []float64, mask []bool) map[int]int {
	counts := map[int]int{}
	for i, v := range reference {
		if math.IsNaN(v) || (mask != nil && !mask[i]) {
			continue
		}
		counts[int(math.Round(v))]++
	}
	return counts
}

// Allocate splits size samples across classes in proportion to their area,
// with at least min samples for every class present.
func Allocate(counts map[int]int, size, min int) map[int]int {
	classes := sortedClasses(counts)
	areas := make([]float64, len(classes))
	for k, c := range classes {
		areas[k] = float64(counts[c])
	}
	total := floats.Sum(areas)

	alloc := make(map[int]int, len(classes))
	if total == 0 {
		return alloc
	}
	for k, c := range classes {
		if areas[k] == 0 {
			continue
		}
		n := int(math.Round(areas[k] / total * float64(size)))
		if n < min {
			n = min
		}
		alloc[c] = n
	}
	return alloc
}

// Stratify draws alloc[class] reference pixels of each class inside the
// mask, capped at the pixels available. Draws are seeded by region and class
// so repeated runs pick the same points. IDs are <region>_<class>_<k>.
func Stratify(region string, reference []float64, centers []orb.Point, mask []bool, alloc map[int]int) ([]SamplePoint, error) {
	if len(centers) != len(reference) {
		return nil, fmt.Errorf("reference has %d pixels but %d centers", len(reference), len(centers))
	}
	byClass := map[int][]int{}
	for i, v := range reference {
		if math.IsNaN(v) || (mask != nil && !mask[i]) {
			continue
		}
		c := int(math.Round(v))
		byClass[c] = append(byClass[c], i)
	}

	var points []SamplePoint
	for _, c := range sortedClasses(alloc) {
		pixels := byClass[c]
		n := alloc[c]
		if n > len(pixels) {
			n = len(pixels)
		}
		h := fnv.New64a()
		fmt.Fprintf(h, "%s/%d", region, c)
		rng := rand.New(rand.NewSource(int64(h.Sum64())))

		picked := rng.Perm(len(pixels))[:n]
		sort.Ints(picked)
		for k, j := range picked {
			p := centers[pixels[j]]
			points = append(points, SamplePoint{
				ID:        fmt.Sprintf("%s_%d_%d", region, c, k),
				Region:    region,
				Longitude: p.Lon(),
				Latitude:  p.Lat(),
				Reference: c,
			})
		}
	}
	return points, nil
}

// WritePoints writes sample points in the layout LoadPoints reads.
func WritePoints(path string, points []SamplePoint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create points directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create points file: %w", err)
	}
	defer file.Close()
	if err := gocsv.MarshalFile(&points, file); err != nil {
		return fmt.Errorf("failed to marshal sample points: %w", err)
	}
	return nil
}

func sortedClasses(m map[int]int) []int {
	classes := make([]int, 0, len(m))
	for c := range m {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}
