package dataset

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassCounts(t *testing.T) {
	reference := []float64{3, 3, 4, math.NaN(), 12, 3}
	assert.Equal(t, map[int]int{3: 3, 4: 1, 12: 1}, ClassCounts(reference, nil))
	assert.Equal(t, map[int]int{3: 2, 12: 1}, ClassCounts(reference, []bool{true, false, false, true, true, true}))
}

func TestAllocateIsProportionalWithFloor(t *testing.T) {
	alloc := Allocate(map[int]int{3: 800, 4: 150, 12: 50, 33: 0}, 100, 10)
	assert.Equal(t, map[int]int{3: 80, 4: 15, 12: 10}, alloc)

	assert.Empty(t, Allocate(map[int]int{}, 100, 10))
}

func TestStratifyCapsAtAvailablePixels(t *testing.T) {
	reference := []float64{3, 3, 3, 4, math.NaN(), 4}
	centers := []orb.Point{{-48, -15}, {-47, -15}, {-46, -15}, {-48, -16}, {-47, -16}, {-46, -16}}
	mask := []bool{true, true, true, true, true, false}
	alloc := map[int]int{3: 2, 4: 5, 15: 1}

	points, err := Stratify("12", reference, centers, mask, alloc)
	require.NoError(t, err)
	require.Len(t, points, 3)

	ids := []string{points[0].ID, points[1].ID, points[2].ID}
	assert.Equal(t, []string{"12_3_0", "12_3_1", "12_4_0"}, ids)
	assert.Equal(t, 3, points[0].Reference)
	assert.Equal(t, SamplePoint{ID: "12_4_0", Region: "12", Longitude: -48, Latitude: -16, Reference: 4}, points[2])

	again, err := Stratify("12", reference, centers, mask, alloc)
	require.NoError(t, err)
	assert.Equal(t, points, again)

	_, err = Stratify("12", reference, centers[:2], nil, alloc)
	assert.Error(t, err)
}

func TestWritePointsReadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points", "12.csv")
	points := []SamplePoint{
		{ID: "12_3_0", Region: "12", Longitude: -47.5, Latitude: -15.5, Reference: 3},
		{ID: "12_4_0", Region: "12", Longitude: -46.5, Latitude: -15.5, Reference: 4},
	}
	require.NoError(t, WritePoints(path, points))

	loaded, err := LoadPoints(path)
	require.NoError(t, err)
	assert.Equal(t, points, loaded)
}
