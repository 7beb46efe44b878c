// Package sma unmixes surface reflectance into soil, green vegetation and
// shade fractions and derives fraction indices from them.
package sma

import (
	"fmt"
	"sort"
)

const (
	Soil  = "soil"
	GV    = "gv"
	Shade = "shade"
	RMSE  = "sma_rmse"
)

// Fractions lists the unmixing outputs in a stable order.
var Fractions = []string{GV, Soil, Shade, RMSE}

// Endmember is a pure spectral signature over named bands.
type Endmember struct {
	Name        string
	Reflectance map[string]float64
}

// Library is the three-member signature set of one sensor family.
type Library struct {
	Sensor     string
	Bands      []string
	Endmembers [3]Endmember
}

var reflectiveBands = []string{"blue", "green", "red", "nir", "swir1", "swir2"}

func signature(name string, values ...float64) Endmember {
	r := make(map[string]float64, len(values))
	for i, v := range values {
		r[reflectiveBands[i]] = v
	}
	return Endmember{Name: name, Reflectance: r}
}

var libraries = map[string]Library{
	"landsat-5": {
		Sensor: "landsat-5",
		Bands:  reflectiveBands,
		Endmembers: [3]Endmember{
			signature(GV, 0.0500, 0.0900, 0.0400, 0.6100, 0.3000, 0.1000),
			signature(Soil, 0.1400, 0.1700, 0.2200, 0.3000, 0.5500, 0.3000),
			signature(Shade, 0, 0, 0, 0, 0, 0),
		},
	},
	"landsat-7": {
		Sensor: "landsat-7",
		Bands:  reflectiveBands,
		Endmembers: [3]Endmember{
			signature(GV, 0.0500, 0.0900, 0.0400, 0.6100, 0.3000, 0.1000),
			signature(Soil, 0.1400, 0.1700, 0.2200, 0.3000, 0.5500, 0.3000),
			signature(Shade, 0, 0, 0, 0, 0, 0),
		},
	},
	"landsat-8": {
		Sensor: "landsat-8",
		Bands:  reflectiveBands,
		Endmembers: [3]Endmember{
			signature(GV, 0.0350, 0.0700, 0.0300, 0.5800, 0.2800, 0.0900),
			signature(Soil, 0.1300, 0.1600, 0.2100, 0.2900, 0.5300, 0.2900),
			signature(Shade, 0, 0, 0, 0, 0, 0),
		},
	},
	"sentinel-2": {
		Sensor: "sentinel-2",
		Bands:  reflectiveBands,
		Endmembers: [3]Endmember{
			signature(GV, 0.0380, 0.0750, 0.0340, 0.5600, 0.2700, 0.0950),
			signature(Soil, 0.1350, 0.1650, 0.2150, 0.2950, 0.5400, 0.3100),
			signature(Shade, 0, 0, 0, 0, 0, 0),
		},
	},
}

// LibraryFor returns the endmember set for a sensor family.
func LibraryFor(sensor string) (Library, error) {
	lib, ok := libraries[sensor]
	if !ok {
		return Library{}, fmt.Errorf("no endmember library for sensor %q", sensor)
	}
	return lib, nil
}

func Sensors() []string {
	out := make([]string, 0, len(libraries))
	for k := range libraries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
