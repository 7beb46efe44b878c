// Package history keeps the annual composites of one region run and derives
// multi-year variability metrics from them.
package history

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mapbiomas/brazil-cerrado/internal/composite"
)

// ErrOutOfOrder is returned when a year is not strictly after the last one written.
var ErrOutOfOrder = errors.New("composite history written out of order")

// History maps year to composite for a single region. It only grows, in
// increasing year order, and is dropped when the run ends.
type History struct {
	region     string
	last       int
	composites map[int]*composite.AnnualComposite
}

func New(region string) *History {
	return &History{region: region, composites: map[int]*composite.AnnualComposite{}}
}

func (h *History) Region() string {
	return h.region
}

// Put stores the composite of a year. It must run before any read of that year.
func (h *History) Put(c *composite.AnnualComposite) error {
	if c.Region() != h.region {
		return fmt.Errorf("composite for region %s written to history of %s", c.Region(), h.region)
	}
	if len(h.composites) > 0 && c.Year() <= h.last {
		return fmt.Errorf("%w: year %d after %d", ErrOutOfOrder, c.Year(), h.last)
	}
	h.composites[c.Year()] = c
	h.last = c.Year()
	return nil
}

func (h *History) Get(year int) (*composite.AnnualComposite, bool) {
	c, ok := h.composites[year]
	return c, ok
}

func (h *History) Years() []int {
	years := make([]int, 0, len(h.composites))
	for y := range h.composites {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func (h *History) Len() int {
	return len(h.composites)
}
