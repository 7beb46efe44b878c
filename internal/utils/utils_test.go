package utils

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortDates(t *testing.T) {
	a := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.AddDate(0, 1, 0)
	c := a.AddDate(0, 2, 0)
	assert.Equal(t, []time.Time{a, b, c}, SortDates([]time.Time{c, a, b}, true))
	assert.Equal(t, []time.Time{c, b, a}, SortDates([]time.Time{a, c, b}, false))
}

func TestExecuteWithMutexSerializes(t *testing.T) {
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ExecuteWithMutex(func() { counter++ })
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}
