package utils

import "sync"

var mu sync.Mutex

// ExecuteWithMutex serializes calls into GDAL, whose dataset handles are not
// safe to open concurrently from the region workers.
func ExecuteWithMutex(fn func()) {
	mu.Lock()
	defer mu.Unlock()
	fn()
}
