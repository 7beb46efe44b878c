package log

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentLoggingBeforeAndDuringInit(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			Infow("worker", "id", i)
			Debugf("worker %d", i)
		}(i)
	}
	require.NoError(t, Init(false))
	wg.Wait()
	assert.NotNil(t, logger())
	Sync()
}
