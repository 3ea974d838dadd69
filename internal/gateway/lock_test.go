package gateway

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocksSerializeSameID(t *testing.T) {
	var locks keyedLocks
	const workers = 16

	active := 0
	maxActive := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(42)
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "same-id sections must not overlap")
	assert.Empty(t, locks.entries, "entries must be reclaimed")
}

func TestKeyedLocksIndependentIDs(t *testing.T) {
	var locks keyedLocks

	unlockA := locks.lock(1)
	done := make(chan struct{})
	go func() {
		unlockB := locks.lock(2)
		unlockB()
		close(done)
	}()

	<-done // a different id must not block behind id 1
	unlockA()
}
