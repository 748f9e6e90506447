package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockTableSerialisesPerKey(t *testing.T) {
	table := newLockTable()

	const workers = 20
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := table.acquire("grove:same")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	require.Equal(t, workers, counter)

	// All holders released, the table must be empty again.
	table.mu.Lock()
	defer table.mu.Unlock()
	require.Empty(t, table.locks)
}

func TestLockTableIndependentKeysDoNotBlock(t *testing.T) {
	table := newLockTable()

	releaseA := table.acquire("grove:a")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		release := table.acquire("grove:b")
		release()
		close(done)
	}()

	<-done
}
