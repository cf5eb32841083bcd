package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpinLock_Exclusive(t *testing.T) {
	var lock SpinLock
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				lock.Lock()
				counter++
				lock.Unlock()
			}
		}()
	}

	wg.Wait()
	require.Equal(t, 8000, counter)
}

func TestSpinLock_TryLock(t *testing.T) {
	var lock SpinLock

	require.True(t, lock.TryLock())
	require.False(t, lock.TryLock())
	lock.Unlock()
	require.True(t, lock.TryLock())
	lock.Unlock()

	require.Panics(t, func() {
		lock.Unlock()
	})
}

func TestOptionalMutex_Disabled(t *testing.T) {
	m := OptionalMutex{}
	m.Lock()
	// A disabled mutex never blocks, so a second Lock returns immediately
	m.Lock()
	m.Unlock()
	m.Unlock()

	rw := OptionalRWMutex{}
	require.True(t, rw.TryLock())
	require.True(t, rw.TryLock())
}
