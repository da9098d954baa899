package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeGo_RecoversPanic(t *testing.T) {
	got := make(chan any, 1)
	SafeGo(func() { panic("boom") }, func(r any) { got <- r })

	select {
	case r := <-got:
		assert.Equal(t, "boom", r)
	case <-time.After(time.Second):
		t.Fatal("panic handler not called")
	}
}

func TestFan_IsolatesPanics(t *testing.T) {
	var done atomic.Int32
	var mu sync.Mutex
	var panicked []int

	Fan([]func(){
		func() { done.Add(1) },
		func() { panic("member failed") },
		func() { done.Add(1) },
	}, func(i int, _ any) {
		mu.Lock()
		panicked = append(panicked, i)
		mu.Unlock()
	})

	assert.Equal(t, int32(2), done.Load())
	assert.Equal(t, []int{1}, panicked)
}

func TestFan_Empty(t *testing.T) {
	assert.NotPanics(t, func() { Fan(nil, nil) })
}

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	m := NewKeyedMutex()
	var inside atomic.Int32
	var maxInside atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("family")
			defer unlock()
			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Zero(t, m.Len())
}

func TestKeyedMutex_TryLock(t *testing.T) {
	m := NewKeyedMutex()

	unlock, ok := m.TryLock("a")
	require.True(t, ok)

	_, ok = m.TryLock("a")
	assert.False(t, ok)

	other, ok := m.TryLock("b")
	require.True(t, ok)
	other()

	unlock()
	_, ok = m.TryLock("a")
	assert.True(t, ok)
}
