package orchestrator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionLocksSerialize(t *testing.T) {
	locks := newSessionLocks()

	var inSection, maxSeen int
	var seen sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := locks.acquire("s1")
			defer locks.release("s1", e)

			seen.Lock()
			inSection++
			if inSection > maxSeen {
				maxSeen = inSection
			}
			seen.Unlock()

			seen.Lock()
			inSection--
			seen.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "critical section must be exclusive per key")
}

func TestSessionLocksDropEntriesWhenIdle(t *testing.T) {
	locks := newSessionLocks()

	e := locks.acquire("s1")
	locks.mu.Lock()
	assert.Len(t, locks.locks, 1)
	locks.mu.Unlock()

	locks.release("s1", e)
	locks.mu.Lock()
	assert.Empty(t, locks.locks, "released keys must not leak")
	locks.mu.Unlock()
}

func TestSessionLocksIndependentKeys(t *testing.T) {
	locks := newSessionLocks()

	a := locks.acquire("a")
	done := make(chan struct{})
	go func() {
		b := locks.acquire("b")
		locks.release("b", b)
		close(done)
	}()

	// distinct keys never contend
	<-done
	locks.release("a", a)
}
