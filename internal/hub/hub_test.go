package hub

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	events []Event
	closed bool
	fail   bool
	block  chan struct{} // non-nil: Send blocks until closed
}

func (f *fakeConn) Send(ev Event) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("connection reset")
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeConn) snapshot() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.events))
	copy(out, f.events)
	return out
}

func TestPublishFansOutToAllUserConnections(t *testing.T) {
	h := New(nil)
	a, b := &fakeConn{}, &fakeConn{}
	other := &fakeConn{}

	h.Register("u1", a)
	h.Register("u1", b)
	h.Register("u2", other)

	h.Publish("u1", Event{Type: EventMessage, Payload: "hello"})

	require.Eventually(t, func() bool {
		return a.count() == 1 && b.count() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, other.count(), "events must not leak across users")
}

func TestPublishToUserWithoutConnections(t *testing.T) {
	h := New(nil)
	// must not panic or block
	h.Publish("nobody", Event{Type: EventTyping})
	assert.Zero(t, h.ConnectionCount())
}

func TestDeadConnectionDoesNotBlockOthers(t *testing.T) {
	h := New(nil)
	dead := &fakeConn{fail: true}
	live := &fakeConn{}

	h.Register("u1", dead)
	h.Register("u1", live)

	h.Publish("u1", Event{Type: EventMessage, Payload: "one"})

	require.Eventually(t, func() bool { return live.count() == 1 }, time.Second, 5*time.Millisecond)

	// the failed connection is removed from the registry
	require.Eventually(t, func() bool { return h.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)

	h.Publish("u1", Event{Type: EventMessage, Payload: "two"})
	require.Eventually(t, func() bool { return live.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestSlowConnectionIsDropped(t *testing.T) {
	h := New(nil)
	slow := &fakeConn{block: make(chan struct{})}
	h.Register("u1", slow)

	// first event parks the writer, the rest fill the buffer and overflow
	for i := 0; i < sendBufferSize+2; i++ {
		h.Publish("u1", Event{Type: EventMessage, Payload: i})
	}

	require.Eventually(t, func() bool { return h.ConnectionCount() == 0 }, time.Second, 5*time.Millisecond)
	close(slow.block)
}

func TestPerConnectionOrdering(t *testing.T) {
	h := New(nil)
	c := &fakeConn{}
	h.Register("u1", c)

	const n = 50
	for i := 0; i < n; i++ {
		h.Publish("u1", Event{Type: EventMessage, Payload: fmt.Sprintf("ev-%d", i)})
	}

	require.Eventually(t, func() bool { return c.count() == n }, time.Second, 5*time.Millisecond)
	for i, ev := range c.snapshot() {
		assert.Equal(t, fmt.Sprintf("ev-%d", i), ev.Payload)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	h := New(nil)
	c := &fakeConn{}
	id := h.Register("u1", c)

	assert.Equal(t, 1, h.ConnectionCount())
	assert.Equal(t, 1, h.UserCount())

	h.Unregister("u1", id)
	h.Unregister("u1", id)

	assert.Zero(t, h.ConnectionCount())
	assert.Zero(t, h.UserCount())
	c.mu.Lock()
	assert.True(t, c.closed)
	c.mu.Unlock()
}

func TestConcurrentPublishAndUnregister(t *testing.T) {
	h := New(nil)

	// publishers racing with removals must never hit a closed channel
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				h.Publish("u1", Event{Type: EventMessage, Payload: j})
			}
		}()
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := h.Register("u1", &fakeConn{})
				h.Unregister("u1", id)
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return h.ConnectionCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCloseDropsEverything(t *testing.T) {
	h := New(nil)
	a, b := &fakeConn{}, &fakeConn{}
	h.Register("u1", a)
	h.Register("u2", b)

	h.Close()
	assert.Zero(t, h.ConnectionCount())
	assert.Zero(t, h.UserCount())
}
