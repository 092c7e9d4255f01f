package stream

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeTransport is an in-memory Transport for registry and session tests.
type fakeTransport struct {
	in   chan []byte
	done chan struct{}

	mu          sync.Mutex
	sent        [][]byte
	closeReason string
	failSends   bool

	closeOnce sync.Once
}

var _ Transport = (*fakeTransport)(nil)

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:   make(chan []byte, 32),
		done: make(chan struct{}),
	}
}

func (f *fakeTransport) push(frame string) {
	f.in <- []byte(frame)
}

func (f *fakeTransport) Receive(timeout time.Duration) ([]byte, error) {
	var expire <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expire = timer.C
	}
	select {
	case frame := <-f.in:
		return frame, nil
	case <-f.done:
		return nil, errors.New("transport closed")
	case <-expire:
		return nil, errors.New("receive timed out")
	}
}

func (f *fakeTransport) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSends {
		return errors.New("send failed")
	}
	select {
	case <-f.done:
		return errors.New("transport closed")
	default:
	}
	f.sent = append(f.sent, append([]byte(nil), frame...))
	return nil
}

func (f *fakeTransport) Close(reason string) error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closeReason = reason
		f.mu.Unlock()
		close(f.done)
	})
	return nil
}

func (f *fakeTransport) Connected() bool {
	select {
	case <-f.done:
		return false
	default:
		return true
	}
}

func (f *fakeTransport) frames() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, 0, len(f.sent))
	for _, raw := range f.sent {
		msg, err := Parse(raw)
		if err != nil {
			msg = Message{Type: "unparsable", Message: string(raw)}
		}
		out = append(out, msg)
	}
	return out
}

func (f *fakeTransport) reason() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeReason
}

// waitFrames polls until the transport has sent at least n frames.
func (f *fakeTransport) waitFrames(t *testing.T, n int) []Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if frames := f.frames(); len(frames) >= n {
			return frames
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames, have %d", n, len(f.frames()))
	return nil
}

// waitClosed polls until the transport is closed.
func (f *fakeTransport) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transport to close")
	}
}
