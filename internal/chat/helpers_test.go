package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() func() time.Time {
	return func() time.Time { return testEpoch }
}

// sequentialIDs yields msg-1, msg-2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("msg-%d", n)
	}
}

// fakeSub records everything delivered to it.
type fakeSub struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	closed bool
	full   bool
}

func newFakeSub(id string) *fakeSub {
	return &fakeSub{id: id}
}

func (f *fakeSub) ID() string { return f.id }

func (f *fakeSub) Deliver(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full || f.closed {
		return false
	}
	f.frames = append(f.frames, append([]byte(nil), payload...))
	return true
}

func (f *fakeSub) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSub) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSub) received(t *testing.T) []Frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Frame, 0, len(f.frames))
	for _, raw := range f.frames {
		var frame Frame
		require.NoError(t, json.Unmarshal(raw, &frame))
		out = append(out, frame)
	}
	return out
}

// named returns the frames carrying the given event name.
func (f *fakeSub) named(t *testing.T, name string) []Frame {
	t.Helper()
	var out []Frame
	for _, frame := range f.received(t) {
		if frame.Event == name {
			out = append(out, frame)
		}
	}
	return out
}

// count is safe to call from outside the test goroutine.
func (f *fakeSub) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, raw := range f.frames {
		var frame Frame
		if json.Unmarshal(raw, &frame) == nil && frame.Event == name {
			n++
		}
	}
	return n
}

func (f *fakeSub) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

func decodeData[T any](t *testing.T, frame Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(frame.Data, &v))
	return v
}
