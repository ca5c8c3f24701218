package kube_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type chunk struct {
	stream string
	data   string
}

// recordingSink records writes and signals exit.
type recordingSink struct {
	mu     sync.Mutex
	chunks []chunk
	code   int
	done   chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{})}
}

func (s *recordingSink) Write(stream string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = append(s.chunks, chunk{stream, string(data)})
}

func (s *recordingSink) Exit(code int) {
	s.mu.Lock()
	s.code = code
	s.mu.Unlock()

	close(s.done)
}

func (s *recordingSink) wait(t *testing.T) ([]chunk, int) {
	t.Helper()

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "stream did not exit")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]chunk(nil), s.chunks...), s.code
}
