package ktail_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/byte4ever/ktail/ktail"
)

// fakeLister returns a fixed pod list, or err when set.
type fakeLister struct {
	mu       sync.Mutex
	pods     []string
	err      error
	calls    int
	onCall   func(n int)
	selector []string
}

func (l *fakeLister) ListPods(
	_ context.Context,
	labels []string,
) ([]string, error) {
	l.mu.Lock()
	l.calls++
	n := l.calls
	l.selector = labels
	pods := append([]string(nil), l.pods...)
	err := l.err
	onCall := l.onCall
	l.mu.Unlock()

	if onCall != nil {
		onCall(n)
	}

	return pods, err
}

func (l *fakeLister) set(pods []string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pods = pods
	l.err = err
}

type fakeStream struct {
	closed bool
}

func (s *fakeStream) Close() error {
	s.closed = true

	return nil
}

// fakeStreamer fails the first notReady[pod] probes of a
// pod and records every opened stream.
type fakeStreamer struct {
	mu       sync.Mutex
	notReady map[string]int
	openErr  map[string]error
	probes   map[string]int
	opened   []string
	opts     []ktail.StreamOptions
	sinks    map[string]ktail.Sink
	streams  map[string]*fakeStream
}

func newFakeStreamer() *fakeStreamer {
	return &fakeStreamer{
		notReady: make(map[string]int),
		openErr:  make(map[string]error),
		probes:   make(map[string]int),
		sinks:    make(map[string]ktail.Sink),
		streams:  make(map[string]*fakeStream),
	}
}

func (s *fakeStreamer) ProbeReady(
	_ context.Context,
	pod string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.probes[pod]++

	if s.notReady[pod] > 0 {
		s.notReady[pod]--

		return fmt.Errorf("%s: %w", pod, ktail.ErrNotReady)
	}

	return nil
}

func (s *fakeStreamer) Open(
	_ context.Context,
	pod string,
	opts ktail.StreamOptions,
	sink ktail.Sink,
) (ktail.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.openErr[pod]; err != nil {
		return nil, err
	}

	st := &fakeStream{}
	s.opened = append(s.opened, pod)
	s.opts = append(s.opts, opts)
	s.sinks[pod] = sink
	s.streams[pod] = st

	return st, nil
}

func (s *fakeStreamer) sink(pod string) ktail.Sink {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sinks[pod]
}

func (s *fakeStreamer) openedPods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.opened...)
}

var errBoom = errors.New("boom")
