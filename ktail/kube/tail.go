// Copyright 2016 Wercker Holding BV
//
// Licensed under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in
// compliance with the License. You may obtain a copy of
// the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in
// writing, software distributed under the License is
// distributed on an "AS IS" BASIS, WITHOUT WARRANTIES
// OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing
// permissions and limitations under the License.

package kube

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/byte4ever/ktail/ktail"
)

// Tail follows the log stream of one container and
// forwards it to a ktail.Sink.
type Tail struct {
	Namespace     string
	PodName       string
	ContainerName string

	stream io.ReadCloser
	once   sync.Once
	closed chan struct{}

	// ended, when set, gives the exit code once the
	// server closed the stream.
	ended func() int
}

// NewTail returns a Tail reading from stream.
func NewTail(
	namespace, podName, containerName string,
	stream io.ReadCloser,
) *Tail {
	return &Tail{
		Namespace:     namespace,
		PodName:       podName,
		ContainerName: containerName,
		stream:        stream,
		closed:        make(chan struct{}),
	}
}

// Start forwards lines to sink until the stream ends,
// then reports the exit code: 0 when Close was called, 1
// on a read error. When the server closed the stream the
// code comes from the container's final state.
func (t *Tail) Start(sink ktail.Sink) {
	go func() {
		//nolint:errcheck,gosec // best-effort close
		defer t.stream.Close()

		sink.Exit(t.pump(sink))
	}()
}

func (t *Tail) pump(sink ktail.Sink) int {
	reader := bufio.NewReader(t.stream)

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			sink.Write(ktail.Stdout, line)
		}

		if err == nil {
			continue
		}

		if t.isClosed() {
			return 0
		}

		if errors.Is(err, io.EOF) {
			if t.ended == nil {
				return 0
			}

			return t.ended()
		}

		slog.Debug(
			"error reading log stream",
			"namespace", t.Namespace,
			"pod", t.PodName,
			"container", t.ContainerName,
			"error", err,
		)

		return 1
	}
}

func (t *Tail) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

// Close stops tailing. It is safe to call more than
// once.
func (t *Tail) Close() error {
	var err error

	t.once.Do(func() {
		close(t.closed)
		err = t.stream.Close()
	})

	return err
}
