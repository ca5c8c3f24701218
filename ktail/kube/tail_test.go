package kube_test

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/ktail/ktail"
	"github.com/byte4ever/ktail/ktail/kube"
)

func TestTail_forwards_lines_and_exits_clean(t *testing.T) {
	t.Parallel()

	sink := newRecordingSink()

	tail := kube.NewTail(
		"default", "web-1", "app",
		io.NopCloser(strings.NewReader("a\nb\nc")),
	)
	tail.Start(sink)

	chunks, code := sink.wait(t)

	assert.Equal(t, 0, code)
	assert.Equal(
		t,
		[]chunk{
			{ktail.Stdout, "a\n"},
			{ktail.Stdout, "b\n"},
			{ktail.Stdout, "c"},
		},
		chunks,
	)
}

func TestTail_read_error_exits_nonzero(t *testing.T) {
	t.Parallel()

	sink := newRecordingSink()

	tail := kube.NewTail(
		"default", "web-1", "app",
		io.NopCloser(io.MultiReader(
			strings.NewReader("x\n"),
			iotest.ErrReader(errors.New("connection reset")),
		)),
	)
	tail.Start(sink)

	chunks, code := sink.wait(t)

	assert.Equal(t, 1, code)
	assert.Equal(t, []chunk{{ktail.Stdout, "x\n"}}, chunks)
}

func TestTail_Close_exits_clean(t *testing.T) {
	t.Parallel()

	sink := newRecordingSink()
	pr, pw := io.Pipe()

	defer pw.Close()

	tail := kube.NewTail("default", "web-1", "app", pr)
	tail.Start(sink)

	require.NoError(t, tail.Close())
	require.NoError(t, tail.Close())

	chunks, code := sink.wait(t)

	assert.Equal(t, 0, code)
	assert.Empty(t, chunks)
}
