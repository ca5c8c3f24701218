package ktail_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/ktail/ktail"
)

func TestFormatter_Emit_trims_and_drops_blank_lines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	f, err := ktail.NewFormatter(&buf, "")
	require.NoError(t, err)

	require.NoError(
		t, f.Emit("p1", ktail.Stdout, []byte("foo \nbar\n\n")),
	)

	assert.Equal(
		t,
		"[p1:stdout] foo\n[p1:stdout] bar\n",
		buf.String(),
	)
}

func TestFormatter_Emit_crlf(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	f, err := ktail.NewFormatter(&buf, "")
	require.NoError(t, err)

	require.NoError(
		t,
		f.Emit("p2", ktail.Stderr, []byte("one\r\n\r\n  two\t\r\n")),
	)

	assert.Equal(
		t,
		"[p2:stderr] one\n[p2:stderr]   two\n",
		buf.String(),
	)
}

func TestFormatter_Emit_keeps_order_across_chunks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	f, err := ktail.NewFormatter(&buf, "")
	require.NoError(t, err)

	require.NoError(t, f.Emit("a", ktail.Stdout, []byte("1\n2")))
	require.NoError(t, f.Emit("b", ktail.Stderr, []byte("x\n")))
	require.NoError(t, f.Emit("a", ktail.Stdout, []byte("3\n")))

	assert.Equal(
		t,
		"[a:stdout] 1\n[a:stdout] 2\n[b:stderr] x\n[a:stdout] 3\n",
		buf.String(),
	)
}

func TestFormatter_Emit_whitespace_only(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	f, err := ktail.NewFormatter(&buf, "")
	require.NoError(t, err)

	require.NoError(t, f.Emit("p", ktail.Stdout, []byte(" \n\t\n")))
	assert.Empty(t, buf.String())
}

func TestFormatter_custom_prefix(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	f, err := ktail.NewFormatter(&buf, "{{pod}} {{stream}} | ")
	require.NoError(t, err)

	require.NoError(t, f.Emit("web-1", ktail.Stdout, []byte("hi\n")))
	assert.Equal(t, "web-1 stdout | hi\n", buf.String())
}

func TestNewFormatter_rejects_unclosed_tag(t *testing.T) {
	t.Parallel()

	_, err := ktail.NewFormatter(&bytes.Buffer{}, "[{{pod")
	assert.ErrorIs(t, err, ktail.ErrInvalidConfig)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestFormatter_Emit_write_error(t *testing.T) {
	t.Parallel()

	f, err := ktail.NewFormatter(failingWriter{}, "")
	require.NoError(t, err)

	err = f.Emit("p", ktail.Stdout, []byte("line\n"))
	assert.ErrorContains(t, err, "disk full")
}
