package ktail

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"github.com/valyala/fasttemplate"
)

// Stream names used by Sink.Write.
const (
	Stdout = "stdout"
	Stderr = "stderr"
)

// DefaultPrefix renders as "[<pod>:<stream>] ".
const DefaultPrefix = "[{{pod}}:{{stream}}] "

// Formatter writes log chunks to one combined output,
// one prefixed line at a time.
type Formatter struct {
	mu  sync.Mutex
	w   io.Writer
	tpl *fasttemplate.Template
}

// NewFormatter returns a Formatter writing to w. The
// prefix template may use the {{pod}} and {{stream}}
// tags; an empty prefix selects DefaultPrefix.
func NewFormatter(w io.Writer, prefix string) (*Formatter, error) {
	const errCtx = "creating formatter"

	if prefix == "" {
		prefix = DefaultPrefix
	}

	tpl, err := fasttemplate.NewTemplate(prefix, "{{", "}}")
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w: prefix %q: %w",
			errCtx, ErrInvalidConfig, prefix, err,
		)
	}

	return &Formatter{w: w, tpl: tpl}, nil
}

// Emit splits chunk into lines, trims trailing
// whitespace, drops empty lines and writes the rest with
// the pod and stream prefix, in order.
func (f *Formatter) Emit(pod, stream string, chunk []byte) error {
	const errCtx = "emitting log lines"

	prefix := f.tpl.ExecuteString(map[string]interface{}{
		"pod":    pod,
		"stream": stream,
	})

	var sb strings.Builder

	for _, line := range strings.Split(string(chunk), "\n") {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if line == "" {
			continue
		}

		sb.WriteString(prefix)
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	if sb.Len() == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := io.WriteString(f.w, sb.String()); err != nil {
		return fmt.Errorf(
			"%s: pod %s: %w", errCtx, pod, err,
		)
	}

	return nil
}
