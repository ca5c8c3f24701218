package kubectl

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Ex runs the named command and returns its stdout. On
// failure the error carries the command line and its
// stderr.
func Ex(
	ctx context.Context,
	name string,
	arg ...string,
) ([]byte, error) {
	const errCtx = "executing command"

	slog.Debug(
		"executing",
		"cmd", name,
		"args", strings.Join(arg, " "),
	)

	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf(
			"%s: %s %s: %w: %s",
			errCtx, name, strings.Join(arg, " "), err,
			strings.TrimSpace(stderr.String()),
		)
	}

	return out, nil
}
