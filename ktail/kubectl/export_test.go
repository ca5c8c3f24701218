package kubectl

import "github.com/byte4ever/ktail/ktail"

// LogArgsForTest exposes logArgs.
func (c *Client) LogArgsForTest(
	pod string,
	opts ktail.StreamOptions,
) []string {
	return c.logArgs(pod, opts)
}

// ExitCodeForTest exposes exitCode.
var ExitCodeForTest = exitCode
