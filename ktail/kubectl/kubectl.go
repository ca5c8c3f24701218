package kubectl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/ktail/ktail"
)

// DefaultPath is the kubectl binary looked up in PATH.
const DefaultPath = "kubectl"

// Client runs kubectl against one namespace. The zero
// value uses the current kubeconfig context and its
// namespace.
type Client struct {
	// Path is the kubectl binary. Empty means
	// DefaultPath.
	Path string

	// Kubeconfig is passed as --kubeconfig when set.
	Kubeconfig string

	// Context is passed as --context when set.
	Context string

	// Namespace is passed as --namespace when set.
	Namespace string

	// Container is passed as -c to kubectl logs when
	// set.
	Container string
}

// podList mirrors the parts of "kubectl get pods -o json"
// that are needed to name pods.
type podList struct {
	Items []podItem `json:"items"`
}

type podItem struct {
	Metadata podMeta `json:"metadata"`
}

type podMeta struct {
	Name string `json:"name"`
}

func (c *Client) bin() string {
	if c.Path == "" {
		return DefaultPath
	}

	return c.Path
}

// globalArgs returns the connection flags shared by all
// kubectl invocations.
func (c *Client) globalArgs() []string {
	var args []string

	if c.Kubeconfig != "" {
		args = append(args, "--kubeconfig", c.Kubeconfig)
	}

	if c.Context != "" {
		args = append(args, "--context", c.Context)
	}

	if c.Namespace != "" {
		args = append(args, "--namespace", c.Namespace)
	}

	return args
}

// ListPods runs "kubectl get pods -o json" and returns the
// pod names. The selectors are joined into a single -l
// flag since kubectl only keeps the last one given.
func (c *Client) ListPods(
	ctx context.Context,
	selectors []string,
) ([]string, error) {
	const errCtx = "listing pods"

	args := append(c.globalArgs(), "get", "pods", "-o", "json")
	if len(selectors) > 0 {
		args = append(args, "-l", strings.Join(selectors, ","))
	}

	out, err := Ex(ctx, c.bin(), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var pl podList
	if err := json.Unmarshal(out, &pl); err != nil {
		return nil, fmt.Errorf(
			"%s: parse json: %w", errCtx, err,
		)
	}

	names := make([]string, 0, len(pl.Items))
	for _, it := range pl.Items {
		names = append(names, it.Metadata.Name)
	}

	return names, nil
}

// ProbeReady fetches one line of existing logs. Any
// failure wraps ktail.ErrNotReady.
func (c *Client) ProbeReady(
	ctx context.Context,
	pod string,
) error {
	const errCtx = "probing pod"

	args := append(c.globalArgs(), "logs", "--tail=1")
	args = append(args, c.containerArgs()...)
	args = append(args, pod)

	if _, err := Ex(ctx, c.bin(), args...); err != nil {
		return fmt.Errorf(
			"%s %s: %w: %w",
			errCtx, pod, ktail.ErrNotReady, err,
		)
	}

	return nil
}

func (c *Client) containerArgs() []string {
	if c.Container == "" {
		return nil
	}

	return []string{"-c", c.Container}
}

// logArgs builds the kubectl logs command line for a
// stream.
func (c *Client) logArgs(
	pod string,
	opts ktail.StreamOptions,
) []string {
	args := append(
		c.globalArgs(),
		"logs",
		"--tail="+strconv.FormatInt(opts.TailLines, 10),
	)

	if opts.Follow {
		args = append(args, "-f")
	}

	if d := opts.Since.Duration; d > 0 {
		args = append(args, "--since="+d.String())
	}

	if t := opts.Since.Time; !t.IsZero() {
		args = append(
			args, "--since-time="+t.Format(time.RFC3339),
		)
	}

	args = append(args, c.containerArgs()...)

	return append(args, pod)
}

// Open starts a kubectl logs process for pod. Its stdout
// and stderr are forwarded line by line and its exit
// status is reported once both are drained.
func (c *Client) Open(
	ctx context.Context,
	pod string,
	opts ktail.StreamOptions,
	sink ktail.Sink,
) (ktail.Stream, error) {
	const errCtx = "opening log stream"

	args := c.logArgs(pod, opts)

	//nolint:gosec // binary and arguments from configuration
	cmd := exec.CommandContext(ctx, c.bin(), args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf(
			"%s %s: stdout: %w", errCtx, pod, err,
		)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf(
			"%s %s: stderr: %w", errCtx, pod, err,
		)
	}

	slog.Debug(
		"starting",
		"cmd", c.bin(),
		"args", strings.Join(args, " "),
	)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf(
			"%s %s: %w", errCtx, pod, err,
		)
	}

	p := &process{pod: pod, cmd: cmd}

	go p.wait(sink, stdout, stderr)

	return p, nil
}

// process is one running kubectl logs command.
type process struct {
	pod string
	cmd *exec.Cmd
}

func (p *process) wait(
	sink ktail.Sink,
	stdout, stderr io.Reader,
) {
	var wg sync.WaitGroup

	wg.Add(2) //nolint:mnd // stdout + stderr

	forward := func(name string, r io.Reader) {
		defer wg.Done()

		rd := bufio.NewReader(r)

		for {
			line, err := rd.ReadBytes('\n')
			if len(line) > 0 {
				sink.Write(name, line)
			}

			if err != nil {
				return
			}
		}
	}

	go forward(ktail.Stdout, stdout)
	go forward(ktail.Stderr, stderr)

	wg.Wait()

	err := p.cmd.Wait()
	if err != nil {
		slog.Debug(
			"kubectl logs ended",
			"pod", p.pod,
			"error", err,
		)
	}

	sink.Exit(exitCode(err))
}

// Close kills the kubectl process.
func (p *process) Close() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}

	return err
}

// exitCode maps the result of Wait to an exit code. A
// process killed by a signal reports 1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) && ee.ExitCode() > 0 {
		return ee.ExitCode()
	}

	return 1
}
