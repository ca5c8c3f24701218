// Package main provides the ktail CLI. It tails the logs
// of current and future pods matching the given labels and
// names. All pod logs go to stdout regardless of origin;
// ktail's own messages go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/byte4ever/ktail/ktail"
	"github.com/byte4ever/ktail/ktail/kube"
	"github.com/byte4ever/ktail/ktail/kubectl"
)

const (
	backendAPI     = "api"
	backendKubectl = "kubectl"
)

// sliceFlag implements flag.Value for repeated string
// flags.
type sliceFlag []string

func (s *sliceFlag) String() string {
	if s == nil {
		return ""
	}

	return strings.Join(*s, ",")
}

func (s *sliceFlag) Set(val string) error {
	*s = append(*s, val)

	return nil
}

// options holds everything parsed from the command line.
type options struct {
	cfg         ktail.Config
	configFile  string
	backend     string
	kubeconfig  string
	kubeContext string
	kubectlPath string
	container   string
	prefix      string
	metricsAddr string
	callTimeout time.Duration
	verbose     bool
}

//nolint:funlen // CLI flag setup is inherently long
func parseOptions(args []string) (*options, error) {
	const errCtx = "parse options"

	fs := flag.NewFlagSet("ktail", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(
			fs.Output(),
			"Usage: ktail [options]\n\n"+
				"Tails logs from current and future pods"+
				" matching provided criteria.\n"+
				"All logs from pods go to stdout regardless"+
				" of origin. All internal ktail logs go to"+
				" stderr.\n\n"+
				"Example: ktail -l category=backend -n test\n\n",
		)
		fs.PrintDefaults()
	}

	opts := &options{}
	fl := ktail.DefaultConfig()

	var labels, names sliceFlag

	for _, n := range []string{"l", "label"} {
		fs.Var(&labels, n, "filter by label (repeatable: all of)")
	}

	for _, n := range []string{"n", "name"} {
		fs.Var(&names, n, "filter by name (repeatable: any of)")
	}

	for _, n := range []string{"p", "max-pods"} {
		fs.IntVar(
			&fl.MaxPods, n, ktail.DefaultMaxPods,
			"maximum pods allowed",
		)
	}

	for _, n := range []string{"r", "tail"} {
		fs.IntVar(
			&fl.TailLines, n, ktail.DefaultTailLines,
			"maximum old lines to read back",
		)
	}

	fs.IntVar(
		&fl.PollIntervalMs, "poll-interval-ms",
		ktail.DefaultPollIntervalMs,
		"milliseconds between two pod listings",
	)
	fs.StringVar(
		&fl.Since, "since", "",
		"only return logs newer than a relative duration like 5s, 2m or 3h",
	)
	fs.StringVar(
		&fl.SinceTime, "since-time", "",
		"only return logs after an RFC3339 date",
	)
	fs.StringVar(
		&fl.Namespace, "namespace", "",
		"kubernetes namespace (default from kubeconfig)",
	)
	fs.StringVar(
		&opts.configFile, "config", "",
		"YAML file with labels, names and limits",
	)
	fs.StringVar(
		&opts.backend, "backend", backendAPI,
		"how to reach the cluster: api or kubectl",
	)
	fs.StringVar(
		&opts.kubeconfig, "kubeconfig", os.Getenv("KUBECONFIG"),
		"path to kubernetes config file",
	)
	fs.StringVar(
		&opts.kubeContext, "context", "",
		"kubeconfig context to use",
	)
	fs.StringVar(
		&opts.kubectlPath, "kubectl", kubectl.DefaultPath,
		"kubectl binary for the kubectl backend",
	)
	fs.StringVar(
		&opts.container, "container", "",
		"container to follow (default: the pod's default container)",
	)
	fs.StringVar(
		&opts.prefix, "prefix", ktail.DefaultPrefix,
		"line prefix template with {{pod}} and {{stream}} tags",
	)
	fs.StringVar(
		&opts.metricsAddr, "metrics-addr", "",
		"serve prometheus metrics on this address",
	)
	fs.DurationVar(
		&opts.callTimeout, "call-timeout",
		ktail.DefaultCallTimeout,
		"timeout of each list and probe call",
	)
	fs.BoolVar(&opts.verbose, "v", false, "log debug messages")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if fs.NArg() > 0 {
		return nil, fmt.Errorf(
			"%s: %w: unexpected arguments %v",
			errCtx, ktail.ErrInvalidConfig, fs.Args(),
		)
	}

	fl.Labels = labels
	fl.Names = names

	cfg := fl

	if opts.configFile != "" {
		var err error

		cfg, err = loadConfigFile(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		// Flags given explicitly win over the file.
		fs.Visit(func(f *flag.Flag) {
			applyFlag(&cfg, fl, f.Name)
		})
	}

	opts.cfg = cfg

	return opts, nil
}

func applyFlag(cfg *ktail.Config, fl ktail.Config, name string) {
	switch name {
	case "l", "label":
		cfg.Labels = fl.Labels
	case "n", "name":
		cfg.Names = fl.Names
	case "p", "max-pods":
		cfg.MaxPods = fl.MaxPods
	case "r", "tail":
		cfg.TailLines = fl.TailLines
	case "poll-interval-ms":
		cfg.PollIntervalMs = fl.PollIntervalMs
	case "since":
		cfg.Since = fl.Since
	case "since-time":
		cfg.SinceTime = fl.SinceTime
	case "namespace":
		cfg.Namespace = fl.Namespace
	}
}

func loadConfigFile(path string) (ktail.Config, error) {
	const errCtx = "reading config file"

	f, err := os.Open(path) //nolint:gosec // path from CLI flag
	if err != nil {
		return ktail.Config{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	defer f.Close() //nolint:errcheck // best-effort close

	cfg, err := ktail.LoadConfig(f, ktail.DefaultConfig())
	if err != nil {
		return ktail.Config{}, fmt.Errorf(
			"%s %s: %w", errCtx, path, err,
		)
	}

	return cfg, nil
}

// newBackend returns the lister and streamer selected by
// opts.backend.
func newBackend(
	opts *options,
) (ktail.PodLister, ktail.LogStreamer, error) {
	const errCtx = "creating backend"

	switch opts.backend {
	case backendKubectl:
		c := &kubectl.Client{
			Path:       opts.kubectlPath,
			Kubeconfig: opts.kubeconfig,
			Context:    opts.kubeContext,
			Namespace:  opts.cfg.Namespace,
			Container:  opts.container,
		}

		return c, c, nil
	case backendAPI:
		rules := clientcmd.NewDefaultClientConfigLoadingRules()
		rules.ExplicitPath = opts.kubeconfig

		overrides := &clientcmd.ConfigOverrides{
			CurrentContext: opts.kubeContext,
		}
		overrides.Context.Namespace = opts.cfg.Namespace

		cc := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			rules, overrides,
		)

		restConfig, err := cc.ClientConfig()
		if err != nil {
			return nil, nil, fmt.Errorf(
				"%s: building kubeconfig: %w", errCtx, err,
			)
		}

		namespace, _, err := cc.Namespace()
		if err != nil {
			return nil, nil, fmt.Errorf(
				"%s: resolving namespace: %w", errCtx, err,
			)
		}

		clientset, err := kubernetes.NewForConfig(restConfig)
		if err != nil {
			return nil, nil, fmt.Errorf(
				"%s: creating clientset: %w", errCtx, err,
			)
		}

		pods := clientset.CoreV1().Pods(namespace)

		return kube.NewLister(pods),
			kube.NewStreamer(pods, opts.container),
			nil
	default:
		return nil, nil, fmt.Errorf(
			"%s: %w: unknown backend %q",
			errCtx, ktail.ErrInvalidConfig, opts.backend,
		)
	}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(
		os.Stderr, &slog.HandlerOptions{Level: level},
	)))
}

func run(args []string, stdout io.Writer) error {
	const errCtx = "ktail"

	opts, err := parseOptions(args)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	setupLogging(opts.verbose)

	filter, err := opts.cfg.Filter()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	out, err := ktail.NewFormatter(stdout, opts.prefix)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	lister, streamer, err := newBackend(opts)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	rec := ktail.NewReconciler(
		filter, lister, streamer, out,
		ktail.WithCallTimeout(opts.callTimeout),
	)

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		return rec.Run(ctx)
	})

	if opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			slog.Info("serving metrics", "addr", opts.metricsAddr)

			if err := srv.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving metrics: %w", err)
			}

			return nil
		})

		g.Go(func() error {
			<-ctx.Done()

			//nolint:contextcheck // server outlives ctx
			return srv.Shutdown(context.Background())
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

func main() {
	// Interrupts end the process at once; open streams
	// are not drained.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		os.Exit(0)
	}()

	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}

		slog.Error(err.Error())
		os.Exit(1)
	}
}
