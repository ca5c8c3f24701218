package ktail

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultCallTimeout bounds each list and probe call.
const DefaultCallTimeout = 10 * time.Second

// PodLister lists the names of the pods matching all of
// the given label selectors.
type PodLister interface {
	ListPods(ctx context.Context, labels []string) ([]string, error)
}

// StreamOptions control how a log stream is opened.
type StreamOptions struct {
	// TailLines is the number of existing lines to read
	// back before following.
	TailLines int64
	Follow    bool
	Since     Since
}

// Sink receives the output and the end of one stream.
// Write is called with Stdout or Stderr, possibly from
// one goroutine per stream name. Exit is called exactly
// once, after the last Write.
type Sink interface {
	Write(stream string, chunk []byte)
	Exit(code int)
}

// Stream is a handle on an open log stream.
type Stream interface {
	Close() error
}

// LogStreamer opens log streams. ProbeReady returns an
// error wrapping ErrNotReady when the pod cannot serve
// logs.
type LogStreamer interface {
	ProbeReady(ctx context.Context, pod string) error
	Open(
		ctx context.Context,
		pod string,
		opts StreamOptions,
		sink Sink,
	) (Stream, error)
}

// Reconciler polls for matching pods and follows their
// logs. Only one goroutine may call Run or Tick.
type Reconciler struct {
	filter      Filter
	lister      PodLister
	streamer    LogStreamer
	out         *Formatter
	table       *Table
	callTimeout time.Duration
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithCallTimeout bounds list and probe calls. A zero
// or negative value disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		r.callTimeout = d
	}
}

// WithTable makes the Reconciler record its pods in t.
func WithTable(t *Table) Option {
	return func(r *Reconciler) {
		r.table = t
	}
}

// NewReconciler returns a Reconciler following the pods
// selected by filter.
func NewReconciler(
	filter Filter,
	lister PodLister,
	streamer LogStreamer,
	out *Formatter,
	opts ...Option,
) *Reconciler {
	r := &Reconciler{
		filter:      filter,
		lister:      lister,
		streamer:    streamer,
		out:         out,
		table:       NewTable(),
		callTimeout: DefaultCallTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Table returns the supervision table.
func (r *Reconciler) Table() *Table {
	return r.table
}

// Run polls until ctx is done or too many pods match.
// It returns ctx.Err() on cancellation and a
// *CapacityError on overflow. Streams still open when Run
// returns are closed.
func (r *Reconciler) Run(ctx context.Context) error {
	const errCtx = "running reconciler"

	defer r.table.CloseAll()

	slog.Info(
		"following pods",
		"labels", r.filter.Labels,
		"names", r.filter.Names,
		"maxPods", r.filter.MaxPods,
		"tailLines", r.filter.TailLines,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if err := r.Tick(ctx); err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		timer.Reset(r.filter.PollInterval)
	}
}

// Tick runs one poll: list, filter, check capacity,
// probe and open streams for new pods. Listing and probe
// failures are logged and recovered; only a capacity
// overflow is returned.
func (r *Reconciler) Tick(ctx context.Context) error {
	ticksTotal.Inc()

	pods, err := r.list(ctx)
	if err != nil {
		listErrors.Inc()
		slog.Warn(
			"listing pods failed, skipping poll",
			"labels", r.filter.Labels,
			"error", err,
		)

		return nil
	}

	for _, pod := range pods {
		if ctx.Err() != nil {
			return nil
		}

		if r.table.Has(pod) || !Matches(pod, r.filter.Names) {
			continue
		}

		if r.table.Live() >= r.filter.MaxPods {
			return &CapacityError{
				Pod:     pod,
				MaxPods: r.filter.MaxPods,
			}
		}

		if err := r.probe(ctx, pod); err != nil {
			probeFailures.Inc()
			slog.Debug(
				"unable to tail logs, pod may have just"+
					" been shut down or is not yet ready",
				"pod", pod,
				"error", err,
			)

			continue
		}

		if err := r.spawn(ctx, pod); err != nil {
			return err
		}
	}

	return nil
}

func (r *Reconciler) list(ctx context.Context) ([]string, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	return r.lister.ListPods(ctx, r.filter.Labels)
}

func (r *Reconciler) probe(ctx context.Context, pod string) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	return r.streamer.ProbeReady(ctx, pod)
}

func (r *Reconciler) bound(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	if r.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, r.callTimeout)
}

// spawn reserves pod in the table and opens its stream.
// The reservation comes first so an immediate exit
// callback always finds the entry.
func (r *Reconciler) spawn(ctx context.Context, pod string) error {
	added, err := r.table.TryAdd(pod, r.filter.MaxPods)
	if err != nil {
		return err
	}

	if !added {
		return nil
	}

	streamsLive.Inc()

	stream, err := r.streamer.Open(
		ctx,
		pod,
		StreamOptions{
			TailLines: r.filter.TailLines,
			Follow:    true,
			Since:     r.filter.Since,
		},
		&podSink{r: r, pod: pod},
	)
	if err != nil {
		r.table.Release(pod)
		streamsLive.Dec()
		slog.Warn(
			"unable to open log stream",
			"pod", pod,
			"error", err,
		)

		return nil
	}

	r.table.Attach(pod, stream)
	streamsStarted.Inc()

	slog.Info("tailing logs", "pod", pod)

	return nil
}

// podSink feeds one pod's stream into the Formatter and
// the table.
type podSink struct {
	r   *Reconciler
	pod string
}

func (s *podSink) Write(stream string, chunk []byte) {
	chunksReceived.WithLabelValues(stream).Inc()

	s.r.table.MarkActive(s.pod)

	if err := s.r.out.Emit(s.pod, stream, chunk); err != nil {
		slog.Error(
			"writing log output",
			"pod", s.pod,
			"stream", stream,
			"error", err,
		)
	}
}

func (s *podSink) Exit(code int) {
	slog.Info(
		"stopped listening",
		"pod", s.pod,
		"code", code,
	)

	outcome := "completed"
	if code != 0 {
		outcome = "failed"
	}

	streamsEnded.WithLabelValues(outcome).Inc()
	streamsLive.Dec()

	s.r.table.MarkExit(s.pod, code)
}
