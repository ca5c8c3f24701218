package kube

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	v1 "k8s.io/client-go/kubernetes/typed/core/v1"

	"github.com/byte4ever/ktail/ktail"
)

// DefaultContainerAnnotation names the container kubectl
// picks when a pod has several.
const DefaultContainerAnnotation = "kubectl.kubernetes.io/default-container"

// Streamer opens pod log streams through a PodInterface.
type Streamer struct {
	pods      v1.PodInterface
	container string
}

// NewStreamer returns a Streamer over pods. When
// container is empty each pod's default container is
// followed.
func NewStreamer(
	pods v1.PodInterface,
	container string,
) *Streamer {
	return &Streamer{pods: pods, container: container}
}

// ProbeReady checks that the pod exists, that its
// container has started, and that one line of logs can be
// fetched. Failures wrap ktail.ErrNotReady.
func (s *Streamer) ProbeReady(
	ctx context.Context,
	name string,
) error {
	const errCtx = "probing pod"

	pod, err := s.pods.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf(
			"%s %s: %w: %w",
			errCtx, name, ktail.ErrNotReady, err,
		)
	}

	container := s.containerFor(pod)

	if state, ok := StateOf(pod, container); ok && !state.HasLogs() {
		return fmt.Errorf(
			"%s %s: %w: container %s is %s",
			errCtx, name, ktail.ErrNotReady, container, state,
		)
	}

	one := int64(1)

	if _, err := s.pods.GetLogs(
		name,
		&corev1.PodLogOptions{
			Container: container,
			TailLines: &one,
		},
	).DoRaw(ctx); err != nil {
		return fmt.Errorf(
			"%s %s: %w: %w",
			errCtx, name, ktail.ErrNotReady, err,
		)
	}

	return nil
}

// Open starts following the logs of the named pod. The
// stream ends when ctx is done, the server closes it, or
// the returned Tail is closed.
func (s *Streamer) Open(
	ctx context.Context,
	name string,
	opts ktail.StreamOptions,
	sink ktail.Sink,
) (ktail.Stream, error) {
	const errCtx = "opening log stream"

	pod, err := s.pods.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf(
			"%s %s: %w", errCtx, name, err,
		)
	}

	container := s.containerFor(pod)

	stream, err := s.pods.GetLogs(
		name, logOptions(container, opts),
	).Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf(
			"%s %s: %w", errCtx, name, err,
		)
	}

	t := NewTail(pod.Namespace, name, container, stream)
	t.ended = func() int {
		return s.exitCode(ctx, name, container)
	}
	t.Start(sink)

	return t, nil
}

// exitCode reads the pod again after its log stream ended.
// A container that terminated with a nonzero code or is
// waiting to restart reports 1. Anything else, including
// a pod that is gone, reports 0.
func (s *Streamer) exitCode(
	ctx context.Context,
	name, container string,
) int {
	ctx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx), ktail.DefaultCallTimeout,
	)
	defer cancel()

	pod, err := s.pods.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		slog.Debug(
			"unable to read pod after log stream ended",
			"pod", name,
			"error", err,
		)

		return 0
	}

	return containerExitCode(pod, container)
}

func containerExitCode(pod *corev1.Pod, container string) int {
	status, ok := statusOf(pod, container)
	if !ok {
		return 0
	}

	switch {
	case status.State.Waiting != nil:
		return 1
	case status.State.Terminated != nil &&
		status.State.Terminated.ExitCode != 0:
		return 1
	default:
		return 0
	}
}

func (s *Streamer) containerFor(pod *corev1.Pod) string {
	if s.container != "" {
		return s.container
	}

	return defaultContainer(pod)
}

// defaultContainer mirrors kubectl: the annotated default
// container, else the first one.
func defaultContainer(pod *corev1.Pod) string {
	if name := pod.Annotations[DefaultContainerAnnotation]; name != "" {
		return name
	}

	if len(pod.Spec.Containers) > 0 {
		return pod.Spec.Containers[0].Name
	}

	return ""
}

func logOptions(
	container string,
	opts ktail.StreamOptions,
) *corev1.PodLogOptions {
	tail := opts.TailLines

	out := &corev1.PodLogOptions{
		Container: container,
		Follow:    opts.Follow,
		TailLines: &tail,
	}

	if d := opts.Since.Duration; d > 0 {
		secs := int64(math.Ceil(d.Seconds()))
		out.SinceSeconds = &secs
	}

	if t := opts.Since.Time; !t.IsZero() {
		mt := metav1.NewTime(t)
		out.SinceTime = &mt
	}

	return out
}
