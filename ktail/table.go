package ktail

import (
	"sort"
	"sync"
)

// State is the lifecycle state of a supervised pod.
type State int

const (
	// Starting means the stream is being opened or has
	// not delivered data yet.
	Starting State = iota
	// Active means the stream has delivered data.
	Active
	// Terminated means the stream ended cleanly and the
	// pod must not be followed again.
	Terminated
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// SupervisedPod is one entry of a Table.
type SupervisedPod struct {
	Pod    string
	Stream Stream
	State  State
}

// Table records the pods a Reconciler follows. It is
// written by the polling goroutine and by stream exit
// callbacks, so every method takes the lock.
type Table struct {
	mu   sync.Mutex
	pods map[string]*SupervisedPod
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{
		pods: make(map[string]*SupervisedPod),
	}
}

// Has reports whether pod has an entry, whatever its
// state.
func (t *Table) Has(pod string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.pods[pod]

	return ok
}

// Live returns the number of Starting or Active entries.
func (t *Table) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.live()
}

func (t *Table) live() int {
	n := 0

	for _, sp := range t.pods {
		if sp.State != Terminated {
			n++
		}
	}

	return n
}

// TryAdd inserts pod as Starting. It returns false when
// pod already has an entry, and a CapacityError when
// maxPods entries are already live.
func (t *Table) TryAdd(pod string, maxPods int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pods[pod]; ok {
		return false, nil
	}

	if t.live() >= maxPods {
		return false, &CapacityError{
			Pod:     pod,
			MaxPods: maxPods,
		}
	}

	t.pods[pod] = &SupervisedPod{Pod: pod, State: Starting}

	return true, nil
}

// Attach stores the stream handle of a Starting or
// Active entry. It does nothing if the entry is gone.
func (t *Table) Attach(pod string, s Stream) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sp, ok := t.pods[pod]; ok && sp.State != Terminated {
		sp.Stream = s
	}
}

// Release drops a Starting entry whose stream could not
// be opened.
func (t *Table) Release(pod string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sp, ok := t.pods[pod]; ok && sp.State == Starting {
		delete(t.pods, pod)
	}
}

// MarkActive moves a Starting entry to Active. It
// returns true only on that transition.
func (t *Table) MarkActive(pod string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	sp, ok := t.pods[pod]
	if !ok || sp.State != Starting {
		return false
	}

	sp.State = Active

	return true
}

// MarkExit records the end of the stream of pod. A zero
// code retains the entry as Terminated; any other code
// removes it so the pod can be followed again.
func (t *Table) MarkExit(pod string, code int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sp, ok := t.pods[pod]
	if !ok {
		return
	}

	if code != 0 {
		delete(t.pods, pod)

		return
	}

	sp.State = Terminated
	sp.Stream = nil
}

// Snapshot returns a copy of all entries sorted by pod.
func (t *Table) Snapshot() []SupervisedPod {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]SupervisedPod, 0, len(t.pods))
	for _, sp := range t.pods {
		out = append(out, *sp)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Pod < out[j].Pod
	})

	return out
}

// CloseAll closes every attached stream.
func (t *Table) CloseAll() {
	t.mu.Lock()

	streams := make([]Stream, 0, len(t.pods))
	for _, sp := range t.pods {
		if sp.Stream != nil {
			streams = append(streams, sp.Stream)
		}
	}

	t.mu.Unlock()

	for _, s := range streams {
		//nolint:errcheck,gosec // best-effort close
		s.Close()
	}
}
