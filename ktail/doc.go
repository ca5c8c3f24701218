// Package ktail follows the logs of every pod matching a set of label
// and name filters. A Reconciler polls a PodLister on a fixed interval,
// starts a log stream for each newly matching pod through a LogStreamer,
// and writes every received line, prefixed with its pod and stream name,
// to one combined output through a Formatter.
//
// Streams ending with a non-zero code make their pod eligible again on
// the next poll; streams ending cleanly are never re-attached. Matching
// more pods than the configured limit stops the Reconciler with a
// CapacityError.
package ktail
