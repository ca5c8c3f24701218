// Copyright 2016 Wercker Holding BV
//
// Licensed under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in
// compliance with the License. You may obtain a copy of
// the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in
// writing, software distributed under the License is
// distributed on an "AS IS" BASIS, WITHOUT WARRANTIES
// OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing
// permissions and limitations under the License.

package kube

import (
	v1 "k8s.io/api/core/v1"
)

// ContainerState represents the state of a container.
type ContainerState string

const (
	// Running indicates a running container.
	Running ContainerState = "running"
	// Waiting indicates a waiting container.
	Waiting ContainerState = "waiting"
	// Terminated indicates a terminated container.
	Terminated ContainerState = "terminated"
)

// Match returns true if the ContainerState matches the
// given Kubernetes container state.
func (s ContainerState) Match(
	containerState v1.ContainerState,
) bool {
	return (s == Running &&
		containerState.Running != nil) ||
		(s == Waiting &&
			containerState.Waiting != nil) ||
		(s == Terminated &&
			containerState.Terminated != nil)
}

// HasLogs reports whether a container in this state can
// serve logs. Waiting containers have not started yet.
func (s ContainerState) HasLogs() bool {
	return s == Running || s == Terminated
}

// StateOf returns the state of the named container in
// pod, looking at init containers too. The second result
// is false when the container has no status yet.
func StateOf(
	pod *v1.Pod,
	container string,
) (ContainerState, bool) {
	status, ok := statusOf(pod, container)
	if !ok {
		return "", false
	}

	for _, s := range []ContainerState{
		Running, Terminated, Waiting,
	} {
		if s.Match(status.State) {
			return s, true
		}
	}

	return "", false
}

func statusOf(
	pod *v1.Pod,
	container string,
) (v1.ContainerStatus, bool) {
	for _, statuses := range [][]v1.ContainerStatus{
		pod.Status.InitContainerStatuses,
		pod.Status.ContainerStatuses,
	} {
		for _, status := range statuses {
			if status.Name == container {
				return status, true
			}
		}
	}

	return v1.ContainerStatus{}, false
}
