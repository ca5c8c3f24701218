// Package kube follows pod logs through the Kubernetes API. Lister lists
// pods by label selector and Streamer probes and opens log streams with
// client-go, one Tail per pod. Originally ported from the stern project.
package kube
