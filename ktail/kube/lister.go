package kube

import (
	"context"
	"fmt"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	v1 "k8s.io/client-go/kubernetes/typed/core/v1"
)

// Lister lists pod names through a PodInterface.
type Lister struct {
	pods v1.PodInterface
}

// NewLister returns a Lister over pods, usually
// clientset.CoreV1().Pods(namespace).
func NewLister(pods v1.PodInterface) *Lister {
	return &Lister{pods: pods}
}

// Selector joins label selectors into one selector that
// requires all of them.
func Selector(selectors []string) (labels.Selector, error) {
	const errCtx = "parsing label selector"

	sel, err := labels.Parse(strings.Join(selectors, ","))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return sel, nil
}

// ListPods returns the names of the pods matching all
// selectors, in the order the API server returns them.
func (l *Lister) ListPods(
	ctx context.Context,
	selectors []string,
) ([]string, error) {
	const errCtx = "listing pods"

	sel, err := Selector(selectors)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	list, err := l.pods.List(
		ctx,
		metav1.ListOptions{LabelSelector: sel.String()},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	names := make([]string, 0, len(list.Items))
	for _, pod := range list.Items {
		names = append(names, pod.Name)
	}

	return names, nil
}
