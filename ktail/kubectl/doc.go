// Package kubectl follows pod logs by running the kubectl binary: pods are
// listed with "kubectl get pods -o json", readiness is probed with
// "kubectl logs --tail=1", and each followed pod gets its own
// "kubectl logs -f" process whose stdout and stderr are forwarded
// separately and whose exit status ends the stream.
package kubectl
