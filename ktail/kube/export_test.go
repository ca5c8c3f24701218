package kube

// LogOptionsForTest exposes logOptions.
var LogOptionsForTest = logOptions

// DefaultContainerForTest exposes defaultContainer.
var DefaultContainerForTest = defaultContainer
