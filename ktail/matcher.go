package ktail

import "strings"

// Matches reports whether pod contains at least one of
// names. Every pod matches when names is empty.
func Matches(pod string, names []string) bool {
	if len(names) == 0 {
		return true
	}

	for _, name := range names {
		if strings.Contains(pod, name) {
			return true
		}
	}

	return false
}
