// Package stacktrace trims goroutine dumps down to this module's frames.
package stacktrace

import "strings"

// InternalPaths returns the "internal/...go:line" locations found in a stack
// as produced by runtime/debug.Stack, innermost first.
func InternalPaths(stack []byte) []string {
	var paths []string
	for line := range strings.Lines(string(stack)) {
		line = strings.TrimSpace(line)
		file, _, ok := strings.Cut(line, " ")
		if !ok {
			file = line
		}
		if !strings.Contains(file, ".go:") {
			continue
		}
		if _, rel, found := strings.Cut(file, "/internal/"); found {
			paths = append(paths, "internal/"+rel)
		}
	}
	return paths
}
