package exclude

import "strings"

// ExcludesSubtree reports whether everything at or below path is excluded.
// Only literal patterns guarantee this, since every descendant path still
// contains the literal text. Extension patterns say nothing about a path
// whose type is unknown.
func (f Filter) ExcludesSubtree(path string) bool {
	for _, p := range f {
		if p.Kind == KindLiteral && strings.Contains(path, p.Value) {
			return true
		}
	}
	return false
}
