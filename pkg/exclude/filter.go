package exclude

import (
	"github.com/ritzau/dirscan/pkg/walker"
)

// Filter is an ordered list of exclusion patterns. The zero value excludes
// nothing.
type Filter []Pattern

// ParseAll parses raw patterns, keeping their order
func ParseAll(raw []string) Filter {
	filter := make(Filter, 0, len(raw))
	for _, r := range raw {
		filter = append(filter, Parse(r))
	}
	return filter
}

// Match returns the first pattern that excludes the entry
func (f Filter) Match(entry walker.Entry) (Pattern, bool) {
	for _, p := range f {
		if p.Matches(entry) {
			return p, true
		}
	}
	return Pattern{}, false
}

// Excludes reports whether any pattern excludes the entry
func (f Filter) Excludes(entry walker.Entry) bool {
	_, ok := f.Match(entry)
	return ok
}

// Ignored returns the patterns that can never match
func (f Filter) Ignored() []Pattern {
	var ignored []Pattern
	for _, p := range f {
		if p.Kind == KindIgnored {
			ignored = append(ignored, p)
		}
	}
	return ignored
}
