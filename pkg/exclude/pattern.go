package exclude

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ritzau/dirscan/pkg/walker"
)

// Kind identifies how a pattern is matched
type Kind int

const (
	// KindIgnored patterns never match anything
	KindIgnored Kind = iota
	// KindLiteral patterns match any path containing their text
	KindLiteral
	// KindExtension patterns ("*.ext") match files with exactly that extension
	KindExtension
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindExtension:
		return "extension"
	default:
		return "ignored"
	}
}

const (
	wildcard        = "*"
	extensionPrefix = "*."
)

// Pattern is a parsed exclusion pattern
type Pattern struct {
	Raw   string
	Kind  Kind
	Value string // substring for literals, extension without the dot for extension patterns
}

// Parse classifies a raw pattern string
func Parse(raw string) Pattern {
	switch {
	case raw == "":
		// An empty literal would be a substring of every path
		return Pattern{Raw: raw, Kind: KindIgnored}
	case !strings.Contains(raw, wildcard):
		return Pattern{Raw: raw, Kind: KindLiteral, Value: raw}
	case strings.HasPrefix(raw, extensionPrefix):
		return Pattern{Raw: raw, Kind: KindExtension, Value: strings.TrimPrefix(raw, extensionPrefix)}
	default:
		return Pattern{Raw: raw, Kind: KindIgnored}
	}
}

// Matches reports whether the pattern excludes the entry
func (p Pattern) Matches(entry walker.Entry) bool {
	switch p.Kind {
	case KindLiteral:
		return strings.Contains(entry.Path, p.Value)
	case KindExtension:
		ext, ok := Extension(entry.Path)
		return entry.IsFile() && ok && ext == p.Value
	default:
		return false
	}
}

func (p Pattern) String() string {
	return fmt.Sprintf("%s(%q)", p.Kind, p.Raw)
}

// Extension returns the text after the final dot of the base name. Names
// without a dot, or whose only dot is the leading one (".bashrc"), have no
// extension. "archive." has the empty extension.
func Extension(path string) (string, bool) {
	name := filepath.Base(path)
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return "", false
	}
	return name[i+1:], true
}
