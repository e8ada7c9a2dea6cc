package walker

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// EntryType classifies a file system object seen during traversal
type EntryType int

const (
	TypeFile EntryType = iota
	TypeDir
	TypeOther // symlinks, devices, sockets, pipes
)

func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDir:
		return "dir"
	default:
		return "other"
	}
}

// Entry is one object produced by Walk. Path is the root text, verbatim,
// followed by the entry's path relative to it.
type Entry struct {
	Path string
	Type EntryType
}

// IsDir reports whether the entry is a directory
func (e Entry) IsDir() bool {
	return e.Type == TypeDir
}

// IsFile reports whether the entry is a regular file
func (e Entry) IsFile() bool {
	return e.Type == TypeFile
}

// IOError is returned when the traversal cannot read an entry
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Option configures a traversal
type Option func(*options)

type options struct {
	skipDir func(Entry) bool
}

// WithSkipDir prunes the subtree below every directory for which skip
// returns true. The directory entry itself is still yielded.
func WithSkipDir(skip func(Entry) bool) Option {
	return func(o *options) {
		o.skipDir = skip
	}
}

// errStop aborts the underlying walk when the consumer stops iterating
var errStop = errors.New("walk stopped")

// Walk returns a depth-first sequence of the entries under root, root
// included. Symbolic links below the root are reported but never followed.
// The first read failure is yielded as an *IOError and ends the sequence.
func Walk(fsys afero.Fs, root string, opts ...Option) iter.Seq2[Entry, error] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return func(yield func(Entry, error) bool) {
		failed := false
		start := followRoot(fsys, root)
		clean := filepath.Clean(start)

		err := afero.Walk(fsys, start, func(path string, info os.FileInfo, err error) error {
			path = displayPath(root, clean, path)
			if err != nil {
				failed = true
				yield(Entry{Path: path}, &IOError{Path: path, Op: opFor(info), Err: err})
				return errStop
			}

			entry := Entry{Path: path, Type: typeOf(info)}
			if !yield(entry, nil) {
				return errStop
			}

			if entry.IsDir() && o.skipDir != nil && o.skipDir(entry) {
				return filepath.SkipDir
			}
			return nil
		})

		// afero.Walk hands SkipDir back when it is returned for the root
		if err == nil || errors.Is(err, errStop) || errors.Is(err, filepath.SkipDir) || failed {
			return
		}
		yield(Entry{Path: root}, &IOError{Path: root, Op: "walk", Err: err})
	}
}

// followRoot makes a symlinked root resolve to its target directory. A
// trailing separator makes lstat follow the link, and afero's path joins
// clean it away again for every descendant.
func followRoot(fsys afero.Fs, root string) string {
	lstater, ok := fsys.(afero.Lstater)
	if !ok {
		return root
	}
	info, _, err := lstater.LstatIfPossible(root)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return root
	}
	if target, err := fsys.Stat(root); err != nil || !target.IsDir() {
		return root
	}
	return root + string(filepath.Separator)
}

// displayPath rebuilds a path afero produced below the cleaned start so that
// it begins with root exactly as given. filepath.Join would turn "./sub/a"
// into "sub/a", and literal patterns are matched against this text.
func displayPath(root, clean, path string) string {
	rel, err := filepath.Rel(clean, path)
	if err != nil || rel == "." {
		return root
	}
	if strings.HasSuffix(root, string(filepath.Separator)) {
		return root + rel
	}
	return root + string(filepath.Separator) + rel
}

func typeOf(info os.FileInfo) EntryType {
	mode := info.Mode()
	switch {
	case mode.IsRegular():
		return TypeFile
	case mode.IsDir():
		return TypeDir
	default:
		return TypeOther
	}
}

// opFor names the failing operation. afero passes a nil info when the
// lstat itself failed and the directory's info when listing it failed.
func opFor(info os.FileInfo) string {
	if info != nil && info.IsDir() {
		return "readdir"
	}
	return "lstat"
}
