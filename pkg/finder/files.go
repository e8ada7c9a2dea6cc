package finder

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/ritzau/dirscan/pkg/exclude"
	"github.com/ritzau/dirscan/pkg/logging"
	"github.com/ritzau/dirscan/pkg/walker"
)

// Options describes a single scan
type Options struct {
	Root    string
	Exclude []string
	// Prune skips the subtree below an excluded directory instead of
	// testing each descendant on its own
	Prune bool
}

// Result holds the files that survived exclusion, in traversal order
type Result struct {
	Root          string   `json:"root"`
	Patterns      []string `json:"exclude"`
	Files         []string `json:"files"`
	Visited       int      `json:"visited"`
	ExcludedFiles int      `json:"excludedFiles"`
	ExcludedDirs  int      `json:"excludedDirs"`
}

// FindFiles walks opts.Root and returns every file not excluded by
// opts.Exclude. The first read error aborts the scan and no partial result
// is returned.
func FindFiles(fsys afero.Fs, opts Options) (*Result, error) {
	filter := exclude.ParseAll(opts.Exclude)
	for _, p := range filter.Ignored() {
		if p.Raw != "" {
			logging.Warn("ignoring unsupported pattern", "pattern", p.Raw)
		}
	}

	var walkOpts []walker.Option
	if opts.Prune {
		walkOpts = append(walkOpts, walker.WithSkipDir(filter.Excludes))
	}

	result := &Result{
		Root:     opts.Root,
		Patterns: append([]string{}, opts.Exclude...),
		Files:    []string{},
	}

	for entry, err := range walker.Walk(fsys, opts.Root, walkOpts...) {
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", opts.Root, err)
		}
		result.Visited++

		if p, excluded := filter.Match(entry); excluded {
			logging.Trace("excluded", "path", entry.Path, "type", entry.Type.String(), "pattern", p.Raw)
			if entry.IsDir() {
				result.ExcludedDirs++
			} else {
				result.ExcludedFiles++
			}
			continue
		}

		if entry.IsFile() {
			result.Files = append(result.Files, entry.Path)
		}
	}

	logging.Debug("scan complete",
		"root", opts.Root,
		"visited", result.Visited,
		"files", len(result.Files),
		"excludedFiles", result.ExcludedFiles,
		"excludedDirs", result.ExcludedDirs,
	)

	return result, nil
}

// FindFilesOS scans the host file system
func FindFilesOS(opts Options) (*Result, error) {
	return FindFiles(afero.NewOsFs(), opts)
}
