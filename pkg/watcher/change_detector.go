package watcher

import "fmt"

// ChangeAnalysis describes whether a batch of changes can alter the scan result
type ChangeAnalysis struct {
	NeedRescan   bool
	Reason       string
	ChangedFiles []string
}

// AnalyzeChanges decides whether a debounced event requires a rescan. Only
// entries appearing or disappearing change the file list; writes to
// existing files do not.
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{
		ChangedFiles: event.Paths,
	}

	switch event.Type {
	case ChangeTypeCreate, ChangeTypeRemove, ChangeTypeRename:
		analysis.NeedRescan = true
		analysis.Reason = fmt.Sprintf("%d path(s) %s", len(event.Paths), pastTense(event.Type))
	case ChangeTypeWrite:
		analysis.Reason = fmt.Sprintf("%d file(s) modified", len(event.Paths))
	}

	return analysis
}

func pastTense(t ChangeType) string {
	switch t {
	case ChangeTypeCreate:
		return "created"
	case ChangeTypeRemove:
		return "removed"
	default:
		return "renamed"
	}
}
