package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"github.com/ritzau/dirscan/pkg/finder"
	"github.com/ritzau/dirscan/pkg/logging"
	"github.com/ritzau/dirscan/pkg/pubsub"
)

// ScanRunner re-runs scans on demand and keeps the latest outcome. Scans
// never overlap; a scan itself is not interruptible.
type ScanRunner struct {
	fsys      afero.Fs
	opts      finder.Options
	publisher pubsub.Publisher // optional
	onResult  func(*finder.Result, error)

	runMu sync.Mutex // Prevent concurrent scans

	mu         sync.RWMutex
	latest     *finder.Result
	lastErr    error
	generation int
}

// NewScanRunner creates a runner. publisher may be nil.
func NewScanRunner(fsys afero.Fs, opts finder.Options, publisher pubsub.Publisher) *ScanRunner {
	return &ScanRunner{
		fsys:      fsys,
		opts:      opts,
		publisher: publisher,
	}
}

// OnResult registers a callback invoked after every scan, successful or not
func (r *ScanRunner) OnResult(fn func(*finder.Result, error)) {
	r.onResult = fn
}

// Run performs one scan. reason describes the trigger, e.g. "initial scan".
func (r *ScanRunner) Run(ctx context.Context, reason string) (*finder.Result, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logging.InfoContext(ctx, "starting scan", "root", r.opts.Root, "reason", reason)
	r.publishStatus(pubsub.StateScanning, "Scanning...", reason)

	result, err := finder.FindFiles(r.fsys, r.opts)

	r.mu.Lock()
	if err != nil {
		r.lastErr = err
	} else {
		r.latest = result
		r.lastErr = nil
		r.generation++
	}
	generation := r.generation
	r.mu.Unlock()

	if err != nil {
		logging.ErrorContext(ctx, "scan failed", "root", r.opts.Root, "error", err)
		r.publishStatus(pubsub.StateError, err.Error(), reason)
	} else {
		logging.InfoContext(ctx, "scan complete", "root", r.opts.Root, "files", len(result.Files), "generation", generation)
		r.publishStatus(pubsub.StateReady, fmt.Sprintf("Found %d file(s)", len(result.Files)), reason)
		r.publish(pubsub.TopicScanResult, pubsub.StateReady, pubsub.ScanSummary{
			Root:          result.Root,
			Files:         len(result.Files),
			Visited:       result.Visited,
			ExcludedFiles: result.ExcludedFiles,
			ExcludedDirs:  result.ExcludedDirs,
			Generation:    generation,
		})
	}

	if r.onResult != nil {
		r.onResult(result, err)
	}

	return result, err
}

// Latest returns the most recent successful result, how many scans have
// succeeded, and the error of the last scan if it failed
func (r *ScanRunner) Latest() (*finder.Result, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest, r.generation, r.lastErr
}

func (r *ScanRunner) publishStatus(state, message, reason string) {
	r.publish(pubsub.TopicScanStatus, state, pubsub.ScanStatus{
		State:   state,
		Message: message,
		Root:    r.opts.Root,
		Reason:  reason,
	})
}

func (r *ScanRunner) publish(topic, eventType string, data interface{}) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(topic, eventType, data); err != nil {
		logging.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
