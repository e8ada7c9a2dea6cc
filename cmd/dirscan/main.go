package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/ritzau/dirscan/pkg/config"
	"github.com/ritzau/dirscan/pkg/exclude"
	"github.com/ritzau/dirscan/pkg/finder"
	"github.com/ritzau/dirscan/pkg/logging"
	"github.com/ritzau/dirscan/pkg/output"
	"github.com/ritzau/dirscan/pkg/pubsub"
	"github.com/ritzau/dirscan/pkg/runner"
	"github.com/ritzau/dirscan/pkg/watcher"
	"github.com/ritzau/dirscan/pkg/web"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := config.NewFlagSet("dirscan")
	flags.SetOutput(stderr)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	level, err := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	logging.SetLevel(level)
	if cfg.LogJSON {
		logging.SetOutput(stderr, true)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\nUsage of dirscan:\n", err)
		flags.PrintDefaults()
		return exitUsage
	}

	printer, err := output.NewPrinter(cfg.Format)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	opts := finder.Options{
		Root:    cfg.Directory,
		Exclude: cfg.Exclude,
		Prune:   cfg.Prune,
	}

	if !cfg.Watch && !cfg.Serve {
		// One-shot scan: any traversal error is fatal and nothing is printed
		result, err := finder.FindFilesOS(opts)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailed
		}
		if err := printer.Print(stdout, result); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailed
		}
		return exitOK
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runContinuous(ctx, cfg, opts, printer, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
	return exitOK
}

// runContinuous keeps rescanning in watch and/or serve mode until ctx is done
func runContinuous(ctx context.Context, cfg *config.Config, opts finder.Options, printer output.Printer, stdout, stderr io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	publisher := pubsub.NewSSEPublisher()
	defer publisher.Close()

	scanRunner := runner.NewScanRunner(afero.NewOsFs(), opts, publisher)
	if cfg.Watch {
		scanRunner.OnResult(func(result *finder.Result, err error) {
			if err != nil {
				output.PrintError(stderr, err)
				return
			}
			if err := printer.Print(stdout, result); err != nil {
				logging.Warn("failed to print result", "error", err)
			}
			output.PrintSummary(stderr, result)
		})
	}

	serverErr := make(chan error, 1)
	if cfg.Serve {
		server := web.NewServer(scanRunner, publisher)
		go func() {
			serverErr <- server.Start(ctx, cfg.Port)
		}()
	}

	// Failures are reported through logs, the callback and the status topic
	scanRunner.Run(ctx, "initial scan")

	if cfg.Watch {
		if err := watchAndRescan(ctx, opts, scanRunner); err != nil {
			return err
		}
	}

	if cfg.Serve {
		select {
		case err := <-serverErr:
			return err
		case <-ctx.Done():
			return <-serverErr
		}
	}
	return nil
}

// watchAndRescan blocks until ctx is done, rescanning after every debounced
// batch of changes that can affect the file list
func watchAndRescan(ctx context.Context, opts finder.Options, scanRunner *runner.ScanRunner) error {
	filter := exclude.ParseAll(opts.Exclude)

	fw, err := watcher.NewFileWatcher(opts.Root, filter.ExcludesSubtree)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		fw.Stop()
		return err
	}
	defer fw.Stop()

	debouncer := watcher.NewDebouncer(fw.Events(), 300*time.Millisecond, 2*time.Second)
	debouncer.Start(ctx)

	for event := range debouncer.Output() {
		analysis := watcher.AnalyzeChanges(event)
		if !analysis.NeedRescan {
			logging.Debug("ignoring change", "reason", analysis.Reason)
			continue
		}
		scanRunner.Run(ctx, analysis.Reason)
	}
	return nil
}
