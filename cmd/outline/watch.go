package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/gooutline"
)

// minWatchTick bounds how often pending files are polled.
const minWatchTick = 10 * time.Millisecond

var (
	watchInput  string
	watchOutput string
	watchSettle time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Extract documents as they appear in a directory",
	Long: `Watch processes the documents already in --input, then keeps running and
extracts every supported file that is created or modified there. A file is
processed once it has been quiet for --settle.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchSettle <= 0 {
			return fmt.Errorf("--settle must be positive, got %s", watchSettle)
		}
		engine, err := openEngine(func(c *gooutline.Config) { c.OutputDir = watchOutput })
		if err != nil {
			return err
		}
		defer engine.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		formats := engine.Formats()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		defer watcher.Close()
		if err := watcher.Add(watchInput); err != nil {
			return fmt.Errorf("watching %s: %w", watchInput, err)
		}

		paths, err := gooutline.FindDocuments(watchInput, formats)
		if err != nil {
			return err
		}
		if len(paths) > 0 {
			printBatch(out, engine.ExtractAll(ctx, paths))
		}
		slog.Info("watch: waiting for documents", "dir", watchInput, "output", watchOutput)

		pending := newDebouncer(watchSettle)
		tick := time.NewTicker(max(watchSettle/2, minWatchTick))
		defer tick.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
					if isCandidate(ev.Name, formats) {
						pending.touch(ev.Name, time.Now())
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				slog.Warn("watch: watcher error", "error", err)
			case now := <-tick.C:
				ready := pending.ready(now)
				if len(ready) > 0 {
					printBatch(out, engine.ExtractAll(ctx, ready))
				}
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchInput, "input", "input", "directory to watch")
	watchCmd.Flags().StringVar(&watchOutput, "output", "output", "directory for outline files")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", time.Second, "quiet period before a changed file is processed")
}

// isCandidate reports whether path is a visible file of a supported format.
func isCandidate(path string, formats []string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, f := range formats {
		if ext == f {
			return true
		}
	}
	return false
}

// debouncer collects changed paths until they have been quiet for settle.
type debouncer struct {
	settle time.Duration
	seen   map[string]time.Time
}

func newDebouncer(settle time.Duration) *debouncer {
	return &debouncer{settle: settle, seen: make(map[string]time.Time)}
}

func (d *debouncer) touch(path string, at time.Time) {
	d.seen[path] = at
}

// ready removes and returns the settled paths in sorted order.
func (d *debouncer) ready(now time.Time) []string {
	var out []string
	for path, at := range d.seen {
		if now.Sub(at) >= d.settle {
			out = append(out, path)
			delete(d.seen, path)
		}
	}
	sort.Strings(out)
	return out
}
