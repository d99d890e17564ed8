// Package coord triggers reloads in the background: when a local export
// changes on disk and on the configured refresh schedule.
package coord

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/abelbrown/mentions/internal/logging"
	"github.com/abelbrown/mentions/internal/otel"
)

// DefaultDebounce coalesces the burst of events an export rewrite produces.
const DefaultDebounce = 300 * time.Millisecond

const comp = "coord"

// sender is the part of *tea.Program the coordinator needs.
type sender interface {
	Send(msg tea.Msg)
}

// Options configures a Coordinator.
type Options struct {
	Files    []string      // local export files to watch; their directories are watched
	Refresh  string        // cron spec, empty disables
	Debounce time.Duration // 0 means DefaultDebounce
	Events   *otel.Logger
}

// Coordinator watches local exports and runs the refresh schedule.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	files    map[string]bool // absolute paths, IMMUTABLE after New
	dirs     []string
	schedule cron.Schedule // nil when no refresh is configured
	debounce time.Duration
	events   *otel.Logger
	wg       sync.WaitGroup
}

// New validates opts and returns a Coordinator. Nothing runs until Start.
func New(opts Options) (*Coordinator, error) {
	c := &Coordinator{
		files:    make(map[string]bool, len(opts.Files)),
		debounce: opts.Debounce,
		events:   opts.Events,
	}
	if c.debounce <= 0 {
		c.debounce = DefaultDebounce
	}

	seen := make(map[string]bool)
	for _, f := range opts.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("coord: resolve %q: %w", f, err)
		}
		c.files[abs] = true
		dir := filepath.Dir(abs)
		if !seen[dir] {
			seen[dir] = true
			c.dirs = append(c.dirs, dir)
		}
	}

	if opts.Refresh != "" {
		s, err := cron.ParseStandard(opts.Refresh)
		if err != nil {
			return nil, fmt.Errorf("coord: refresh schedule %q: %w", opts.Refresh, err)
		}
		c.schedule = s
	}
	return c, nil
}

// Start launches the watcher and the scheduler. A directory that does not
// exist yet is skipped with a warning rather than failing startup.
func (c *Coordinator) Start(ctx context.Context, program sender) error {
	if len(c.dirs) > 0 {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("coord: create watcher: %w", err)
		}
		watched := 0
		for _, dir := range c.dirs {
			if _, err := os.Stat(dir); err != nil {
				logging.Warn("not watching missing directory", "dir", dir)
				continue
			}
			if err := w.Add(dir); err != nil {
				logging.Warn("watch directory", "dir", dir, "err", err)
				continue
			}
			watched++
		}
		if watched == 0 {
			_ = w.Close()
		} else {
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				defer w.Close()
				c.watch(ctx, w, program)
			}()
		}
	}

	if c.schedule != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.tick(ctx, program)
		}()
	}
	return nil
}

// Wait blocks until the background goroutines exit.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) send(ctx context.Context, program sender, msg tea.Msg) {
	if program == nil || ctx.Err() != nil {
		return
	}
	program.Send(msg)
}

func (c *Coordinator) emit(e otel.Event) {
	if c.events == nil {
		return
	}
	e.Comp = comp
	c.events.Emit(e)
}
