package coord

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/abelbrown/mentions/internal/logging"
	"github.com/abelbrown/mentions/internal/otel"
	"github.com/abelbrown/mentions/internal/ui"
)

// relevant reports whether a watcher event should trigger a reload.
func (c *Coordinator) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	return c.files[abs]
}

func (c *Coordinator) watch(ctx context.Context, w *fsnotify.Watcher, program sender) {
	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !c.relevant(ev) {
				continue
			}
			pending = ev.Name
			if timer == nil {
				timer = time.NewTimer(c.debounce)
			} else {
				timer.Reset(c.debounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logging.Warn("watcher error", "err", err)

		case <-fire:
			fire = nil
			logging.Info("export changed", "path", pending)
			c.emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindWatchChange, Source: filepath.Base(pending)})
			c.send(ctx, program, ui.ReloadRequested{Reason: "watch", Path: pending})
		}
	}
}
