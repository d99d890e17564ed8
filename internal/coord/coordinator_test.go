package coord

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/mentions/internal/ui"
)

// chanSender collects messages sent to the program.
type chanSender chan tea.Msg

func (c chanSender) Send(msg tea.Msg) { c <- msg }

func waitReload(t *testing.T, msgs chanSender, timeout time.Duration) ui.ReloadRequested {
	t.Helper()
	select {
	case msg := <-msgs:
		r, ok := msg.(ui.ReloadRequested)
		if !ok {
			t.Fatalf("unexpected message %T", msg)
		}
		return r
	case <-time.After(timeout):
		t.Fatal("no reload requested")
	}
	return ui.ReloadRequested{}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	if _, err := New(Options{Refresh: "every tuesday"}); err == nil {
		t.Error("expected error for invalid refresh spec")
	}
}

func TestNewGroupsDirectories(t *testing.T) {
	c, err := New(Options{Files: []string{"/a/high.json", "/a/low.json", "/b/x.json"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(c.dirs) != 2 {
		t.Errorf("dirs = %v, want 2 distinct directories", c.dirs)
	}
	if c.debounce != DefaultDebounce {
		t.Errorf("debounce = %v", c.debounce)
	}
}

func TestWatchTriggersReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "combined_data.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := New(Options{Files: []string{path}, Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.Wait()
	}()

	msgs := make(chanSender, 8)
	if err := c.Start(ctx, msgs); err != nil {
		t.Fatal(err)
	}

	// Several writes in a burst coalesce into one reload.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(`{"a": {"posts": []}}`), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	r := waitReload(t, msgs, 3*time.Second)
	if r.Reason != "watch" || filepath.Base(r.Path) != "combined_data.json" {
		t.Errorf("reload = %+v", r)
	}

	select {
	case msg := <-msgs:
		t.Errorf("burst produced a second message: %+v", msg)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "combined_data.json")

	c, err := New(Options{Files: []string{path}, Debounce: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.Wait()
	}()

	msgs := make(chanSender, 8)
	if err := c.Start(ctx, msgs); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-msgs:
		t.Errorf("unrelated file triggered %+v", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestStartMissingDirectory(t *testing.T) {
	c, err := New(Options{Files: []string{filepath.Join(t.TempDir(), "nope", "x.json")}})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx, make(chanSender, 1)); err != nil {
		t.Errorf("Start with missing dir: %v", err)
	}
	cancel()
	c.Wait()
}

func TestScheduleTriggersReload(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a schedule tick")
	}
	c, err := New(Options{Refresh: "@every 1s"})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.Wait()
	}()

	msgs := make(chanSender, 8)
	if err := c.Start(ctx, msgs); err != nil {
		t.Fatal(err)
	}
	if r := waitReload(t, msgs, 3*time.Second); r.Reason != "schedule" {
		t.Errorf("reload = %+v", r)
	}
}

func TestWaitReturnsAfterCancel(t *testing.T) {
	dir := t.TempDir()
	c, err := New(Options{Files: []string{filepath.Join(dir, "x.json")}, Refresh: "@hourly"})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx, make(chanSender, 1)); err != nil {
		t.Fatal(err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancel")
	}
}
