package e2e

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/abelbrown/mentions/internal/config"
)

const highExport = `{
	"Foo Serum": {
		"product_type": "serum",
		"posts": [{"post_id": "p1", "post_title": "Foo review", "post_selftext": "Cleared my skin", "author": "alice"}],
		"megathread_comments": [{"comment_id": "c1", "comment": "love it"}]
	}
}`

const highExportUpdated = `{
	"Foo Serum": {
		"product_type": "serum",
		"posts": [{"post_id": "p1", "post_title": "Foo review", "post_selftext": "Cleared my skin", "author": "alice"}],
		"megathread_comments": [{"comment_id": "c1", "comment": "love it"}]
	},
	"Qux Balm": {"posts": [], "megathread_comments": [{"comment_id": "c9", "comment": "saved my lips"}]}
}`

const lowExport = `{
	"Baz Toner": {"posts": [], "megathread_comments": [{"comment_id": "c3", "comment": "stings"}]}
}`

// fixture is a throwaway home: exports, config and state under one temp dir.
type fixture struct {
	home       string
	configPath string
	highPath   string
	cfg        *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	home := t.TempDir()
	scrapes := filepath.Join(home, "scrapes")
	if err := os.MkdirAll(scrapes, 0o755); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		home:       home,
		configPath: filepath.Join(home, ".mentions", "config.yaml"),
		highPath:   filepath.Join(scrapes, "combined_data_high_confidence.json"),
	}
	lowPath := filepath.Join(scrapes, "combined_data_low_confidence.json")
	f.writeHigh(t, highExport)
	if err := os.WriteFile(lowPath, []byte(lowExport), 0o644); err != nil {
		t.Fatal(err)
	}

	f.cfg = config.Default()
	f.cfg.Sources = []config.Source{
		{Name: "high", Location: f.highPath, Tier: "high"},
		{Name: "low", Location: lowPath, Tier: "low"},
	}
	f.cfg.Watch = true
	f.cfg.DBPath = filepath.Join(home, ".mentions", "mentions.db")
	f.cfg.EventLogPath = filepath.Join(home, ".mentions", "events.jsonl")
	f.cfg.LogDir = filepath.Join(home, ".mentions", "logs")
	f.cfg.LogLevel = "debug"
	if err := f.cfg.Save(f.configPath); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) writeHigh(t *testing.T, data string) {
	t.Helper()
	if err := os.WriteFile(f.highPath, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

// env isolates a child process from the real ~/.mentions.
func (f *fixture) env() []string {
	return append(os.Environ(),
		"HOME="+f.home,
		"MENTIONS_CONFIG="+f.configPath,
		"MENTIONS_STYLE=notty",
		"TERM=xterm-256color",
	)
}

// dumpLogs prints the run's log files to help diagnose a failure.
func (f *fixture) dumpLogs(t *testing.T) {
	t.Helper()
	matches, _ := filepath.Glob(filepath.Join(f.cfg.LogDir, "*.log"))
	for _, m := range matches {
		if logs, err := os.ReadFile(m); err == nil {
			t.Logf("%s:\n%s", filepath.Base(m), logs)
		}
	}
}

// build compiles ./cmd/<name> into a temp dir and returns the binary path.
func build(t *testing.T, name string) string {
	t.Helper()
	if testing.Short() {
		t.Skip("e2e: skipping binary build in -short mode")
	}
	binPath := filepath.Join(t.TempDir(), name)

	// Assume we are in test/e2e, go up 2 levels
	rootDir, err := filepath.Abs(filepath.Join("..", ".."))
	if err != nil {
		t.Fatal(err)
	}

	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/"+name)
	cmd.Dir = rootDir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build %s failed: %v\n%s", name, err, out)
	}
	return binPath
}
