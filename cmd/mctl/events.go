package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/mentions/internal/otel"
)

// pollInterval is how often follow mode checks the log for new lines.
const pollInterval = 100 * time.Millisecond

// eventFilter selects events for display. Zero values match everything.
type eventFilter struct {
	kind     string // kind prefix, e.g. "fetch" or "schema.detect"
	minLevel string
	comp     string
	loadID   uint64
	session  string
}

func (f eventFilter) match(ev otel.Event) bool {
	if f.kind != "" && !strings.HasPrefix(string(ev.Kind), f.kind) {
		return false
	}
	if f.minLevel != "" && levelRank(string(ev.Level)) < levelRank(f.minLevel) {
		return false
	}
	if f.comp != "" && ev.Comp != f.comp {
		return false
	}
	if f.loadID != 0 && ev.LoadID != f.loadID {
		return false
	}
	if f.session != "" && !strings.HasPrefix(ev.SessionID, f.session) {
		return false
	}
	return true
}

// levelRank returns a numeric rank for filtering (higher = more severe).
func levelRank(level string) int {
	switch otel.Level(level) {
	case otel.LevelInfo:
		return 1
	case otel.LevelWarn:
		return 2
	case otel.LevelError:
		return 3
	}
	return 0
}

func newEventsCmd(root *rootOptions) *cobra.Command {
	var (
		path    string
		tail    int
		follow  bool
		rawJSON bool
		filter  eventFilter
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "JSONL event log viewer",
		Long: `Print the structured events mentions writes for every load cycle.

Examples:
  mctl events                      # last 50 events
  mctl events --kind fetch         # fetch.start, fetch.complete, fetch.error
  mctl events --level warn -f      # follow warnings and errors
  mctl events --load 12            # everything from load 12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				cfg, err := root.load()
				if err != nil {
					return err
				}
				path = cfg.EventLogPath
			}
			if filter.minLevel != "" && levelRank(filter.minLevel) == 0 && filter.minLevel != string(otel.LevelDebug) {
				return fmt.Errorf("invalid --level %q: want debug, info, warn or error", filter.minLevel)
			}

			f, err := os.Open(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("event log not found at %s; run mentions first to generate events", path)
				}
				return err
			}
			defer f.Close()

			out := cmd.OutOrStdout()
			format := formatEvent
			if rawJSON {
				format = func(_ otel.Event, raw []byte) string { return string(raw) }
			}

			lines, err := readTailLines(f, tail, filter.match)
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Fprintln(out, format(l.ev, l.raw))
			}
			if !follow {
				return nil
			}
			return followEvents(cmd.Context(), f, out, filter.match, format)
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "Event log (default: event_log_path from the config)")
	cmd.Flags().IntVarP(&tail, "tail", "n", 50, "Number of recent events to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new events (like tail -f)")
	cmd.Flags().BoolVar(&rawJSON, "json", false, "Output raw JSON lines")
	cmd.Flags().StringVar(&filter.kind, "kind", "", "Filter by event kind prefix (e.g. 'schema')")
	cmd.Flags().StringVar(&filter.minLevel, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&filter.comp, "comp", "", "Filter by component name")
	cmd.Flags().Uint64Var(&filter.loadID, "load", 0, "Filter by load ID")
	cmd.Flags().StringVar(&filter.session, "session", "", "Filter by session ID prefix")
	return cmd
}

type parsedLine struct {
	ev  otel.Event
	raw []byte
}

// readTailLines reads r to the end and returns the last n lines matching
// the filter. Lines that are not events are skipped.
func readTailLines(r io.Reader, n int, match func(otel.Event) bool) ([]parsedLine, error) {
	if n <= 0 {
		return nil, nil
	}
	scanner := bufio.NewScanner(r)
	// Allow large lines (extra maps on schema events can be big)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	ring := make([]parsedLine, 0, n)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev otel.Event
		if json.Unmarshal(raw, &ev) != nil || !match(ev) {
			continue
		}
		// scanner reuses its buffer
		line := parsedLine{ev: ev, raw: append([]byte(nil), raw...)}
		if len(ring) < n {
			ring = append(ring, line)
		} else {
			copy(ring, ring[1:])
			ring[n-1] = line
		}
	}
	return ring, scanner.Err()
}

// followEvents prints matching lines appended to f until ctx is done.
func followEvents(ctx context.Context, f *os.File, w io.Writer, match func(otel.Event) bool, format func(otel.Event, []byte) string) error {
	reader := bufio.NewReader(f)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var partial []byte
	for {
		chunk, err := reader.ReadBytes('\n')
		partial = append(partial, chunk...)
		if errors.Is(err, io.EOF) {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			continue
		}
		if err != nil {
			return err
		}

		line := trimLine(partial)
		partial = nil
		if len(line) == 0 {
			continue
		}
		var ev otel.Event
		if json.Unmarshal(line, &ev) != nil {
			continue
		}
		if match(ev) {
			fmt.Fprintln(w, format(ev, line))
		}
	}
}

// formatEvent renders one event as a single human-readable line.
func formatEvent(ev otel.Event, _ []byte) string {
	lvl := strings.ToUpper(string(ev.Level))
	if lvl == "" {
		lvl = "?"
	}
	parts := []string{fmt.Sprintf("%s %-5s [%-8s] %-20s", ev.Time.Local().Format("15:04:05.000"), lvl, ev.Comp, ev.Kind)}

	if ev.LoadID != 0 {
		parts = append(parts, fmt.Sprintf("load=%d", ev.LoadID))
	}
	if ev.Source != "" {
		parts = append(parts, "src="+ev.Source)
	}
	if ev.Shape != "" {
		parts = append(parts, "shape="+ev.Shape)
	}
	if ev.Msg != "" {
		parts = append(parts, "- "+ev.Msg)
	}
	if ev.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ev.DurMs), ev.DurMs))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.Err != "" {
		parts = append(parts, "err="+ev.Err)
	}
	return strings.Join(parts, " ")
}

func trimLine(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}
