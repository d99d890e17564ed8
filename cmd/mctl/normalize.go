package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abelbrown/mentions/internal/model"
	"github.com/abelbrown/mentions/internal/pipeline"
	"github.com/abelbrown/mentions/internal/schema"
	"github.com/abelbrown/mentions/internal/viewmodel"
)

var headingStyle = lipgloss.NewStyle().Bold(true)

func newNormalizeCmd() *cobra.Command {
	var tier string
	var rawJSON bool
	var detail bool

	cmd := &cobra.Command{
		Use:   "normalize <file>...",
		Short: "Run the engine on export files and print the result",
		Long: `Run schema detection, classification, identity resolution and
aggregation on local export files, exactly as a load cycle would.

Files are read in argument order. The tier of records without a score is
taken from the file name ("high_confidence" / "low_confidence") unless
--tier is given.

Examples:
  mctl normalize combined_data_high_confidence.json combined_data_low_confidence.json
  mctl normalize --json scraped.json
  mctl normalize --tier low --detail export.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var forced model.Tier
			if tier != "" {
				t, err := model.ParseTier(tier)
				if err != nil {
					return err
				}
				forced = t
			}
			payloads, err := readPayloads(args, forced)
			if err != nil {
				return err
			}

			res, batch := pipeline.Run(payloads)
			out := cmd.OutOrStdout()
			if rawJSON {
				if res == nil {
					return noData(batch)
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			printBatch(out, batch)
			if res == nil {
				return noData(batch)
			}
			printPage(out, viewmodel.Build(res), detail)
			return nil
		},
	}

	cmd.Flags().StringVar(&tier, "tier", "", "Tier for unscored records: high or low (default: from file name)")
	cmd.Flags().BoolVar(&rawJSON, "json", false, "Print the raw aggregate as JSON")
	cmd.Flags().BoolVarP(&detail, "detail", "d", false, "List every mention under its product or thread")
	return cmd
}

// readPayloads reads each file into a payload named after its base name.
func readPayloads(paths []string, forced model.Tier) ([]schema.Payload, error) {
	payloads := make([]schema.Payload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		t := forced
		if t == "" {
			t = tierHint(p)
		}
		payloads = append(payloads, schema.Payload{Source: filepath.Base(p), Tier: t, Data: data})
	}
	return payloads, nil
}

// tierHint guesses the tier implied by an export's file name.
func tierHint(path string) model.Tier {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.Contains(name, "high"):
		return model.TierHigh
	case strings.Contains(name, "low"):
		return model.TierLow
	}
	return ""
}

func noData(b schema.Batch) error {
	if len(b.Rejected) > 0 {
		return fmt.Errorf("%w: %w", pipeline.ErrNoData, b.Rejected[0])
	}
	return pipeline.ErrNoData
}

// printBatch prints per-file diagnostics.
func printBatch(w io.Writer, b schema.Batch) {
	for _, n := range b.Accepted {
		line := fmt.Sprintf("%-40s %-14s %s", n.Source, n.Shape, plural(len(n.Mentions)+threadMentions(n), "mention"))
		if len(n.Dropped) > 0 {
			line += fmt.Sprintf(", %d dropped", len(n.Dropped))
		}
		if n.InvalidScores > 0 {
			line += fmt.Sprintf(", %d invalid scores", n.InvalidScores)
		}
		fmt.Fprintln(w, line)
		for _, d := range n.Dropped {
			fmt.Fprintf(w, "  dropped %s\n", d.Error())
		}
		for _, m := range n.Mismatches {
			fmt.Fprintf(w, "  %s: %s says %d, found %d\n", m.Product, m.Field, m.Declared, m.Actual)
		}
	}
	for _, err := range b.Rejected {
		var conflict *schema.ShapeConflictError
		if errors.As(err, &conflict) {
			fmt.Fprintf(w, "rejected: %v\n", conflict)
			continue
		}
		fmt.Fprintf(w, "unrecognized: %v\n", err)
	}
	fmt.Fprintln(w)
}

func threadMentions(n schema.Normalized) int {
	total := 0
	for _, t := range n.Threads {
		total += len(t.Mentions)
	}
	return total
}

// printPage prints the view model as an outline.
func printPage(w io.Writer, p viewmodel.Page, detail bool) {
	if p.Kind == model.ResultByThread {
		fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("Threads (%s)", plural(p.Mentions, "mention"))))
		for _, th := range p.Threads {
			fmt.Fprintf(w, "  %s  %d high · %d low\n", th.Title, len(th.High), len(th.Low))
			if detail {
				printEntries(w, th.High)
				printEntries(w, th.Low)
			}
		}
		return
	}

	for _, tab := range p.Tabs {
		fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("%s (%s)", tab.Label, humanize.Comma(int64(tab.Mentions)))))
		if len(tab.Cards) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for _, c := range tab.Cards {
			name := c.Title
			if c.ProductType != "" {
				name += " [" + c.ProductType + "]"
			}
			fmt.Fprintf(w, "  %-44s %s · %s\n", name, plural(c.PostsCount, "post"), plural(c.CommentsCount, "comment"))
			if detail {
				printEntries(w, c.Posts)
				printEntries(w, c.Comments)
			}
		}
	}
}

func printEntries(w io.Writer, entries []viewmodel.Entry) {
	for _, e := range entries {
		text := e.Title
		if text == "" {
			text = firstLine(e.Excerpt)
		}
		conf := e.Confidence
		if conf == "" {
			conf = "-"
		}
		fmt.Fprintf(w, "      %-8s %-4s %s %s\n", e.Source, conf, e.ID, truncate(text, 60))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
