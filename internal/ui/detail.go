package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"

	"github.com/abelbrown/mentions/internal/model"
	"github.com/abelbrown/mentions/internal/viewmodel"
)

// DefaultMarkdownStyle is the glamour style used for the detail pane.
const DefaultMarkdownStyle = "dark"

// cardMarkdown builds the detail document for one product.
func cardMarkdown(c viewmodel.Card, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", c.Title)

	var meta []string
	if c.ProductType != "" {
		meta = append(meta, "_"+c.ProductType+"_")
	}
	meta = append(meta, plural(c.PostsCount, "post"), plural(c.CommentsCount, "comment"))
	b.WriteString(strings.Join(meta, " · "))
	b.WriteString("\n\n")

	if len(c.Posts) > 0 {
		b.WriteString("## Posts\n\n")
		for _, e := range c.Posts {
			writeEntry(&b, e, now)
		}
	}
	if len(c.Comments) > 0 {
		b.WriteString("## Comments\n\n")
		for _, e := range c.Comments {
			writeEntry(&b, e, now)
		}
	}
	return b.String()
}

// threadMarkdown builds the detail document for one thread.
func threadMarkdown(th viewmodel.Thread, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", th.Title)
	if th.URL != "" {
		fmt.Fprintf(&b, "<%s>\n\n", th.URL)
	}

	sections := []struct {
		tier    model.Tier
		entries []viewmodel.Entry
	}{
		{model.TierHigh, th.High},
		{model.TierLow, th.Low},
	}
	for _, s := range sections {
		if len(s.entries) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", viewmodel.TierLabel(s.tier))
		for _, e := range s.entries {
			writeEntry(&b, e, now)
		}
	}
	return b.String()
}

func writeEntry(b *strings.Builder, e viewmodel.Entry, now time.Time) {
	heading := e.Title
	if heading == "" && e.Source == model.SourcePost {
		heading = "Post " + e.ID
	}
	if heading != "" {
		fmt.Fprintf(b, "### %s\n\n", heading)
	}

	if meta := entryMeta(e, now); meta != "" {
		b.WriteString(meta)
		b.WriteString("\n\n")
	}

	switch {
	case e.HasExcerpt && strings.TrimSpace(e.Excerpt) != "":
		for _, line := range strings.Split(strings.TrimSpace(e.Excerpt), "\n") {
			b.WriteString("> ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	case e.HasExcerpt:
		b.WriteString("_(empty)_\n\n")
	}

	for _, f := range e.Fields {
		fmt.Fprintf(b, "- **%s:** %s\n", f.Label, f.Value)
	}
	if len(e.Fields) > 0 {
		b.WriteString("\n")
	}
	if e.URL != "" && e.Source == model.SourcePost {
		fmt.Fprintf(b, "<%s>\n\n", e.URL)
	}
	b.WriteString("---\n\n")
}

// entryMeta is the one-line byline: confidence, author, age and votes.
func entryMeta(e viewmodel.Entry, now time.Time) string {
	var parts []string
	if e.Confidence != "" {
		parts = append(parts, e.Confidence)
	}
	if e.Author != "" {
		parts = append(parts, "u/"+e.Author)
	}
	if !e.Created.IsZero() {
		parts = append(parts, humanize.RelTime(e.Created, now, "ago", "from now"))
	}
	if e.Votes != nil {
		parts = append(parts, fmt.Sprintf("▲ %s", humanize.Comma(int64(*e.Votes))))
	}
	return strings.Join(parts, " · ")
}

// renderMarkdown renders md for the terminal, falling back to plain
// wrapped text when glamour cannot.
func renderMarkdown(md, style string, width int) string {
	if width < 20 {
		width = 20
	}
	if style == "" {
		style = DefaultMarkdownStyle
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return wordwrap.String(md, width)
	}
	out, err := r.Render(md)
	if err != nil {
		return wordwrap.String(md, width)
	}
	return out
}
