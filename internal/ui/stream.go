package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/abelbrown/mentions/internal/viewmodel"
)

// minTitleWidth keeps titles readable on narrow terminals.
const minTitleWidth = 12

// RenderTabs renders the tier tab bar with a mention count per tier.
func RenderTabs(tabs []viewmodel.Tab, active, width int) string {
	parts := make([]string, 0, len(tabs))
	for i, t := range tabs {
		label := fmt.Sprintf("%s (%s)", t.Label, humanize.Comma(int64(t.Mentions)))
		if i == active {
			parts = append(parts, TabActive.Render(label))
		} else {
			parts = append(parts, TabInactive.Render(label))
		}
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	if pad := width - lipgloss.Width(bar); pad > 0 {
		bar += strings.Repeat(" ", pad)
	}
	return bar
}

// RenderCards renders one line per product card, scrolled so the cursor
// stays visible.
func RenderCards(cards []viewmodel.Card, cursor, width, height int) string {
	if len(cards) == 0 {
		return HelpStyle.Render("No mentions in this tier.")
	}
	lines := make([]string, len(cards))
	for i, c := range cards {
		lines[i] = renderRow(c.Title, c.ProductType, cardCounts(c), i == cursor, width)
	}
	return window(lines, cursor, height)
}

// RenderThreads renders one line per thread with its tier split.
func RenderThreads(threads []viewmodel.Thread, cursor, width, height int) string {
	if len(threads) == 0 {
		return HelpStyle.Render("No threads with mentions.")
	}
	lines := make([]string, len(threads))
	for i, th := range threads {
		counts := fmt.Sprintf("%s high · %s low", humanize.Comma(int64(len(th.High))), humanize.Comma(int64(len(th.Low))))
		lines[i] = renderRow(th.Title, "", counts, i == cursor, width)
	}
	return window(lines, cursor, height)
}

// window joins the lines visible in a viewport of height rows.
func window(lines []string, cursor, height int) string {
	if height < 1 {
		height = 1
	}
	offset := calcScrollOffset(cursor, len(lines), height)
	end := offset + height
	if end > len(lines) {
		end = len(lines)
	}
	var b strings.Builder
	for _, l := range lines[offset:end] {
		b.WriteString(l)
		b.WriteString("\n")
	}
	return b.String()
}

// calcScrollOffset returns the first visible index that keeps cursor on
// screen.
func calcScrollOffset(cursor, total, height int) int {
	if total == 0 || cursor < 0 {
		return 0
	}
	if cursor >= total {
		cursor = total - 1
	}
	if cursor >= height {
		return cursor - height + 1
	}
	return 0
}

func cardCounts(c viewmodel.Card) string {
	return plural(c.PostsCount, "post") + " · " + plural(c.CommentsCount, "comment")
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}

// renderRow lays out "[badge] title ....... counts" across width columns.
func renderRow(title, badge, counts string, selected bool, width int) string {
	badgeWidth := 0
	if badge != "" {
		badgeWidth = runewidth.StringWidth(badge) + 3 // padding and margin
	}
	countsWidth := runewidth.StringWidth(counts)

	titleWidth := width - badgeWidth - countsWidth - 5
	if titleWidth < minTitleWidth {
		titleWidth = minTitleWidth
	}
	title = runewidth.Truncate(title, titleWidth, "…")
	leader := width - badgeWidth - runewidth.StringWidth(title) - countsWidth - 4

	if selected {
		plain := title + " " + fadeDots(leader-1) + " " + counts
		if badge != "" {
			plain = "[" + badge + "] " + plain
		}
		return SelectedItem.Width(width).Render(plain)
	}

	var b strings.Builder
	if badge != "" {
		b.WriteString(TypeBadge.Render(badge))
	}
	b.WriteString(NormalItem.Render(title))
	b.WriteString(MetaItem.Render(fadeDots(leader)))
	b.WriteString(" ")
	b.WriteString(MetaItem.Render(counts))
	return b.String()
}

func fadeDots(count int) string {
	if count <= 0 {
		return ""
	}
	// Dots for the leader, one trailing space before the counts.
	return strings.Repeat(".", count-1) + " "
}

// RenderStatusBar renders the bottom status bar: a left-hand status and the
// key hints right-aligned.
func RenderStatusBar(left string, hints []string, width int) string {
	right := strings.Join(hints, " ")

	leftWidth := lipgloss.Width(left)
	rightWidth := lipgloss.Width(right)
	padding := width - leftWidth - rightWidth - 2
	if padding < 1 {
		padding = 1
	}
	return StatusBar.Width(width).Render(left + strings.Repeat(" ", padding) + right)
}
