package ui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/mentions/internal/model"
	"github.com/abelbrown/mentions/internal/viewmodel"
)

// makeCards creates n cards with sequential titles.
func makeCards(n int) []viewmodel.Card {
	cards := make([]viewmodel.Card, n)
	for i := range cards {
		cards[i] = viewmodel.Card{
			Key:        fmt.Sprintf("p%d", i),
			Title:      fmt.Sprintf("Product %02d", i),
			PostsCount: i,
		}
	}
	return cards
}

func TestCalcScrollOffset(t *testing.T) {
	tests := []struct {
		name       string
		cursor     int
		total      int
		height     int
		wantOffset int
	}{
		{"cursor at top", 0, 100, 30, 0},
		{"cursor within viewport", 10, 100, 30, 0},
		{"cursor at viewport edge", 29, 100, 30, 0},
		{"cursor one past viewport", 30, 100, 30, 1},
		{"cursor far down", 99, 100, 30, 70},
		{"small viewport", 10, 100, 5, 6},
		{"cursor past end", 150, 100, 30, 70},
		{"empty", 0, 0, 30, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calcScrollOffset(tt.cursor, tt.total, tt.height)
			if got != tt.wantOffset {
				t.Errorf("calcScrollOffset(cursor=%d, total=%d, height=%d) = %d, want %d",
					tt.cursor, tt.total, tt.height, got, tt.wantOffset)
			}
		})
	}
}

func TestRenderCardsKeepsCursorVisible(t *testing.T) {
	cards := makeCards(50)
	out := RenderCards(cards, 40, 80, 10)

	if n := strings.Count(out, "\n"); n != 10 {
		t.Errorf("rendered %d lines, want 10", n)
	}
	if !strings.Contains(out, "Product 40") {
		t.Error("cursor row should be visible")
	}
	if strings.Contains(out, "Product 30") {
		t.Error("rows above the window should be scrolled off")
	}
}

func TestRenderCardsEmpty(t *testing.T) {
	if out := RenderCards(nil, 0, 80, 10); !strings.Contains(out, "No mentions in this tier") {
		t.Errorf("empty tier = %q", out)
	}
}

func TestRenderRowFitsWidth(t *testing.T) {
	long := strings.Repeat("Very Long Product Name ", 10)
	for _, selected := range []bool{false, true} {
		row := renderRow(long, "serum", "12 posts · 3 comments", selected, 80)
		if w := lipgloss.Width(row); w > 80 {
			t.Errorf("selected=%v: row width %d exceeds 80", selected, w)
		}
		if !strings.Contains(row, "…") {
			t.Errorf("selected=%v: long title should be truncated", selected)
		}
		if !strings.Contains(row, "12 posts · 3 comments") {
			t.Errorf("selected=%v: counts missing", selected)
		}
	}
}

func TestRenderRowWideRunes(t *testing.T) {
	row := renderRow("日本の化粧水 とても良い 日本の化粧水 とても良い", "", "1 post · 0 comments", false, 40)
	if w := lipgloss.Width(row); w > 40 {
		t.Errorf("row width %d exceeds 40", w)
	}
}

func TestPlural(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 posts"},
		{1, "1 post"},
		{2, "2 posts"},
		{1234, "1,234 posts"},
	}
	for _, tt := range tests {
		if got := plural(tt.n, "post"); got != tt.want {
			t.Errorf("plural(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestRenderTabs(t *testing.T) {
	tabs := []viewmodel.Tab{
		{Tier: model.TierHigh, Label: "High confidence", Mentions: 1500},
		{Tier: model.TierLow, Label: "Low confidence", Mentions: 2},
	}
	out := RenderTabs(tabs, 1, 80)
	if !strings.Contains(out, "High confidence (1,500)") || !strings.Contains(out, "Low confidence (2)") {
		t.Errorf("tabs = %q", out)
	}
}

func TestRenderThreads(t *testing.T) {
	threads := []viewmodel.Thread{
		{Title: "weekly help thread", High: make([]viewmodel.Entry, 3)},
	}
	out := RenderThreads(threads, 0, 80, 5)
	if !strings.Contains(out, "weekly help thread") || !strings.Contains(out, "3 high · 0 low") {
		t.Errorf("threads = %q", out)
	}
}

func TestFadeDots(t *testing.T) {
	if fadeDots(0) != "" || fadeDots(-3) != "" {
		t.Error("non-positive count should render nothing")
	}
	if got := fadeDots(4); got != "... " {
		t.Errorf("fadeDots(4) = %q", got)
	}
}

func TestRenderStatusBar(t *testing.T) {
	out := RenderStatusBar("3/10", []string{hint(keys.Reload), hint(keys.Quit)}, 60)
	for _, want := range []string{"3/10", "r", "reload", "quit"} {
		if !strings.Contains(out, want) {
			t.Errorf("status bar missing %q: %q", want, out)
		}
	}
}
