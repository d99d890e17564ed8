// Package viewmodel maps an aggregate result into the flat structure the
// terminal UI renders. It adds no semantics of its own.
package viewmodel

import (
	"fmt"
	"sort"
	"time"

	"github.com/abelbrown/mentions/internal/model"
)

// Field is one labelled attribute line.
type Field struct {
	Key   string
	Label string
	Value string
}

// Entry is a single mention ready for display.
type Entry struct {
	ID         string
	Source     model.SourceType
	Tier       model.Tier
	Confidence string // "92%", empty when the mention had no score
	Title      string // post title, when the export carried one
	Excerpt    string
	HasExcerpt bool
	Author     string
	Created    time.Time // zero when unknown
	Votes      *int
	URL        string
	Fields     []Field
}

// Card is one product.
type Card struct {
	Key           string
	Title         string
	ProductType   string
	PostsCount    int
	CommentsCount int
	Posts         []Entry
	Comments      []Entry
}

// Tab groups the cards of one tier.
type Tab struct {
	Tier     model.Tier
	Label    string
	Cards    []Card
	Mentions int
}

// Thread is one thread section of a by-thread result.
type Thread struct {
	URL   string
	Title string
	High  []Entry
	Low   []Entry
}

// Page is everything the UI needs for one load.
type Page struct {
	Kind     model.ResultKind
	Tabs     []Tab
	Threads  []Thread
	Mentions int
}

// Empty reports whether there is nothing to show.
func (p Page) Empty() bool {
	return p.Mentions == 0
}

var tierLabels = map[model.Tier]string{
	model.TierHigh: "High confidence",
	model.TierLow:  "Low confidence",
}

// TierLabel returns the heading for a tier.
func TierLabel(t model.Tier) string {
	if l, ok := tierLabels[t]; ok {
		return l
	}
	return string(t)
}

// fieldOrder fixes the order attribute lines are shown in. Unknown keys
// follow in key order.
var fieldOrder = []struct {
	key, label string
}{
	{model.AttrSkinType, "Skin type"},
	{model.AttrPriceSize, "Price/size"},
	{model.AttrEffects, "Effects"},
	{model.AttrStatus, "Status"},
	{model.AttrAvailability, "Availability"},
}

// Build maps res into a Page. A nil result yields an empty page.
func Build(res *model.AggregateResult) Page {
	if res == nil {
		return Page{Kind: model.ResultByProduct}
	}
	p := Page{Kind: res.Kind}

	switch res.Kind {
	case model.ResultByThread:
		for _, g := range res.ByThread {
			th := Thread{
				URL:   g.ThreadURL,
				Title: g.ThreadTitle,
				High:  entries(g.HighConfidence),
				Low:   entries(g.LowConfidence),
			}
			p.Mentions += len(th.High) + len(th.Low)
			p.Threads = append(p.Threads, th)
		}
	default:
		for _, tier := range model.Tiers() {
			tab := Tab{Tier: tier, Label: TierLabel(tier)}
			for _, a := range res.ByProduct[tier] {
				tab.Cards = append(tab.Cards, Card{
					Key:           a.ProductKey,
					Title:         a.DisplayName,
					ProductType:   a.ProductType,
					PostsCount:    a.PostsCount,
					CommentsCount: a.CommentsCount,
					Posts:         entries(a.Posts),
					Comments:      entries(a.Comments),
				})
				tab.Mentions += a.PostsCount + a.CommentsCount
			}
			p.Mentions += tab.Mentions
			p.Tabs = append(p.Tabs, tab)
		}
	}
	return p
}

func entries(ms []model.Mention) []Entry {
	out := make([]Entry, 0, len(ms))
	for _, m := range ms {
		out = append(out, entry(m))
	}
	return out
}

func entry(m model.Mention) Entry {
	e := Entry{
		ID:     m.Provenance.ID,
		Source: m.SourceType,
		Tier:   m.Tier,
		Author: m.Provenance.Author,
		Votes:  m.Provenance.Score,
		URL:    m.Provenance.ThreadURL,
		Fields: fields(m.Attributes),
	}
	if m.Score != nil {
		e.Confidence = Percent(*m.Score)
	}
	if m.Excerpt != nil {
		e.Excerpt = *m.Excerpt
		e.HasExcerpt = true
	}
	if v, ok := m.Attributes.Get(model.AttrPostTitle); ok {
		e.Title = v.String()
	}
	if m.Provenance.CreatedAt != nil {
		e.Created = time.Unix(*m.Provenance.CreatedAt, 0).UTC()
	}
	return e
}

// Percent renders a [0,1] score as a whole percentage.
func Percent(score float64) string {
	return fmt.Sprintf("%.0f%%", score*100)
}

func fields(attrs model.Attributes) []Field {
	if len(attrs) == 0 {
		return nil
	}
	var out []Field
	known := make(map[string]bool, len(fieldOrder)+1)
	known[model.AttrPostTitle] = true

	for _, f := range fieldOrder {
		known[f.key] = true
		if v, ok := attrs.Get(f.key); ok {
			out = append(out, Field{Key: f.key, Label: f.label, Value: v.String()})
		}
	}

	var extra []string
	for k := range attrs {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		out = append(out, Field{Key: k, Label: k, Value: attrs[k].String()})
	}
	return out
}
