// Package aggregate groups classified mentions by product and by thread.
//
// Output order follows first occurrence in the input, never map iteration,
// so the same input always yields the same result.
package aggregate

import (
	"net/url"
	"strings"

	"github.com/abelbrown/mentions/internal/classify"
	"github.com/abelbrown/mentions/internal/identity"
	"github.com/abelbrown/mentions/internal/model"
	"github.com/abelbrown/mentions/internal/schema"
)

// tiered makes sure a mention has a tier. Mentions coming out of the
// pipeline already do.
func tiered(m model.Mention) model.Mention {
	if m.Tier.Valid() {
		return m
	}
	return classify.Classify(m, m.Hint)
}

// ByProduct groups mentions into one aggregate per tier and product key.
// Both tiers are always present in the returned map.
func ByProduct(mentions []model.Mention, r *identity.Resolver) map[model.Tier][]model.ProductAggregate {
	type slot struct {
		tier model.Tier
		key  string
	}

	out := make(map[model.Tier][]model.ProductAggregate, 2)
	for _, t := range model.Tiers() {
		out[t] = []model.ProductAggregate{}
	}
	index := make(map[slot]int)

	for _, m := range mentions {
		m = tiered(m)
		key, label := r.Resolve(m.DisplayName)
		m.ProductKey = key

		s := slot{m.Tier, key}
		i, ok := index[s]
		if !ok {
			i = len(out[m.Tier])
			index[s] = i
			out[m.Tier] = append(out[m.Tier], model.ProductAggregate{
				ProductKey:  key,
				DisplayName: label,
				Posts:       []model.Mention{},
				Comments:    []model.Mention{},
			})
		}

		agg := &out[m.Tier][i]
		if agg.ProductType == "" {
			agg.ProductType = m.ProductType
		}
		if m.SourceType == model.SourcePost {
			agg.Posts = append(agg.Posts, m)
		} else {
			agg.Comments = append(agg.Comments, m)
		}
	}

	for t, aggs := range out {
		out[t] = finish(aggs)
	}
	return out
}

// finish recomputes counts and drops aggregates with nothing in them.
func finish(aggs []model.ProductAggregate) []model.ProductAggregate {
	kept := aggs[:0]
	for _, a := range aggs {
		if a.Empty() {
			continue
		}
		a.PostsCount = len(a.Posts)
		a.CommentsCount = len(a.Comments)
		kept = append(kept, a)
	}
	return kept
}

// ByThread splits each thread's mentions by tier. Threads keep their input
// order; a URL seen twice is merged into its first occurrence. Threads left
// without mentions are dropped.
func ByThread(threads []schema.ThreadMentions, r *identity.Resolver) []model.ThreadGroup {
	out := []model.ThreadGroup{}
	index := make(map[string]int)

	for _, th := range threads {
		i, ok := index[th.URL]
		if !ok {
			i = len(out)
			index[th.URL] = i
			out = append(out, model.ThreadGroup{
				ThreadURL:      th.URL,
				ThreadTitle:    ThreadTitle(th.URL),
				HighConfidence: []model.Mention{},
				LowConfidence:  []model.Mention{},
			})
		}

		g := &out[i]
		for _, m := range th.Mentions {
			m = tiered(m)
			m.ProductKey, _ = r.Resolve(m.DisplayName)
			if m.Tier == model.TierHigh {
				g.HighConfidence = append(g.HighConfidence, m)
			} else {
				g.LowConfidence = append(g.LowConfidence, m)
			}
		}
	}

	kept := out[:0]
	for _, g := range out {
		if g.Len() > 0 {
			kept = append(kept, g)
		}
	}
	return kept
}

// ThreadTitle derives a readable title from the last non-empty path segment
// of a thread URL, with underscores shown as spaces.
func ThreadTitle(raw string) string {
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}

	var last string
	for _, seg := range strings.Split(path, "/") {
		if strings.TrimSpace(seg) != "" {
			last = seg
		}
	}
	if last == "" {
		return raw
	}
	return strings.ReplaceAll(last, "_", " ")
}

// Build runs the aggregation matching a normalized batch and returns a fresh
// result. The resolver should be new for each load.
func Build(b schema.Batch, r *identity.Resolver) *model.AggregateResult {
	if b.Kind == model.ResultByThread {
		return &model.AggregateResult{
			Kind:     model.ResultByThread,
			ByThread: ByThread(b.Threads, r),
		}
	}
	res := model.NewProductResult()
	res.ByProduct = ByProduct(b.Mentions, r)
	return res
}
