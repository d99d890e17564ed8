package viewmodel

import (
	"testing"
	"time"

	"github.com/abelbrown/mentions/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestBuildByProduct(t *testing.T) {
	res := model.NewProductResult()
	res.ByProduct[model.TierHigh] = []model.ProductAggregate{{
		ProductKey:    "foo serum",
		DisplayName:   "Foo Serum",
		ProductType:   "serum",
		PostsCount:    1,
		CommentsCount: 1,
		Posts: []model.Mention{{
			SourceType: model.SourcePost,
			Tier:       model.TierHigh,
			Excerpt:    ptr("Love it"),
			Attributes: model.Attributes{
				model.AttrPostTitle: model.StringAttr("Week one"),
				model.AttrStatus:    model.StringAttr("Holy grail"),
				model.AttrSkinType:  model.ListAttr([]string{"oily", "acne-prone"}),
				"zz_custom":         model.StringAttr("x"),
			},
			Provenance: model.Provenance{ID: "p1", Author: "alice", CreatedAt: ptr(int64(1700000000)), Score: ptr(3)},
		}},
		Comments: []model.Mention{{
			SourceType: model.SourceComment,
			Tier:       model.TierHigh,
			Score:      ptr(0.915),
			Excerpt:    ptr(""),
		}},
	}}

	p := Build(res)
	if p.Kind != model.ResultByProduct {
		t.Errorf("Kind = %q", p.Kind)
	}
	if len(p.Tabs) != 2 || p.Tabs[0].Tier != model.TierHigh || p.Tabs[1].Tier != model.TierLow {
		t.Fatalf("Tabs = %+v", p.Tabs)
	}
	if p.Tabs[0].Label != "High confidence" {
		t.Errorf("Label = %q", p.Tabs[0].Label)
	}
	if p.Mentions != 2 || p.Tabs[0].Mentions != 2 || p.Empty() {
		t.Errorf("Mentions = %d / %d", p.Mentions, p.Tabs[0].Mentions)
	}

	card := p.Tabs[0].Cards[0]
	if card.Title != "Foo Serum" || card.ProductType != "serum" || card.PostsCount != 1 {
		t.Errorf("card = %+v", card)
	}

	post := card.Posts[0]
	if post.Title != "Week one" || post.Excerpt != "Love it" || !post.HasExcerpt {
		t.Errorf("post = %+v", post)
	}
	if post.Confidence != "" {
		t.Errorf("unscored mention should have no confidence, got %q", post.Confidence)
	}
	if !post.Created.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("Created = %v", post.Created)
	}
	if post.Votes == nil || *post.Votes != 3 {
		t.Errorf("Votes = %v", post.Votes)
	}

	wantFields := []Field{
		{model.AttrSkinType, "Skin type", "oily, acne-prone"},
		{model.AttrStatus, "Status", "Holy grail"},
		{"zz_custom", "zz_custom", "x"},
	}
	if len(post.Fields) != len(wantFields) {
		t.Fatalf("Fields = %+v", post.Fields)
	}
	for i, f := range wantFields {
		if post.Fields[i] != f {
			t.Errorf("Fields[%d] = %+v, want %+v", i, post.Fields[i], f)
		}
	}

	c := card.Comments[0]
	if c.Confidence != "92%" {
		t.Errorf("Confidence = %q", c.Confidence)
	}
	if !c.HasExcerpt || c.Excerpt != "" {
		t.Errorf("present-but-empty excerpt should be kept, got %+v", c)
	}
	if !c.Created.IsZero() {
		t.Errorf("Created should be zero, got %v", c.Created)
	}
}

func TestBuildByThread(t *testing.T) {
	res := &model.AggregateResult{
		Kind: model.ResultByThread,
		ByThread: []model.ThreadGroup{{
			ThreadURL:      "https://x/y/z/megathread_march",
			ThreadTitle:    "megathread march",
			HighConfidence: []model.Mention{{DisplayName: "Bar Cream", Score: ptr(0.9)}},
		}},
	}

	p := Build(res)
	if len(p.Threads) != 1 || p.Threads[0].Title != "megathread march" {
		t.Fatalf("Threads = %+v", p.Threads)
	}
	if len(p.Threads[0].High) != 1 || len(p.Threads[0].Low) != 0 {
		t.Errorf("High=%d Low=%d", len(p.Threads[0].High), len(p.Threads[0].Low))
	}
	if p.Threads[0].High[0].Confidence != "90%" {
		t.Errorf("Confidence = %q", p.Threads[0].High[0].Confidence)
	}
	if p.Mentions != 1 {
		t.Errorf("Mentions = %d", p.Mentions)
	}
}

func TestBuildNil(t *testing.T) {
	p := Build(nil)
	if !p.Empty() {
		t.Error("nil result should give an empty page")
	}
}

func TestPercent(t *testing.T) {
	tests := map[float64]string{0: "0%", 0.85: "85%", 1: "100%", 0.849: "85%"}
	for in, want := range tests {
		if got := Percent(in); got != want {
			t.Errorf("Percent(%v) = %q, want %q", in, got, want)
		}
	}
}
