package model

import (
	"encoding/json"
	"testing"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		in      string
		want    Tier
		wantErr bool
	}{
		{"high", TierHigh, false},
		{"high_confidence", TierHigh, false},
		{"low", TierLow, false},
		{"low_confidence", TierLow, false},
		{"", "", true},
		{"HIGH", "", true},
		{"medium", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTier(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseTier(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestTierValid(t *testing.T) {
	for _, tier := range Tiers() {
		if !tier.Valid() {
			t.Errorf("%q should be valid", tier)
		}
	}
	if Tier("").Valid() || Tier("mid").Valid() {
		t.Error("unknown tiers should be invalid")
	}
}

func TestAttrValue(t *testing.T) {
	list := ListAttr([]string{"hydrating", "brightening"})
	if list.String() != "hydrating, brightening" || list.Empty() {
		t.Errorf("list = %+v", list)
	}

	empty := ListAttr(nil)
	if !empty.IsList || !empty.Empty() {
		t.Error("nil list should stay a present, empty list")
	}
	data, _ := json.Marshal(empty)
	if string(data) != "[]" {
		t.Errorf("empty list marshals to %s", data)
	}

	if !StringAttr("").Empty() || StringAttr("oily").Empty() {
		t.Error("string emptiness")
	}
}

func TestAttrValueUnmarshal(t *testing.T) {
	var attrs Attributes
	if err := json.Unmarshal([]byte(`{"skin_type": "dry", "effects": ["calm"], "status": []}`), &attrs); err != nil {
		t.Fatal(err)
	}
	if v, _ := attrs.Get(AttrSkinType); v.IsList || v.Str != "dry" {
		t.Errorf("skin_type = %+v", v)
	}
	if v, _ := attrs.Get(AttrEffects); !v.IsList || v.String() != "calm" {
		t.Errorf("effects = %+v", v)
	}
	if v, ok := attrs.Get(AttrStatus); !ok || !v.Empty() {
		t.Errorf("status = %+v, %v", v, ok)
	}
	if _, ok := attrs.Get(AttrPriceSize); ok {
		t.Error("absent key reported present")
	}

	var bad AttrValue
	if err := json.Unmarshal([]byte(`42`), &bad); err == nil {
		t.Error("numbers are not attribute values")
	}
}

func TestMentionCount(t *testing.T) {
	var nilResult *AggregateResult
	if nilResult.MentionCount() != 0 || !nilResult.IsEmpty() {
		t.Error("nil result should be empty")
	}

	r := NewProductResult()
	if len(r.ByProduct) != 2 || !r.IsEmpty() {
		t.Fatalf("new result = %+v", r)
	}
	r.ByProduct[TierHigh] = []ProductAggregate{{
		ProductKey: "foo",
		Posts:      []Mention{{}},
		Comments:   []Mention{{}, {}},
	}}
	if r.MentionCount() != 3 {
		t.Errorf("MentionCount = %d", r.MentionCount())
	}

	threads := &AggregateResult{Kind: ResultByThread, ByThread: []ThreadGroup{
		{HighConfidence: []Mention{{}}, LowConfidence: []Mention{{}}},
	}}
	if threads.MentionCount() != 2 {
		t.Errorf("thread MentionCount = %d", threads.MentionCount())
	}
}

func TestProductAggregateEmpty(t *testing.T) {
	if !(ProductAggregate{ProductKey: "x"}).Empty() {
		t.Error("aggregate without mentions should be empty")
	}
	if (ProductAggregate{Comments: []Mention{{}}}).Empty() {
		t.Error("aggregate with a comment is not empty")
	}
}
