package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/abelbrown/mentions/internal/fetch"
	"github.com/abelbrown/mentions/internal/model"
	"github.com/abelbrown/mentions/internal/otel"
	"github.com/abelbrown/mentions/internal/schema"
	"github.com/abelbrown/mentions/internal/store"
)

const highJSON = `{
	"Foo Serum": {
		"product_type": "serum",
		"posts_count": 1,
		"comments_count": 1,
		"posts": [{"post_id": "p1", "post_title": "Foo review", "post_score": 12}],
		"megathread_comments": [{"comment_id": "c1", "comment": "love it"}]
	}
}`

const lowJSON = `{
	"foo serum": {"posts": [], "megathread_comments": [{"comment_id": "c2", "comment": "meh"}]},
	"Bar Cream": {"posts": [{"post_id": "p2"}], "megathread_comments": []}
}`

const flatJSON = `{
	"https://x/r/comments/1/megathread_march": {
		"high_confidence": [{"match_confidence": 0.9, "matched_product": "Bar Cream", "comment": "great"}],
		"low_confidence": [{"match_confidence": 0.3, "matched_product": "Baz"}]
	}
}`

// fakeFetcher serves canned payloads by source name.
type fakeFetcher struct {
	mu      sync.Mutex
	data    map[string]string
	calls   map[string]int
	block   chan struct{} // when set, Fetch waits on it or ctx
	started chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, src fetch.Source) ([]byte, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[src.Name]++
	f.mu.Unlock()

	if f.block != nil {
		if f.started != nil {
			f.started <- struct{}{}
		}
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, &fetch.PayloadUnavailableError{Source: src.Name, Err: ctx.Err()}
		}
	}

	body, ok := f.data[src.Name]
	if !ok {
		return nil, &fetch.PayloadUnavailableError{Source: src.Name, Status: 404}
	}
	return []byte(body), nil
}

func sources() []fetch.Source {
	return []fetch.Source{
		{Name: "high", Location: "https://example.test/high.json", Tier: model.TierHigh},
		{Name: "low", Location: "https://example.test/low.json", Tier: model.TierLow},
	}
}

func TestLoadBothSources(t *testing.T) {
	f := &fakeFetcher{data: map[string]string{"high": highJSON, "low": lowJSON}}
	l := NewLoader(f, sources(), Options{})

	st := l.Load(context.Background())
	if st.Status != StatusReady {
		t.Fatalf("Status = %s, err = %v", st.Status, st.Err)
	}
	res := st.Result
	if res.Kind != model.ResultByProduct {
		t.Fatalf("Kind = %q", res.Kind)
	}

	high := res.ByProduct[model.TierHigh]
	if len(high) != 1 || high[0].DisplayName != "Foo Serum" {
		t.Fatalf("high = %+v", high)
	}
	if high[0].PostsCount != 1 || high[0].CommentsCount != 1 {
		t.Errorf("high counts = %d/%d", high[0].PostsCount, high[0].CommentsCount)
	}

	low := res.ByProduct[model.TierLow]
	if len(low) != 2 {
		t.Fatalf("low = %+v", low)
	}
	if low[0].DisplayName != "Foo Serum" {
		t.Errorf("low[0] label = %q, want first-seen label across tiers", low[0].DisplayName)
	}
	if low[0].ProductKey != high[0].ProductKey {
		t.Errorf("keys differ across tiers: %q vs %q", low[0].ProductKey, high[0].ProductKey)
	}

	if st.Report.Fetched() != 2 || len(st.Report.Warnings()) != 0 {
		t.Errorf("report = %+v", st.Report)
	}
	if st.Report.Mentions != 4 {
		t.Errorf("Mentions = %d, want 4", st.Report.Mentions)
	}
	if st.Report.Sources[0].Shape != schema.ShapeGrouped {
		t.Errorf("high shape = %s", st.Report.Sources[0].Shape)
	}
}

func TestLoadOneSourceFails(t *testing.T) {
	f := &fakeFetcher{data: map[string]string{"high": highJSON}}
	l := NewLoader(f, sources(), Options{})

	st := l.Load(context.Background())
	if st.Status != StatusReady {
		t.Fatalf("Status = %s, err = %v", st.Status, st.Err)
	}
	if n := len(st.Result.ByProduct[model.TierLow]); n != 0 {
		t.Errorf("low tier has %d aggregates, want 0", n)
	}
	if len(st.Result.ByProduct[model.TierHigh]) != 1 {
		t.Errorf("high tier = %+v", st.Result.ByProduct[model.TierHigh])
	}

	low := st.Report.Sources[1]
	if low.OK || low.HTTPStatus != 404 {
		t.Errorf("low report = %+v", low)
	}
	if w := st.Report.Warnings(); len(w) != 1 {
		t.Errorf("Warnings = %v", w)
	}
}

func TestLoadNoData(t *testing.T) {
	l := NewLoader(&fakeFetcher{}, sources(), Options{})

	st := l.Load(context.Background())
	if st.Status != StatusError {
		t.Fatalf("Status = %s", st.Status)
	}
	if !st.NoData() {
		t.Errorf("err = %v, want ErrNoData", st.Err)
	}
	if st.Result != nil {
		t.Error("error state should not carry a result")
	}
}

func TestLoadUnrecognizedOnly(t *testing.T) {
	f := &fakeFetcher{data: map[string]string{"high": `{"foo": 1}`, "low": `not json`}}
	l := NewLoader(f, sources(), Options{})

	st := l.Load(context.Background())
	if !st.NoData() {
		t.Fatalf("Status = %s err = %v", st.Status, st.Err)
	}
	if !errors.Is(st.Err, schema.ErrUnrecognizedSchema) {
		t.Errorf("err = %v, want it to wrap the schema error", st.Err)
	}
	for _, s := range st.Report.Sources {
		if !s.OK || s.Err == nil {
			t.Errorf("source %s: OK=%v err=%v", s.Name, s.OK, s.Err)
		}
	}
}

func TestLoadEmptyExports(t *testing.T) {
	f := &fakeFetcher{data: map[string]string{"high": `{}`, "low": `[]`}}
	l := NewLoader(f, sources(), Options{})

	st := l.Load(context.Background())
	if st.Status != StatusReady {
		t.Fatalf("Status = %s err = %v", st.Status, st.Err)
	}
	if !st.Result.IsEmpty() {
		t.Errorf("result should be empty: %+v", st.Result)
	}
}

func TestLoadFlatExport(t *testing.T) {
	srcs := []fetch.Source{{Name: "flat", Location: "file:///tmp/flat.json", Tier: model.TierHigh}}
	f := &fakeFetcher{data: map[string]string{"flat": flatJSON}}

	st := NewLoader(f, srcs, Options{}).Load(context.Background())
	if st.Status != StatusReady {
		t.Fatalf("Status = %s err = %v", st.Status, st.Err)
	}
	if st.Result.Kind != model.ResultByThread || len(st.Result.ByThread) != 1 {
		t.Fatalf("result = %+v", st.Result)
	}
	g := st.Result.ByThread[0]
	if g.ThreadTitle != "megathread march" || len(g.HighConfidence) != 1 || len(g.LowConfidence) != 1 {
		t.Errorf("thread = %+v", g)
	}
}

func TestLoadShapeConflict(t *testing.T) {
	f := &fakeFetcher{data: map[string]string{"high": highJSON, "low": flatJSON}}
	st := NewLoader(f, sources(), Options{}).Load(context.Background())
	if st.Status != StatusReady {
		t.Fatalf("Status = %s err = %v", st.Status, st.Err)
	}
	if st.Result.Kind != model.ResultByProduct {
		t.Errorf("Kind = %q", st.Result.Kind)
	}
	if !errors.Is(st.Report.Sources[1].Err, schema.ErrShapeConflict) {
		t.Errorf("low err = %v", st.Report.Sources[1].Err)
	}
}

func TestLoadCancelled(t *testing.T) {
	f := &fakeFetcher{
		data:    map[string]string{"high": highJSON, "low": lowJSON},
		block:   make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	l := NewLoader(f, sources(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan State, 1)
	go func() { done <- l.Load(ctx) }()

	<-f.started
	cancel()

	st := <-done
	if st.Status != StatusError || !errors.Is(st.Err, ErrCancelled) {
		t.Fatalf("Status = %s err = %v", st.Status, st.Err)
	}
	if st.NoData() {
		t.Error("cancellation should not read as no data")
	}
}

func TestLoadIDsIncrease(t *testing.T) {
	f := &fakeFetcher{data: map[string]string{"high": highJSON}}
	l := NewLoader(f, sources(), Options{})

	a := l.Load(context.Background())
	b := l.Load(context.Background())
	if b.Report.LoadID <= a.Report.LoadID {
		t.Errorf("load IDs %d then %d", a.Report.LoadID, b.Report.LoadID)
	}
	if id := l.NextID(); id <= b.Report.LoadID {
		t.Errorf("NextID = %d after %d", id, b.Report.LoadID)
	}
}

func TestLoadIdempotent(t *testing.T) {
	f := &fakeFetcher{data: map[string]string{"high": highJSON, "low": lowJSON}}
	l := NewLoader(f, sources(), Options{})

	encode := func(st State) string {
		out, err := json.Marshal(st.Result)
		if err != nil {
			t.Fatal(err)
		}
		return string(out)
	}
	first := encode(l.Load(context.Background()))
	for i := 0; i < 3; i++ {
		if got := encode(l.Load(context.Background())); got != first {
			t.Fatalf("reload %d differs:\n%s\n%s", i, first, got)
		}
	}
}

func TestLoadConcurrencyLimit(t *testing.T) {
	f := &fakeFetcher{data: map[string]string{"high": highJSON, "low": lowJSON}}
	l := NewLoader(f, sources(), Options{MaxConcurrent: 1})
	if st := l.Load(context.Background()); st.Status != StatusReady {
		t.Fatalf("Status = %s err = %v", st.Status, st.Err)
	}
	if f.calls["high"] != 1 || f.calls["low"] != 1 {
		t.Errorf("calls = %v", f.calls)
	}
}

func TestLoadRecordsFetchLog(t *testing.T) {
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	events := otel.NewNullLogger()
	defer events.Close()

	f := &fakeFetcher{data: map[string]string{"high": highJSON}}
	l := NewLoader(f, sources(), Options{Recorder: s, Events: events, KeepLoads: 2})

	for i := 0; i < 3; i++ {
		l.Load(context.Background())
	}

	n, err := s.LoadCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("LoadCount = %d, want 2 after pruning", n)
	}

	loads, err := s.RecentLoads(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(loads) != 1 {
		t.Fatalf("RecentLoads = %d", len(loads))
	}
	rec := loads[0]
	if rec.Status != "ready" || rec.SessionID != events.SessionID() || len(rec.Fetches) != 2 {
		t.Errorf("record = %+v", rec)
	}
	if rec.Fetches[0].Shape != "grouped" || rec.Fetches[1].OK {
		t.Errorf("fetches = %+v", rec.Fetches)
	}
}

func TestRun(t *testing.T) {
	res, b := Run([]schema.Payload{{Source: "x", Tier: model.TierHigh, Data: []byte(highJSON)}})
	if res == nil || !b.Usable() {
		t.Fatal("expected a usable batch")
	}
	for _, m := range res.ByProduct[model.TierHigh][0].Comments {
		if !m.Tier.Valid() {
			t.Errorf("mention %s has no tier", m.Provenance.ID)
		}
	}

	if res, _ := Run(nil); res != nil {
		t.Error("Run(nil) should return a nil result")
	}
}
