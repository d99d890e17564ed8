package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleLoad(loadID uint64, ok bool) LoadRecord {
	start := time.UnixMilli(1700000000000 + int64(loadID)*1000)
	rec := LoadRecord{
		SessionID: "abc",
		LoadID:    loadID,
		Started:   start,
		Finished:  start.Add(120 * time.Millisecond),
		Status:    "ready",
		Kind:      "by_product",
		Mentions:  12,
		Dropped:   1,
		Fetches: []FetchRecord{
			{Source: "high", Location: "scrapes/high.json", Tier: "high", OK: true, Bytes: 2048, Shape: "grouped", Dur: 15 * time.Millisecond},
			{Source: "low", Location: "https://example.com/low.json", Tier: "low", OK: ok, HTTPStatus: 404, Err: "HTTP 404", Dur: 5 * time.Millisecond},
		},
	}
	if ok {
		rec.Fetches[1].HTTPStatus = 0
		rec.Fetches[1].Err = ""
	}
	return rec
}

func TestOpenCreatesTables(t *testing.T) {
	st := openMem(t)
	for _, table := range []string{"loads", "fetches"} {
		var name string
		err := st.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}
}

func TestOpenFileCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mentions.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open(%q): %v", path, err)
	}
	defer st.Close()

	if _, err := st.RecordLoad(sampleLoad(1, true)); err != nil {
		t.Fatalf("RecordLoad: %v", err)
	}
}

func TestRecordAndReadLoads(t *testing.T) {
	st := openMem(t)

	if _, err := st.RecordLoad(sampleLoad(1, false)); err != nil {
		t.Fatalf("RecordLoad: %v", err)
	}
	id, err := st.RecordLoad(sampleLoad(2, true))
	if err != nil {
		t.Fatalf("RecordLoad: %v", err)
	}

	loads, err := st.RecentLoads(10)
	if err != nil {
		t.Fatalf("RecentLoads: %v", err)
	}
	if len(loads) != 2 {
		t.Fatalf("expected 2 loads, got %d", len(loads))
	}
	newest := loads[0]
	if newest.ID != id || newest.LoadID != 2 {
		t.Errorf("newest = %+v", newest)
	}
	if newest.Mentions != 12 || newest.Dropped != 1 || newest.Kind != "by_product" || newest.SessionID != "abc" {
		t.Errorf("newest fields = %+v", newest)
	}
	if !newest.Started.Equal(time.UnixMilli(1700000002000)) {
		t.Errorf("Started = %v", newest.Started)
	}
	if d := newest.Finished.Sub(newest.Started); d != 120*time.Millisecond {
		t.Errorf("duration = %v", d)
	}

	if len(newest.Fetches) != 2 {
		t.Fatalf("expected 2 fetches, got %d", len(newest.Fetches))
	}
	f := newest.Fetches[0]
	if f.Source != "high" || !f.OK || f.Bytes != 2048 || f.Shape != "grouped" || f.Dur != 15*time.Millisecond {
		t.Errorf("fetch = %+v", f)
	}

	older := loads[1].Fetches[1]
	if older.OK || older.HTTPStatus != 404 || older.Err != "HTTP 404" {
		t.Errorf("failed fetch = %+v", older)
	}
}

func TestRecentLoadsLimit(t *testing.T) {
	st := openMem(t)
	for i := uint64(1); i <= 5; i++ {
		if _, err := st.RecordLoad(sampleLoad(i, true)); err != nil {
			t.Fatal(err)
		}
	}
	loads, err := st.RecentLoads(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(loads) != 3 || loads[0].LoadID != 5 || loads[2].LoadID != 3 {
		t.Errorf("loads = %+v", loads)
	}
}

func TestSourceStats(t *testing.T) {
	st := openMem(t)
	st.RecordLoad(sampleLoad(1, false))
	st.RecordLoad(sampleLoad(2, false))
	st.RecordLoad(sampleLoad(3, true))

	stats, err := st.SourceStats()
	if err != nil {
		t.Fatalf("SourceStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(stats))
	}

	high, low := stats[0], stats[1]
	if high.Source != "high" || high.Attempts != 3 || high.Failures != 0 {
		t.Errorf("high = %+v", high)
	}
	if high.AvgDur != 15*time.Millisecond {
		t.Errorf("high.AvgDur = %v", high.AvgDur)
	}
	if low.Source != "low" || low.Attempts != 3 || low.Failures != 2 {
		t.Errorf("low = %+v", low)
	}
	wantLastOK := sampleLoad(3, true).Finished
	if !low.LastOK.Equal(wantLastOK) {
		t.Errorf("low.LastOK = %v, want %v", low.LastOK, wantLastOK)
	}
}

func TestSourceStatsNeverOK(t *testing.T) {
	st := openMem(t)
	st.RecordLoad(sampleLoad(1, false))

	stats, err := st.SourceStats()
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range stats {
		if s.Source == "low" && !s.LastOK.IsZero() {
			t.Errorf("LastOK should be zero, got %v", s.LastOK)
		}
	}
}

func TestPrune(t *testing.T) {
	st := openMem(t)
	for i := uint64(1); i <= 6; i++ {
		st.RecordLoad(sampleLoad(i, true))
	}

	n, err := st.Prune(2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 4 {
		t.Errorf("pruned %d loads, want 4", n)
	}
	count, _ := st.LoadCount()
	if count != 2 {
		t.Errorf("LoadCount = %d", count)
	}

	var fetches int
	st.db.QueryRow("SELECT COUNT(*) FROM fetches").Scan(&fetches)
	if fetches != 4 {
		t.Errorf("expected 4 fetch rows left, got %d", fetches)
	}
}

func TestConcurrentRecord(t *testing.T) {
	st := openMem(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := st.RecordLoad(sampleLoad(uint64(i+1), true)); err != nil {
				t.Errorf("RecordLoad: %v", err)
			}
		}(i)
	}
	wg.Wait()

	count, err := st.LoadCount()
	if err != nil || count != 10 {
		t.Errorf("LoadCount = %d, %v", count, err)
	}
}
