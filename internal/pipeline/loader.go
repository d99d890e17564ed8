package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/mentions/internal/aggregate"
	"github.com/abelbrown/mentions/internal/classify"
	"github.com/abelbrown/mentions/internal/fetch"
	"github.com/abelbrown/mentions/internal/identity"
	"github.com/abelbrown/mentions/internal/logging"
	"github.com/abelbrown/mentions/internal/model"
	"github.com/abelbrown/mentions/internal/otel"
	"github.com/abelbrown/mentions/internal/schema"
	"github.com/abelbrown/mentions/internal/store"
)

const comp = "pipeline"

// Fetcher is the part of fetch.Fetcher the loader needs.
type Fetcher interface {
	Fetch(ctx context.Context, src fetch.Source) ([]byte, error)
}

// Recorder persists load summaries. *store.Store implements it.
type Recorder interface {
	RecordLoad(rec store.LoadRecord) (int64, error)
	Prune(keep int) (int64, error)
}

// Options tune a Loader. Zero values are usable.
type Options struct {
	Timeout       time.Duration // per source; 0 means 30s
	MaxConcurrent int           // 0 means one goroutine per source
	Events        *otel.Logger  // nil disables events
	Recorder      Recorder      // nil disables the fetch log
	KeepLoads     int           // loads kept by the fetch log; 0 keeps all
}

// Loader runs load cycles against a fixed set of sources.
type Loader struct {
	fetcher Fetcher
	sources []fetch.Source
	opts    Options
	seq     atomic.Uint64
}

// NewLoader creates a Loader. The sources slice is copied.
func NewLoader(f Fetcher, sources []fetch.Source, opts Options) *Loader {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	srcs := make([]fetch.Source, len(sources))
	copy(srcs, sources)
	return &Loader{fetcher: f, sources: srcs, opts: opts}
}

// Sources returns the configured sources.
func (l *Loader) Sources() []fetch.Source {
	out := make([]fetch.Source, len(l.sources))
	copy(out, l.sources)
	return out
}

// NextID reserves the sequence number for the next load. The UI calls it
// before starting a load so it can drop results from older ones.
func (l *Loader) NextID() uint64 {
	return l.seq.Add(1)
}

// Load runs a cycle with a freshly reserved ID.
func (l *Loader) Load(ctx context.Context) State {
	return l.LoadID(ctx, l.NextID())
}

// fetched is the outcome of one source fetch.
type fetched struct {
	data []byte
	err  error
	dur  time.Duration
}

// LoadID runs a full cycle tagged with id. It waits for every source before
// normalizing; a source that fails counts as empty as long as one other
// source arrived.
func (l *Loader) LoadID(ctx context.Context, id uint64) State {
	rep := Report{LoadID: id, Started: time.Now()}
	l.emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindLoadStart, LoadID: id, Count: len(l.sources)})

	results := l.fetchAll(ctx, id)

	if ctx.Err() != nil {
		return l.finish(&rep, nil, ErrCancelled)
	}

	var payloads []schema.Payload
	for i, src := range l.sources {
		r := results[i]
		sr := SourceReport{
			Name:     src.Name,
			Location: src.Location,
			Tier:     src.Tier,
			OK:       r.err == nil,
			Bytes:    len(r.data),
			Dur:      r.dur,
			Err:      r.err,
		}
		var pe *fetch.PayloadUnavailableError
		if errors.As(r.err, &pe) {
			sr.HTTPStatus = pe.Status
		}
		rep.Sources = append(rep.Sources, sr)
		if r.err == nil {
			payloads = append(payloads, schema.Payload{Source: src.Name, Tier: src.Tier, Data: r.data})
		}
	}
	if len(payloads) == 0 {
		return l.finish(&rep, nil, fmt.Errorf("%w: none of %d sources could be fetched", ErrNoData, len(l.sources)))
	}

	res, batch := Run(payloads)
	l.annotate(&rep, batch)

	if !batch.Usable() {
		err := fmt.Errorf("%w: no source had a recognized format", ErrNoData)
		if len(batch.Rejected) > 0 {
			err = fmt.Errorf("%w: %w", ErrNoData, batch.Rejected[0])
		}
		return l.finish(&rep, nil, err)
	}

	// Aggregation is synchronous; a cancel that landed meanwhile still wins.
	if ctx.Err() != nil {
		return l.finish(&rep, nil, ErrCancelled)
	}
	return l.finish(&rep, res, nil)
}

func (l *Loader) fetchAll(ctx context.Context, id uint64) []fetched {
	results := make([]fetched, len(l.sources))

	var g errgroup.Group
	if l.opts.MaxConcurrent > 0 {
		g.SetLimit(l.opts.MaxConcurrent)
	}
	for i, src := range l.sources {
		i, src := i, src
		g.Go(func() error {
			results[i] = l.fetchOne(ctx, id, src)
			return nil // failures are reported per source
		})
	}
	_ = g.Wait()
	return results
}

func (l *Loader) fetchOne(ctx context.Context, id uint64, src fetch.Source) fetched {
	if ctx.Err() != nil {
		return fetched{err: &fetch.PayloadUnavailableError{Source: src.Name, Err: ctx.Err()}}
	}
	fctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	l.emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindFetchStart, LoadID: id, Source: src.Name})
	start := time.Now()
	data, err := l.fetcher.Fetch(fctx, src)
	dur := time.Since(start)

	if err != nil {
		logging.Warn("fetch failed", "source", src.Name, "location", src.Location, "err", err)
		l.emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindFetchError, LoadID: id, Source: src.Name, Dur: dur, Err: err.Error()})
		return fetched{err: err, dur: dur}
	}
	l.emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFetchComplete, LoadID: id, Source: src.Name, Dur: dur, Count: len(data)})
	return fetched{data: data, dur: dur}
}

// annotate copies per-payload diagnostics from the batch into the report.
func (l *Loader) annotate(rep *Report, b schema.Batch) {
	byName := make(map[string]*SourceReport, len(rep.Sources))
	for i := range rep.Sources {
		byName[rep.Sources[i].Name] = &rep.Sources[i]
	}

	for _, n := range b.Accepted {
		sr := byName[n.Source]
		if sr == nil {
			continue
		}
		sr.Shape = n.Shape
		sr.Mentions = len(n.Mentions)
		for _, th := range n.Threads {
			sr.Mentions += len(th.Mentions)
		}
		sr.Dropped = len(n.Dropped)
		sr.Mismatches = len(n.Mismatches)
		sr.InvalidScores = n.InvalidScores

		l.emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindSchemaDetect, LoadID: rep.LoadID, Source: n.Source, Shape: n.Shape.String(), Count: sr.Mentions})
		if sr.Dropped > 0 {
			logging.Warn("dropped malformed records", "source", n.Source, "count", sr.Dropped, "first", n.Dropped[0].Path)
			l.emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindRecordDropped, LoadID: rep.LoadID, Source: n.Source, Count: sr.Dropped, Msg: n.Dropped[0].Reason})
		}
		for _, mm := range n.Mismatches {
			logging.Debug("count mismatch corrected", "source", mm.Source, "product", mm.Product, "field", mm.Field, "declared", mm.Declared, "actual", mm.Actual)
		}
		if sr.Mismatches > 0 {
			l.emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindCountMismatch, LoadID: rep.LoadID, Source: n.Source, Count: sr.Mismatches})
		}
		rep.Dropped = append(rep.Dropped, n.Dropped...)
		rep.Mismatches = append(rep.Mismatches, n.Mismatches...)
	}

	for _, err := range b.Rejected {
		var (
			ue     *schema.UnrecognizedSchemaError
			ce     *schema.ShapeConflictError
			sr     *SourceReport
			source string
		)
		kind := otel.KindSchemaUnrecognized
		switch {
		case errors.As(err, &ue):
			source = ue.Source
		case errors.As(err, &ce):
			source = ce.Source
			sr = byName[source]
			kind = otel.KindSchemaConflict
			if sr != nil {
				sr.Shape = ce.Shape
			}
		}
		if sr == nil {
			sr = byName[source]
		}
		if sr != nil {
			sr.Err = err
		}
		logging.Warn("payload rejected", "source", source, "err", err)
		l.emit(otel.Event{Level: otel.LevelWarn, Kind: kind, LoadID: rep.LoadID, Source: source, Err: err.Error()})
	}

	rep.Kind = b.Kind
}

// finish builds the final State, emits the closing event and writes the
// fetch log.
func (l *Loader) finish(rep *Report, res *model.AggregateResult, err error) State {
	rep.Finished = time.Now()
	st := State{Report: *rep}

	switch {
	case errors.Is(err, ErrCancelled):
		st.Status, st.Err = StatusError, err
		logging.Debug("load cancelled", "load", rep.LoadID)
		l.emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindLoadCancel, LoadID: rep.LoadID, Dur: rep.Duration()})
	case err != nil:
		st.Status, st.Err = StatusError, err
		logging.Error("load failed", "load", rep.LoadID, "err", err)
		l.emit(otel.Event{Level: otel.LevelError, Kind: otel.KindLoadError, LoadID: rep.LoadID, Dur: rep.Duration(), Err: err.Error()})
	default:
		st.Status, st.Result = StatusReady, res
		st.Report.Mentions = res.MentionCount()
		logging.Info("load complete", "load", rep.LoadID, "kind", res.Kind, "mentions", st.Report.Mentions,
			"fetched", rep.Fetched(), "sources", len(rep.Sources), "dur", rep.Duration())
		l.emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindLoadComplete, LoadID: rep.LoadID, Dur: rep.Duration(), Count: st.Report.Mentions})
	}

	l.record(st)
	return st
}

func (l *Loader) record(st State) {
	if l.opts.Recorder == nil {
		return
	}
	rep := st.Report
	rec := store.LoadRecord{
		LoadID:     rep.LoadID,
		Started:    rep.Started,
		Finished:   rep.Finished,
		Status:     string(st.Status),
		Kind:       string(rep.Kind),
		Mentions:   rep.Mentions,
		Dropped:    len(rep.Dropped),
		Mismatches: len(rep.Mismatches),
		Err:        otel.ErrString(st.Err),
	}
	if errors.Is(st.Err, ErrCancelled) {
		rec.Status = "cancelled"
	}
	if l.opts.Events != nil {
		rec.SessionID = l.opts.Events.SessionID()
	}
	for _, s := range rep.Sources {
		f := store.FetchRecord{
			Source:     s.Name,
			Location:   s.Location,
			Tier:       string(s.Tier),
			OK:         s.OK,
			Bytes:      s.Bytes,
			HTTPStatus: s.HTTPStatus,
			Err:        otel.ErrString(s.Err),
			Dur:        s.Dur,
		}
		if s.Shape != schema.ShapeUnknown {
			f.Shape = s.Shape.String()
		}
		rec.Fetches = append(rec.Fetches, f)
	}

	if _, err := l.opts.Recorder.RecordLoad(rec); err != nil {
		logging.Error("record load", "err", err)
		l.emit(otel.Event{Level: otel.LevelError, Kind: otel.KindStoreError, LoadID: rep.LoadID, Err: err.Error()})
		return
	}
	if l.opts.KeepLoads > 0 {
		if _, err := l.opts.Recorder.Prune(l.opts.KeepLoads); err != nil {
			logging.Warn("prune fetch log", "err", err)
		}
	}
}

func (l *Loader) emit(e otel.Event) {
	if l.opts.Events == nil {
		return
	}
	e.Comp = comp
	l.opts.Events.Emit(e)
}

// Run is the pure engine: normalize, classify, resolve and aggregate. It
// returns nil when no payload was usable.
func Run(payloads []schema.Payload) (*model.AggregateResult, schema.Batch) {
	b := schema.Normalize(payloads)
	if !b.Usable() {
		return nil, b
	}

	b.Mentions = classify.All(b.Mentions)
	for i := range b.Threads {
		b.Threads[i].Mentions = classify.All(b.Threads[i].Mentions)
	}
	return aggregate.Build(b, identity.NewResolver()), b
}
