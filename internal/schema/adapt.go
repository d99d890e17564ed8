// Package schema detects which export shape a raw payload has and converts
// it into canonical model.Mention values.
//
// The adapter is the only place that knows about wire field names. It is
// pure: no I/O, no logging, no shared state between calls.
package schema

import "github.com/abelbrown/mentions/internal/model"

// Payload is one raw export as delivered by the fetch collaborator.
// Tier is the tier implied by which file the payload is (the source hint);
// it is consulted only for records without a numeric score.
type Payload struct {
	Source string
	Tier   model.Tier
	Data   []byte
}

// ThreadMentions holds the mentions read from one thread key of a flat
// export, in document order. Classification decides which tier list of the
// final ThreadGroup each mention lands in.
type ThreadMentions struct {
	URL      string
	Mentions []model.Mention
}

// CountMismatch records an upstream *_count field that disagrees with the
// number of records actually present.
type CountMismatch struct {
	Source   string
	Product  string
	Field    string
	Declared int
	Actual   int
}

// Normalized is the adapter output for a single payload.
type Normalized struct {
	Source        string
	Shape         Shape
	Mentions      []model.Mention
	Threads       []ThreadMentions
	Dropped       []*MalformedRecordError
	Mismatches    []CountMismatch
	InvalidScores int
}

// Adapt detects the shape of p and normalizes it.
func Adapt(p Payload) (Normalized, error) {
	doc, err := parse(p.Source, p.Data)
	if err != nil {
		return Normalized{Source: p.Source}, err
	}

	a := &adapter{
		payload: p,
		out:     Normalized{Source: p.Source, Shape: doc.shape},
	}
	switch doc.shape {
	case ShapeGrouped, ShapeCommentsOnly:
		a.grouped(doc.members)
	case ShapeFlatScored:
		a.flat(doc.members)
	case ShapeScoredList:
		a.scoredList(doc.elems)
	case ShapeSimple:
		a.simple(doc.elems)
	}
	return a.out, nil
}

// Batch is the combined output of Normalize.
type Batch struct {
	Kind     model.ResultKind
	Mentions []model.Mention
	Threads  []ThreadMentions
	Accepted []Normalized
	Rejected []error // *UnrecognizedSchemaError or *ShapeConflictError
}

// Usable reports whether at least one payload was accepted.
func (b Batch) Usable() bool {
	return len(b.Accepted) > 0
}

// Normalize adapts every payload in order. The first payload with a
// non-empty shape fixes the result family; later payloads from the other
// family are rejected with *ShapeConflictError.
func Normalize(payloads []Payload) Batch {
	var b Batch
	for _, p := range payloads {
		n, err := Adapt(p)
		if err != nil {
			b.Rejected = append(b.Rejected, err)
			continue
		}
		if fam := n.Shape.Family(); fam != "" {
			if b.Kind == "" {
				b.Kind = fam
			} else if fam != b.Kind {
				b.Rejected = append(b.Rejected, &ShapeConflictError{Source: p.Source, Shape: n.Shape, Want: b.Kind})
				continue
			}
		}
		b.Accepted = append(b.Accepted, n)
		b.Mentions = append(b.Mentions, n.Mentions...)
		b.Threads = append(b.Threads, n.Threads...)
	}
	if b.Kind == "" {
		b.Kind = model.ResultByProduct
	}
	return b
}
