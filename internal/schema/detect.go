package schema

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/abelbrown/mentions/internal/model"
)

// Shape is the closed set of export layouts the adapter understands.
// Detection happens once per payload; nothing downstream inspects raw JSON.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeEmpty is "{}" or "[]": a valid export with nothing in it.
	ShapeEmpty
	// ShapeGrouped maps product -> {posts, megathread_comments, *_count}.
	ShapeGrouped
	// ShapeCommentsOnly maps product -> {megathread_comments, comments_count}.
	ShapeCommentsOnly
	// ShapeFlatScored maps thread URL -> {high_confidence, low_confidence}
	// or thread URL -> [scored records].
	ShapeFlatScored
	// ShapeScoredList is a bare array of scored records.
	ShapeScoredList
	// ShapeSimple is the array of {product, posts:[{title, content, url, comments}]}.
	ShapeSimple
)

var shapeNames = [...]string{
	ShapeUnknown:      "unknown",
	ShapeEmpty:        "empty",
	ShapeGrouped:      "grouped",
	ShapeCommentsOnly: "comments_only",
	ShapeFlatScored:   "flat_scored",
	ShapeScoredList:   "scored_list",
	ShapeSimple:       "simple",
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "unknown"
}

// Family returns the result kind a shape aggregates into. Empty and unknown
// shapes belong to no family.
func (s Shape) Family() model.ResultKind {
	switch s {
	case ShapeFlatScored:
		return model.ResultByThread
	case ShapeGrouped, ShapeCommentsOnly, ShapeScoredList, ShapeSimple:
		return model.ResultByProduct
	}
	return ""
}

// document is a parsed payload together with its detected shape.
type document struct {
	shape   Shape
	members []member          // object shapes
	elems   []json.RawMessage // array shapes
}

var utf8BOM = []byte("\xef\xbb\xbf")

// Detect reports the shape of a raw payload. Payloads matching no known
// shape fail with *UnrecognizedSchemaError.
func Detect(source string, data []byte) (Shape, error) {
	doc, err := parse(source, data)
	return doc.shape, err
}

func parse(source string, data []byte) (document, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))

	switch kindOf(trimmed) {
	case kindObject:
		members, err := decodeObject(trimmed)
		if err != nil {
			return document{}, newUnrecognized(source, nil, false, "invalid JSON: "+err.Error())
		}
		return detectObject(source, members)
	case kindArray:
		elems, err := decodeArray(trimmed)
		if err != nil {
			return document{}, newUnrecognized(source, nil, true, "invalid JSON: "+err.Error())
		}
		return detectArray(source, elems)
	}
	return document{}, newUnrecognized(source, nil, false, "payload is not a JSON object or array")
}

// detectObject tries the object shapes in order: grouped, comments-only,
// flat scored. Every member must match for a shape to be chosen.
func detectObject(source string, members []member) (document, error) {
	doc := document{members: members}
	if len(members) == 0 {
		doc.shape = ShapeEmpty
		return doc, nil
	}

	grouped, commentsOnly, flat := true, true, true
	anyPosts := false

	for _, m := range members {
		switch kindOf(m.Value) {
		case kindObject:
			rec, _ := decodeRecord(m.Value)
			posts := rec.has("posts", kindArray)
			comments := rec.has("megathread_comments", kindArray)
			if posts {
				anyPosts = true
			}
			if !posts && !comments {
				grouped = false
			}
			if posts || !comments {
				commentsOnly = false
			}
			if !rec.has("high_confidence", kindArray) && !rec.has("low_confidence", kindArray) {
				flat = false
			}
		case kindArray:
			grouped, commentsOnly = false, false
			if !allScored(m.Value) {
				flat = false
			}
		default:
			grouped, commentsOnly, flat = false, false, false
		}
	}

	switch {
	case grouped && anyPosts:
		doc.shape = ShapeGrouped
	case commentsOnly:
		doc.shape = ShapeCommentsOnly
	case flat:
		doc.shape = ShapeFlatScored
	default:
		keys := make([]string, len(members))
		for i, m := range members {
			keys[i] = m.Key
		}
		return document{}, newUnrecognized(source, keys, false, "")
	}
	return doc, nil
}

// detectArray tries the array shapes: scored list, then simple.
func detectArray(source string, elems []json.RawMessage) (document, error) {
	doc := document{elems: elems}
	if len(elems) == 0 {
		doc.shape = ShapeEmpty
		return doc, nil
	}

	scored, simple := true, true
	seen := make(map[string]bool)

	for _, e := range elems {
		rec, ok := decodeRecord(e)
		if !ok {
			scored, simple = false, false
			continue
		}
		for k := range rec {
			seen[k] = true
		}
		if _, ok := rec["match_confidence"]; !ok {
			scored = false
		}
		if !rec.has("posts", kindArray) {
			simple = false
		}
	}

	switch {
	case scored:
		doc.shape = ShapeScoredList
	case simple:
		doc.shape = ShapeSimple
	default:
		keys := make([]string, 0, len(seen))
		for k := range seen {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return document{}, newUnrecognized(source, keys, true, "")
	}
	return doc, nil
}

// allScored reports whether every element of an array is an object carrying
// match_confidence. An empty array qualifies.
func allScored(raw json.RawMessage) bool {
	elems, err := decodeArray(raw)
	if err != nil {
		return false
	}
	for _, e := range elems {
		rec, ok := decodeRecord(e)
		if !ok {
			return false
		}
		if _, ok := rec["match_confidence"]; !ok {
			return false
		}
	}
	return true
}
