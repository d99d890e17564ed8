package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// member is one key/value pair of a JSON object, in document order.
type member struct {
	Key   string
	Value json.RawMessage
}

// record is a decoded JSON object whose values are decoded lazily.
type record map[string]json.RawMessage

// jsonKind classifies a raw JSON value by its first byte.
type jsonKind int

const (
	kindInvalid jsonKind = iota
	kindNull
	kindObject
	kindArray
	kindString
	kindNumber
	kindBool
)

func kindOf(raw json.RawMessage) jsonKind {
	b := bytes.TrimLeft(raw, " \t\r\n")
	if len(b) == 0 {
		return kindInvalid
	}
	switch b[0] {
	case '{':
		return kindObject
	case '[':
		return kindArray
	case '"':
		return kindString
	case 'n':
		return kindNull
	case 't', 'f':
		return kindBool
	default:
		return kindNumber
	}
}

// decodeObject decodes a JSON object preserving member order.
func decodeObject(raw []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("not a JSON object")
	}

	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
		members = append(members, member{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON object")
	}
	return members, nil
}

// decodeArray decodes a JSON array into its raw elements.
func decodeArray(raw []byte) ([]json.RawMessage, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}
	return elems, nil
}

// decodeRecord decodes an object for field lookup. Order is not needed.
func decodeRecord(raw json.RawMessage) (record, bool) {
	if kindOf(raw) != kindObject {
		return nil, false
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false
	}
	return rec, true
}

// has reports whether key is present with a value of the given kind.
func (r record) has(key string, kind jsonKind) bool {
	v, ok := r[key]
	return ok && kindOf(v) == kind
}

// keys returns the record's keys sorted.
func (r record) keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// str returns the first of keys holding a non-null string. Numbers are
// returned as their literal so numeric IDs survive.
func (r record) str(keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		switch kindOf(v) {
		case kindString:
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				return s, true
			}
		case kindNumber:
			return strings.TrimSpace(string(v)), true
		}
	}
	return "", false
}

// nonBlank is str restricted to values with non-whitespace content.
func (r record) nonBlank(keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := r.str(k); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// num returns the first of keys holding a number or a numeric string.
func (r record) num(keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		var lit string
		switch kindOf(v) {
		case kindNumber:
			lit = strings.TrimSpace(string(v))
		case kindString:
			if err := json.Unmarshal(v, &lit); err != nil {
				continue
			}
		default:
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(lit), 64)
		if err != nil {
			continue
		}
		return f, true
	}
	return 0, false
}

// array returns the raw elements of key, or nil when absent, null or not an
// array.
func (r record) array(key string) []json.RawMessage {
	v, ok := r[key]
	if !ok || kindOf(v) != kindArray {
		return nil
	}
	elems, err := decodeArray(v)
	if err != nil {
		return nil
	}
	return elems
}

// stringList returns the string elements of an array value, skipping nulls.
func stringList(raw json.RawMessage) ([]string, bool) {
	var items []*string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, true
}
