package model

import (
	"encoding/json"
	"strings"
)

// AttrValue is a single optional attribute: either one string or a list of
// strings. The zero value is an empty string.
type AttrValue struct {
	Str    string
	List   []string
	IsList bool
}

// StringAttr wraps a scalar attribute.
func StringAttr(s string) AttrValue {
	return AttrValue{Str: s}
}

// ListAttr wraps a list attribute. A nil list is stored as an empty one so
// that "present but empty" survives.
func ListAttr(items []string) AttrValue {
	if items == nil {
		items = []string{}
	}
	return AttrValue{List: items, IsList: true}
}

// String joins list values with ", ".
func (v AttrValue) String() string {
	if v.IsList {
		return strings.Join(v.List, ", ")
	}
	return v.Str
}

// Empty reports whether the value carries no text.
func (v AttrValue) Empty() bool {
	if v.IsList {
		return len(v.List) == 0
	}
	return v.Str == ""
}

// MarshalJSON emits the value in its original JSON form.
func (v AttrValue) MarshalJSON() ([]byte, error) {
	if v.IsList {
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Str)
}

// UnmarshalJSON accepts a string or an array of strings.
func (v *AttrValue) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = ListAttr(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = StringAttr(s)
	return nil
}

// Attributes is a sparse map of optional fields. A key is present only when
// the source supplied it.
type Attributes map[string]AttrValue

// Get returns the attribute and whether it was supplied.
func (a Attributes) Get(key string) (AttrValue, bool) {
	v, ok := a[key]
	return v, ok
}

// Provenance records where a mention came from.
type Provenance struct {
	ID        string `json:"id"`
	Author    string `json:"author,omitempty"`
	CreatedAt *int64 `json:"created_at,omitempty"` // epoch seconds
	Score     *int   `json:"score,omitempty"`
	ThreadURL string `json:"thread_url,omitempty"`
}

// Mention is one reported experience with a product.
//
// ProductKey is empty until the identity resolver runs and Tier is empty
// until the classifier runs; after the pipeline both are always set.
type Mention struct {
	ProductKey  string     `json:"product_key"`
	DisplayName string     `json:"display_name"`
	ProductType string     `json:"product_type,omitempty"`
	SourceType  SourceType `json:"source_type"`
	Tier        Tier       `json:"tier"`
	Score       *float64   `json:"confidence_score,omitempty"`
	Excerpt     *string    `json:"excerpt,omitempty"`
	Attributes  Attributes `json:"attributes,omitempty"`
	Provenance  Provenance `json:"provenance"`

	// Hint is the tier of the file or array the record was read from. It is
	// only consulted when Score is nil.
	Hint Tier `json:"-"`
}

// HasScore reports whether the mention carries an explicit confidence score.
func (m Mention) HasScore() bool {
	return m.Score != nil
}
