// Package identity maps product-name variants onto a stable merge key.
package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Key normalizes a display name into a product key: NFKC, control
// characters removed, whitespace collapsed to single spaces, full case
// folding. Equal keys mean the same product.
func Key(name string) string {
	s := norm.NFKC.String(name)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(s)
}

// Resolver hands out product keys and remembers the first label seen for
// each. It is not safe for concurrent use; build one per load cycle.
type Resolver struct {
	labels map[string]string
	order  []string
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{labels: make(map[string]string)}
}

// Resolve returns the key for name and the label chosen for that key. The
// first name to produce a key fixes its label; later variants get the
// existing one back.
func (r *Resolver) Resolve(name string) (key, label string) {
	key = Key(name)
	if existing, ok := r.labels[key]; ok {
		return key, existing
	}
	label = strings.TrimSpace(name)
	r.labels[key] = label
	r.order = append(r.order, key)
	return key, label
}

// Label returns the label recorded for key.
func (r *Resolver) Label(key string) (string, bool) {
	l, ok := r.labels[key]
	return l, ok
}

// Len returns the number of distinct keys seen.
func (r *Resolver) Len() int {
	return len(r.order)
}

// Keys returns the keys in first-seen order.
func (r *Resolver) Keys() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
