package model

// ProductAggregate is one product row: every mention that resolved to the
// same product key within a tier.
type ProductAggregate struct {
	ProductKey    string    `json:"product_key"`
	DisplayName   string    `json:"display_name"`
	ProductType   string    `json:"product_type,omitempty"`
	PostsCount    int       `json:"posts_count"`
	CommentsCount int       `json:"comments_count"`
	Posts         []Mention `json:"posts"`
	Comments      []Mention `json:"comments"`
}

// Empty reports whether the aggregate holds no mentions at all.
func (p ProductAggregate) Empty() bool {
	return len(p.Posts) == 0 && len(p.Comments) == 0
}

// ThreadGroup holds the mentions found in one source thread, split by tier.
type ThreadGroup struct {
	ThreadURL      string    `json:"thread_url"`
	ThreadTitle    string    `json:"thread_title"`
	HighConfidence []Mention `json:"high_confidence"`
	LowConfidence  []Mention `json:"low_confidence"`
}

// Len returns the number of mentions in the thread.
func (g ThreadGroup) Len() int {
	return len(g.HighConfidence) + len(g.LowConfidence)
}

// ResultKind says which half of an AggregateResult is populated.
type ResultKind string

const (
	ResultByProduct ResultKind = "by_product"
	ResultByThread  ResultKind = "by_thread"
)

// AggregateResult is the output of one load cycle.
type AggregateResult struct {
	Kind      ResultKind                  `json:"kind"`
	ByProduct map[Tier][]ProductAggregate `json:"by_product,omitempty"`
	ByThread  []ThreadGroup               `json:"by_thread,omitempty"`
}

// NewProductResult returns a by-product result with both tiers present.
func NewProductResult() *AggregateResult {
	byProduct := make(map[Tier][]ProductAggregate, 2)
	for _, t := range Tiers() {
		byProduct[t] = []ProductAggregate{}
	}
	return &AggregateResult{Kind: ResultByProduct, ByProduct: byProduct}
}

// MentionCount returns the total number of mentions in the result.
func (r *AggregateResult) MentionCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, aggs := range r.ByProduct {
		for _, a := range aggs {
			n += len(a.Posts) + len(a.Comments)
		}
	}
	for _, g := range r.ByThread {
		n += g.Len()
	}
	return n
}

// IsEmpty reports whether the result carries no mentions.
func (r *AggregateResult) IsEmpty() bool {
	return r.MentionCount() == 0
}
