package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/abelbrown/mentions/internal/model"
)

// attrKeys are copied into Mention.Attributes when present and non-null.
var attrKeys = []string{
	model.AttrSkinType,
	model.AttrPriceSize,
	model.AttrEffects,
	model.AttrStatus,
	model.AttrAvailability,
	model.AttrPostTitle,
}

// excerptKeys lists free-text fields per source type, most specific first.
var excerptKeys = map[model.SourceType][]string{
	model.SourcePost:    {"post_selftext", "selftext", "content", "comment", "body", "effects"},
	model.SourceComment: {"comment", "comment_body", "body", "effects"},
}

type adapter struct {
	payload Payload
	out     Normalized
}

// recordCtx carries what a record inherits from where it sits in the payload.
type recordCtx struct {
	sourceType  model.SourceType
	outerKey    string // product name from the enclosing map, if any
	productType string
	hint        model.Tier
	threadURL   string
	path        string
}

func (a *adapter) drop(path, reason string) {
	a.out.Dropped = append(a.out.Dropped, &MalformedRecordError{
		Source: a.payload.Source,
		Path:   path,
		Reason: reason,
	})
}

func (a *adapter) checkCount(product string, rec record, field string, actual int) {
	declared, ok := rec.num(field)
	if !ok || int(declared) == actual {
		return
	}
	a.out.Mismatches = append(a.out.Mismatches, CountMismatch{
		Source:   a.payload.Source,
		Product:  product,
		Field:    field,
		Declared: int(declared),
		Actual:   actual,
	})
}

// grouped handles both product-keyed shapes. Comments-only payloads simply
// have no posts array.
func (a *adapter) grouped(members []member) {
	for _, m := range members {
		rec, _ := decodeRecord(m.Value)
		productType, _ := rec.nonBlank("product_type")
		posts := rec.array("posts")
		comments := rec.array("megathread_comments")

		a.checkCount(m.Key, rec, "posts_count", len(posts))
		a.checkCount(m.Key, rec, "comments_count", len(comments))

		for i, raw := range posts {
			a.addRecord(&a.out.Mentions, raw, recordCtx{
				sourceType:  model.SourcePost,
				outerKey:    m.Key,
				productType: productType,
				hint:        a.payload.Tier,
				path:        fmt.Sprintf("%s.posts[%d]", m.Key, i),
			})
		}
		for i, raw := range comments {
			a.addRecord(&a.out.Mentions, raw, recordCtx{
				sourceType:  model.SourceComment,
				outerKey:    m.Key,
				productType: productType,
				hint:        a.payload.Tier,
				path:        fmt.Sprintf("%s.megathread_comments[%d]", m.Key, i),
			})
		}
	}
}

// flat handles thread URL -> {high_confidence, low_confidence} and thread
// URL -> [records]. The thread key is never a product identity.
func (a *adapter) flat(members []member) {
	for _, m := range members {
		tm := ThreadMentions{URL: strings.TrimSpace(m.Key)}

		if kindOf(m.Value) == kindArray {
			elems, _ := decodeArray(m.Value)
			for i, raw := range elems {
				a.addRecord(&tm.Mentions, raw, recordCtx{
					sourceType: model.SourceComment,
					hint:       a.payload.Tier,
					threadURL:  tm.URL,
					path:       fmt.Sprintf("%s[%d]", m.Key, i),
				})
			}
		} else {
			rec, _ := decodeRecord(m.Value)
			for _, list := range []struct {
				key  string
				tier model.Tier
			}{
				{"high_confidence", model.TierHigh},
				{"low_confidence", model.TierLow},
			} {
				for i, raw := range rec.array(list.key) {
					a.addRecord(&tm.Mentions, raw, recordCtx{
						sourceType: model.SourceComment,
						hint:       list.tier,
						threadURL:  tm.URL,
						path:       fmt.Sprintf("%s#%s[%d]", m.Key, list.key, i),
					})
				}
			}
		}

		a.out.Threads = append(a.out.Threads, tm)
	}
}

func (a *adapter) scoredList(elems []json.RawMessage) {
	for i, raw := range elems {
		a.addRecord(&a.out.Mentions, raw, recordCtx{
			sourceType: model.SourceComment,
			hint:       a.payload.Tier,
			path:       fmt.Sprintf("[%d]", i),
		})
	}
}

// simple handles the oldest export: per product, posts carrying a title,
// body, URL and a list of plain comment strings.
func (a *adapter) simple(elems []json.RawMessage) {
	for i, raw := range elems {
		rec, _ := decodeRecord(raw)
		product, ok := rec.nonBlank("product", "product_name")
		if !ok {
			a.drop(fmt.Sprintf("[%d]", i), "no product identity")
			continue
		}
		product = strings.TrimSpace(product)

		for j, praw := range rec.array("posts") {
			path := fmt.Sprintf("%s.posts[%d]", product, j)
			post, ok := decodeRecord(praw)
			if !ok {
				a.drop(path, "record is not an object")
				continue
			}
			url, _ := post.nonBlank("url")

			m := model.Mention{
				DisplayName: product,
				SourceType:  model.SourcePost,
				Hint:        a.payload.Tier,
				Excerpt:     excerptOf(post, model.SourcePost),
				Provenance: model.Provenance{
					ID:        a.syntheticID(path),
					ThreadURL: url,
				},
			}
			if title, ok := post.str("title"); ok {
				m.Attributes = model.Attributes{model.AttrPostTitle: model.StringAttr(title)}
			}
			a.out.Mentions = append(a.out.Mentions, m)

			for k, craw := range post.array("comments") {
				cpath := fmt.Sprintf("%s.comments[%d]", path, k)
				var body string
				if kindOf(craw) != kindString || json.Unmarshal(craw, &body) != nil {
					a.drop(cpath, "comment is not a string")
					continue
				}
				a.out.Mentions = append(a.out.Mentions, model.Mention{
					DisplayName: product,
					SourceType:  model.SourceComment,
					Hint:        a.payload.Tier,
					Excerpt:     &body,
					Provenance: model.Provenance{
						ID:        a.syntheticID(cpath),
						ThreadURL: url,
					},
				})
			}
		}
	}
}

// addRecord converts one record and appends it to dst, or records why it
// was dropped.
func (a *adapter) addRecord(dst *[]model.Mention, raw json.RawMessage, ctx recordCtx) {
	rec, ok := decodeRecord(raw)
	if !ok {
		a.drop(ctx.path, "record is not an object")
		return
	}
	m, err := a.mention(rec, ctx)
	if err != nil {
		a.drop(ctx.path, err.Error())
		return
	}
	*dst = append(*dst, m)
}

func (a *adapter) mention(rec record, ctx recordCtx) (model.Mention, error) {
	name, ok := rec.nonBlank("matched_product", "product_name")
	if !ok {
		name = ctx.outerKey
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Mention{}, fmt.Errorf("no product identity")
	}

	m := model.Mention{
		DisplayName: name,
		SourceType:  ctx.sourceType,
		Hint:        ctx.hint,
		ProductType: ctx.productType,
		Excerpt:     excerptOf(rec, ctx.sourceType),
		Attributes:  attributesOf(rec),
	}
	if pt, ok := rec.nonBlank("product_type"); ok {
		m.ProductType = pt
	}

	if score, ok := rec.num("match_confidence"); ok {
		if score >= 0 && score <= 1 {
			m.Score = &score
		} else {
			a.out.InvalidScores++
		}
	}

	m.Provenance = a.provenanceOf(rec, ctx)
	return m, nil
}

// fieldKeys orders prefixed field names so the record's own source type
// wins: post_id before comment_id for posts and the reverse for comments.
func fieldKeys(st model.SourceType, suffix string) []string {
	if st == model.SourcePost {
		return []string{"post_" + suffix, "comment_" + suffix, suffix}
	}
	return []string{"comment_" + suffix, "post_" + suffix, suffix}
}

func (a *adapter) provenanceOf(rec record, ctx recordCtx) model.Provenance {
	var p model.Provenance

	if id, ok := rec.nonBlank(fieldKeys(ctx.sourceType, "id")...); ok {
		p.ID = id
	} else {
		p.ID = a.syntheticID(ctx.path)
	}
	if author, ok := rec.nonBlank(fieldKeys(ctx.sourceType, "author")...); ok {
		p.Author = author
	}
	if created, ok := rec.num(fieldKeys(ctx.sourceType, "created_utc")...); ok {
		secs := int64(math.Floor(created))
		p.CreatedAt = &secs
	}
	if score, ok := rec.num(fieldKeys(ctx.sourceType, "score")...); ok {
		n := int(math.Round(score))
		p.Score = &n
	}

	p.ThreadURL = ctx.threadURL
	if p.ThreadURL == "" {
		if u, ok := rec.nonBlank("post_url", "thread_url", "url"); ok {
			p.ThreadURL = u
		}
	}
	return p
}

// syntheticID derives a stable ID for records without one, so repeated
// loads of the same payload produce identical output.
func (a *adapter) syntheticID(path string) string {
	h := sha256.Sum256([]byte(a.payload.Source + "\x00" + path))
	return "syn-" + hex.EncodeToString(h[:8])
}

// excerptOf returns the first free-text field with content, falling back to
// a present-but-empty one. Absent everywhere yields nil.
func excerptOf(rec record, st model.SourceType) *string {
	keys := excerptKeys[st]
	if s, ok := rec.nonBlank(keys...); ok {
		return &s
	}
	if s, ok := rec.str(keys...); ok {
		return &s
	}
	return nil
}

// attributesOf copies the known optional fields. JSON null counts as absent;
// empty strings and empty lists are kept.
func attributesOf(rec record) model.Attributes {
	var attrs model.Attributes
	for _, key := range attrKeys {
		raw, ok := rec[key]
		if !ok {
			continue
		}
		var v model.AttrValue
		switch kindOf(raw) {
		case kindString:
			var s string
			if json.Unmarshal(raw, &s) != nil {
				continue
			}
			v = model.StringAttr(s)
		case kindArray:
			list, ok := stringList(raw)
			if !ok {
				continue
			}
			v = model.ListAttr(list)
		case kindNumber, kindBool:
			v = model.StringAttr(strings.TrimSpace(string(raw)))
		default:
			continue
		}
		if attrs == nil {
			attrs = make(model.Attributes)
		}
		attrs[key] = v
	}
	return attrs
}
