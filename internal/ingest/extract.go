package ingest

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Target names one value to pull out of a document. With Attr empty the
// text inside every matching element is collected; otherwise the value of
// that attribute on the matching element.
type Target struct {
	Name     string
	Selector Selector
	Attr     string
}

// Match is one captured occurrence of a target.
type Match struct {
	Target string
	Value  string
}

// Result holds everything an Extractor captured, in document order.
type Result struct {
	Matches []Match
}

// Value returns the last captured value for a target. Earlier occurrences
// of the same target are shadowed, so a document with several user turns
// yields only the final one here; use Matches to see every occurrence.
func (r *Result) Value(name string) (string, bool) {
	for i := len(r.Matches) - 1; i >= 0; i-- {
		if r.Matches[i].Target == name {
			return r.Matches[i].Value, true
		}
	}
	return "", false
}

// minimalEntities is the only decoding applied to captured text.
var minimalEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#x27;", "'",
	"&#x2F;", "/",
)

// voidElements never have a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Extractor scans markup once, front to back, without building a tree.
type Extractor struct {
	targets []Target
}

// NewExtractor creates an extractor for the given targets.
func NewExtractor(targets ...Target) *Extractor {
	return &Extractor{targets: targets}
}

type capture struct {
	slot  int
	tag   string
	depth int
	text  strings.Builder
}

// Extract runs the scan. Malformed markup is tolerated; only read errors
// from r are returned.
func (e *Extractor) Extract(r io.Reader) (*Result, error) {
	res := &Result{}
	z := html.NewTokenizer(r)

	var open []*capture
	rawText := false

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			err := z.Err()
			// unterminated elements keep whatever text they gathered
			for _, c := range open {
				res.Matches[c.slot].Value = c.text.String()
			}
			if errors.Is(err, io.EOF) {
				return res, nil
			}
			return res, err

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			var attrs []html.Attribute
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				attrs = append(attrs, html.Attribute{Key: string(k), Val: string(v)})
			}

			container := tt == html.StartTagToken && !voidElements[tag]
			if container {
				for _, c := range open {
					if c.tag == tag {
						c.depth++
					}
				}
				rawText = tag == "script" || tag == "style"
			}

			for _, t := range e.targets {
				if !t.Selector.Matches(tag, attrs) {
					continue
				}
				if t.Attr != "" {
					if v, ok := attrValue(attrs, t.Attr); ok {
						res.Matches = append(res.Matches, Match{Target: t.Name, Value: v})
					}
					continue
				}
				res.Matches = append(res.Matches, Match{Target: t.Name})
				if container {
					open = append(open, &capture{slot: len(res.Matches) - 1, tag: tag, depth: 1})
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			rawText = false
			kept := open[:0]
			for _, c := range open {
				if c.tag == tag {
					c.depth--
				}
				if c.depth == 0 {
					res.Matches[c.slot].Value = c.text.String()
					continue
				}
				kept = append(kept, c)
			}
			open = kept

		case html.TextToken:
			if rawText || len(open) == 0 {
				continue
			}
			text := minimalEntities.Replace(string(z.Raw()))
			for _, c := range open {
				c.text.WriteString(text)
			}
		}
	}
}
