package ingest

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	// reDangerousBlock matches executable or invisible blocks together with their content.
	reDangerousBlock = regexp.MustCompile(`(?is)<\s*(?:script|style|iframe|noscript)\b[^>]*>.*?<\s*/\s*(?:script|style|iframe|noscript)\s*>`)

	// reDangerousTag matches unpaired open or close tags of the same elements.
	reDangerousTag = regexp.MustCompile(`(?i)<\s*/?\s*(?:script|style|iframe|noscript)\b[^>]*>`)

	reLineBreak   = regexp.MustCompile(`(?i)<br\s*/?>`)
	reBlockClose  = regexp.MustCompile(`(?i)</(?:p|div|h[1-6]|blockquote|pre|section|article|header|footer|table|tr|ul|ol)\s*>`)
	reListItem    = regexp.MustCompile(`(?i)<li\b[^>]*>`)
	reAnyTag      = regexp.MustCompile(`</?[a-zA-Z!?][^<>]*>`)
	reOddSpace    = regexp.MustCompile(`[\f\v\x{00A0}]`)
	reInlineSpace = regexp.MustCompile(`[ \t]+`)
	reManyBreaks  = regexp.MustCompile(`\n{3,}`)
)

// entityReplacer decodes the fixed entity table used by Clean.
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", `"`,
	"&#39;", "'",
	"&#x27;", "'",
	"&apos;", "'",
	"&hellip;", "…",
	"&mdash;", "—",
	"&ndash;", "–",
)

var invisibleReplacer = strings.NewReplacer(
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\u2060", "",
	"\ufeff", "",
)

// Sanitize defangs markup that is going to be displayed again. Script,
// style, iframe and noscript elements are dropped together with their
// content, on* handlers and javascript: or vbscript: attribute values are
// removed, and every other tag is re-serialized with quoted attributes.
// The input is tokenized once, so the cost is linear in its length.
func Sanitize(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))

	z := html.NewTokenizer(strings.NewReader(input))
	skip := ""      // dangerous element whose content is being dropped
	rcdata := false // previous token opened a title or textarea

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// a tag cut off by the end of input is kept as text
			if skip == "" {
				b.WriteString(strings.ReplaceAll(string(z.Raw()), "<", "&lt;"))
			}
			break
		}

		if skip != "" {
			if tt == html.EndTagToken {
				if name, _ := z.TagName(); string(name) == skip {
					skip = ""
				}
			}
			continue
		}

		wasRCDATA := rcdata
		rcdata = false

		switch tt {
		case html.TextToken:
			if wasRCDATA {
				b.WriteString(html.EscapeString(string(z.Text())))
				continue
			}
			// a lone '<' stays text here but could pair with later text once
			// a dropped element closes the gap
			b.WriteString(strings.ReplaceAll(string(z.Raw()), "<", "&lt;"))

		case html.StartTagToken, html.SelfClosingTagToken:
			raw := string(z.Raw())
			name, hasAttr := z.TagName()
			tag := string(name)
			if dangerousElements[tag] {
				skip = tag
				continue
			}
			if !validName(tag) {
				b.WriteString(html.EscapeString(raw))
				continue
			}
			b.WriteByte('<')
			b.WriteString(tag)
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if !safeAttr(string(key), string(val)) {
					continue
				}
				b.WriteByte(' ')
				b.Write(key)
				b.WriteString(`="`)
				b.WriteString(html.EscapeString(string(val)))
				b.WriteByte('"')
			}
			if tt == html.SelfClosingTagToken {
				b.WriteString("/>")
			} else {
				b.WriteByte('>')
			}
			rcdata = tag == "title" || tag == "textarea"

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if dangerousElements[tag] {
				continue
			}
			if !validName(tag) {
				b.WriteString(html.EscapeString(string(z.Raw())))
				continue
			}
			b.WriteString("</")
			b.WriteString(tag)
			b.WriteByte('>')
		}
		// comments and doctypes are dropped
	}

	return b.String()
}

// dangerousElements are dropped with their content. Besides the executable
// and invisible ones this covers the remaining raw-text elements, whose
// content the tokenizer never parses.
var dangerousElements = map[string]bool{
	"script":    true,
	"style":     true,
	"iframe":    true,
	"noscript":  true,
	"noembed":   true,
	"noframes":  true,
	"xmp":       true,
	"plaintext": true,
}

func validName(name string) bool {
	if name == "" || name[0] < 'a' || name[0] > 'z' {
		return false
	}
	return scanIdent(name) == len(name)
}

// safeAttr rejects event handlers and script URLs. The value arrives with
// entities already decoded; browsers also skip whitespace and control
// characters inside a scheme, so those are removed before matching.
func safeAttr(key, val string) bool {
	if !validName(key) || strings.HasPrefix(key, "on") {
		return false
	}
	compact := strings.ToLower(strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return -1
		}
		return r
	}, val))
	return !strings.Contains(compact, "javascript:") && !strings.Contains(compact, "vbscript:")
}

// Clean reduces markup to flowed plain text. The result contains no tags
// and no entities from the decode table, and Clean(Clean(x)) == Clean(x).
func Clean(input string) string {
	if input == "" {
		return ""
	}

	s := invisibleReplacer.Replace(input)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = reOddSpace.ReplaceAllString(s, " ")

	s = removeDangerous(s)
	s = reLineBreak.ReplaceAllString(s, "\n")
	s = reBlockClose.ReplaceAllString(s, "\n\n")
	s = reListItem.ReplaceAllString(s, "\n• ")

	// decoding can surface new tags ("&lt;b&gt;"), so strip and decode until stable
	var stable bool
	s, stable = settle(s, maxCleanPasses, func(s string) string {
		s = removeDangerous(s)
		s = reAnyTag.ReplaceAllString(s, "")
		return entityReplacer.Replace(s)
	})
	if !stable {
		s = leftoverMarkup.Replace(s)
	}

	s = reInlineSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = reManyBreaks.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

func removeDangerous(s string) string {
	s = reDangerousBlock.ReplaceAllString(s, "")
	return reDangerousTag.ReplaceAllString(s, "")
}

// maxCleanPasses bounds the strip and decode loop. Real exports are at most
// double encoded; input still changing after this many passes is adversarial.
const maxCleanPasses = 8

// leftoverMarkup removes the characters any further pass could act on.
var leftoverMarkup = strings.NewReplacer("<", "", "&", "")

// settle applies pass until the output stops changing or limit passes ran.
// It reports whether the output was stable.
func settle(s string, limit int, pass func(string) string) (string, bool) {
	for i := 0; i < limit; i++ {
		next := pass(s)
		if next == s {
			return s, true
		}
		s = next
	}
	return s, false
}
