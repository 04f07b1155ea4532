// Package ingest turns submitted chat transcripts into canonical message lists.
package ingest

import (
	"regexp"
	"strings"
)

var (
	// boundary tokens are learned from a Content-Type header or a closing
	// "--token--" line; only lines delimiting a learned token are removed
	reBoundaryParam   = regexp.MustCompile(`(?im)^[ \t]*content-type:[^\n]*?boundary=(?:"([^"\n]+)"|([^\s;"]+))`)
	reClosingBoundary = regexp.MustCompile(`(?m)^--(\S+)--[ \t]*$`)

	reMultipartHeader = regexp.MustCompile(`(?im)^[ \t]*(?:content-disposition|content-type|content-length):[^\n]*$`)
	reNameLine        = regexp.MustCompile(`(?m)^[ \t]*name="[^"\n]*"[ \t;]*$`)

	// three or more newlines, allowing whitespace-only lines in between
	reBlankRun = regexp.MustCompile(`\n(?:[ \t]*\n){2,}`)
)

// Normalize strips multipart/form transport artifacts that clients sometimes
// forward as part of the body. It is idempotent on clean input.
func Normalize(body string) string {
	if body == "" {
		return ""
	}

	s := strings.ReplaceAll(body, "\r\n", "\n")
	s = stripBoundaryLines(s, boundaryTokens(s))
	s = reMultipartHeader.ReplaceAllString(s, "")
	s = reNameLine.ReplaceAllString(s, "")
	s = reBlankRun.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

func boundaryTokens(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, m := range reBoundaryParam.FindAllStringSubmatch(s, -1) {
		tokens[m[1]+m[2]] = true
	}
	for _, m := range reClosingBoundary.FindAllStringSubmatch(s, -1) {
		tokens[m[1]] = true
	}
	for tok := range tokens {
		if !strings.ContainsFunc(tok, isAlnum) {
			// "------" is a markdown rule, not a delimiter
			delete(tokens, tok)
		}
	}
	return tokens
}

func isAlnum(r rune) bool {
	return r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

// stripBoundaryLines drops "--token" and "--token--" lines for known tokens.
func stripBoundaryLines(s string, tokens map[string]bool) string {
	if len(tokens) == 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if tok, ok := strings.CutPrefix(trimmed, "--"); ok {
			if tokens[tok] || tokens[strings.TrimSuffix(tok, "--")] {
				continue
			}
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
