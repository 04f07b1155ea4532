package ingest

import (
	"regexp"
	"strings"

	"github.com/capitalize-ai/chatshare/internal/model"
)

// rawMatch is one pattern hit: an optional role label and the message body.
// When label is empty the role is inferred from whole.
type rawMatch struct {
	label string
	body  string
	whole string
}

// fallbackPattern finds messages in loosely structured input.
type fallbackPattern struct {
	name string
	find func(input string) []rawMatch
}

var (
	reAuthorRoleDiv = regexp.MustCompile(`(?is)<div[^>]*\bdata-message-author-role\s*=\s*["']?(user|assistant|system|tool)["']?[^>]*>(.*?)</div>`)
	reMessageDiv    = regexp.MustCompile(`(?is)<div[^>]*\bclass\s*=\s*["'][^"']*message[^"']*["'][^>]*>(.*?)</div>`)
	reRoleLabel     = regexp.MustCompile(`(?im)^[ \t]*(User|Human|Assistant|AI)[ \t]*:[ \t]*`)
)

// fallbackPatterns are tried in order; the first one with any match wins.
var fallbackPatterns = []fallbackPattern{
	{name: "author-role-div", find: regexpFinder(reAuthorRoleDiv)},
	{name: "message-div", find: regexpFinder(reMessageDiv)},
	{name: "role-label", find: findRoleLabels},
}

// regexpFinder adapts a pattern with either one capture group (the body) or
// two (role label, body).
func regexpFinder(re *regexp.Regexp) func(string) []rawMatch {
	return func(input string) []rawMatch {
		var out []rawMatch
		for _, m := range re.FindAllStringSubmatch(input, -1) {
			rm := rawMatch{whole: m[0]}
			switch len(m) {
			case 3:
				rm.label, rm.body = m[1], m[2]
			case 2:
				rm.body = m[1]
			}
			out = append(out, rm)
		}
		return out
	}
}

// findRoleLabels splits input at line-anchored "Role:" labels. Each body
// runs to the next label or the end of the input.
func findRoleLabels(input string) []rawMatch {
	locs := reRoleLabel.FindAllStringSubmatchIndex(input, -1)
	out := make([]rawMatch, 0, len(locs))
	for i, loc := range locs {
		end := len(input)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, rawMatch{
			label: input[loc[2]:loc[3]],
			body:  input[loc[1]:end],
			whole: input[loc[0]:end],
		})
	}
	return out
}

// extractFallback runs the pattern cascade. It reports false when no
// pattern matched or every matched body was empty after cleaning.
func extractFallback(input string) ([]model.Message, bool) {
	for _, p := range fallbackPatterns {
		matches := p.find(input)
		if len(matches) == 0 {
			continue
		}

		messages := make([]model.Message, 0, len(matches))
		for _, m := range matches {
			content := Clean(m.body)
			if content == "" {
				continue
			}
			label := m.label
			if label == "" {
				label = m.whole
			}
			messages = append(messages, model.Message{
				Role:    model.RoleFromLabel(strings.TrimSpace(label)),
				Content: content,
			})
		}
		return messages, len(messages) > 0
	}
	return nil, false
}
