package ingest

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Selector is a compound simple selector: an optional tag name followed by
// any number of .class, #id and [attr] / [attr="value"] conditions.
// Combinators are not supported.
type Selector struct {
	Tag     string
	ID      string
	Classes []string
	Attrs   []AttrCondition
}

// AttrCondition requires an attribute to be present and, when HasValue is
// set, to equal Value exactly.
type AttrCondition struct {
	Name     string
	Value    string
	HasValue bool
}

// ParseSelector parses selectors such as `div.message[data-role="user"]`.
func ParseSelector(input string) (Selector, error) {
	var sel Selector
	s := strings.TrimSpace(input)
	if s == "" {
		return sel, fmt.Errorf("empty selector")
	}

	i := 0
	if s[0] == '*' {
		i = 1
	} else {
		n := scanIdent(s)
		sel.Tag = strings.ToLower(s[:n])
		i = n
	}

	for i < len(s) {
		switch s[i] {
		case '.', '#':
			n := scanIdent(s[i+1:])
			if n == 0 {
				return sel, fmt.Errorf("selector %q: missing name at offset %d", input, i)
			}
			name := s[i+1 : i+1+n]
			if s[i] == '.' {
				sel.Classes = append(sel.Classes, name)
			} else {
				sel.ID = name
			}
			i += n + 1
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return sel, fmt.Errorf("selector %q: unterminated attribute condition", input)
			}
			cond, err := parseAttrCondition(s[i+1 : i+end])
			if err != nil {
				return sel, fmt.Errorf("selector %q: %w", input, err)
			}
			sel.Attrs = append(sel.Attrs, cond)
			i += end + 1
		default:
			return sel, fmt.Errorf("selector %q: unexpected %q at offset %d", input, s[i], i)
		}
	}

	return sel, nil
}

// MustParseSelector is like ParseSelector but panics on error. It is meant
// for package-level target tables.
func MustParseSelector(input string) Selector {
	sel, err := ParseSelector(input)
	if err != nil {
		panic(err)
	}
	return sel
}

func parseAttrCondition(body string) (AttrCondition, error) {
	name, value, hasValue := strings.Cut(body, "=")
	name = strings.TrimSpace(name)
	if name == "" || scanIdent(name) != len(name) {
		return AttrCondition{}, fmt.Errorf("invalid attribute name %q", name)
	}
	cond := AttrCondition{Name: strings.ToLower(name), HasValue: hasValue}
	if hasValue {
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		cond.Value = value
	}
	return cond, nil
}

func scanIdent(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '-' || c == '_' || c == ':' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			continue
		}
		return i
	}
	return len(s)
}

// Matches reports whether an element with the given tag and attributes
// satisfies every condition of the selector.
func (s Selector) Matches(tag string, attrs []html.Attribute) bool {
	if s.Tag != "" && s.Tag != tag {
		return false
	}
	if s.ID != "" {
		if v, ok := attrValue(attrs, "id"); !ok || v != s.ID {
			return false
		}
	}
	if len(s.Classes) > 0 {
		v, _ := attrValue(attrs, "class")
		have := strings.Fields(v)
		for _, want := range s.Classes {
			if !containsString(have, want) {
				return false
			}
		}
	}
	for _, cond := range s.Attrs {
		v, ok := attrValue(attrs, cond.Name)
		if !ok || cond.HasValue && v != cond.Value {
			return false
		}
	}
	return true
}

func attrValue(attrs []html.Attribute, name string) (string, bool) {
	for _, a := range attrs {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
