package ingest

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func TestParseSelector(t *testing.T) {
	sel, err := ParseSelector(`div.message.turn#main[data-role="user"][hidden]`)
	if err != nil {
		t.Fatalf("ParseSelector() error = %v", err)
	}
	if sel.Tag != "div" || sel.ID != "main" {
		t.Fatalf("unexpected tag/id: %+v", sel)
	}
	if len(sel.Classes) != 2 || sel.Classes[0] != "message" || sel.Classes[1] != "turn" {
		t.Fatalf("unexpected classes: %v", sel.Classes)
	}
	if len(sel.Attrs) != 2 {
		t.Fatalf("expected 2 attribute conditions, got %d", len(sel.Attrs))
	}
	if a := sel.Attrs[0]; a.Name != "data-role" || a.Value != "user" || !a.HasValue {
		t.Fatalf("unexpected first condition: %+v", a)
	}
	if a := sel.Attrs[1]; a.Name != "hidden" || a.HasValue {
		t.Fatalf("unexpected second condition: %+v", a)
	}
}

func TestParseSelectorErrors(t *testing.T) {
	for _, in := range []string{"", ".", "div[", "div > p", "[=x]"} {
		if _, err := ParseSelector(in); err == nil {
			t.Fatalf("ParseSelector(%q) expected error", in)
		}
	}
}

func TestSelectorMatches(t *testing.T) {
	sel := MustParseSelector(`div.message[data-role="user"]`)
	attrs := []html.Attribute{
		{Key: "class", Val: "turn message"},
		{Key: "data-role", Val: "user"},
	}
	if !sel.Matches("div", attrs) {
		t.Fatal("expected match")
	}
	if sel.Matches("span", attrs) {
		t.Fatal("tag mismatch should not match")
	}
	if sel.Matches("div", attrs[:1]) {
		t.Fatal("missing attribute should not match")
	}
}

func extractAll(t *testing.T, doc string, targets ...Target) *Result {
	t.Helper()
	res, err := NewExtractor(targets...).Extract(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	return res
}

func TestExtractLastMatchWins(t *testing.T) {
	doc := `<div data-message-author-role="user">first</div>
<div data-message-author-role="assistant">reply</div>
<div data-message-author-role="user">second</div>`

	res := extractAll(t, doc, exportTargets...)
	if len(res.Matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(res.Matches))
	}
	if v, _ := res.Value("user"); v != "second" {
		t.Fatalf("Value(user) = %q, want %q", v, "second")
	}
	if v, _ := res.Value("assistant"); v != "reply" {
		t.Fatalf("Value(assistant) = %q, want %q", v, "reply")
	}
	if _, ok := res.Value("missing"); ok {
		t.Fatal("Value(missing) should report false")
	}
}

func TestExtractNestedAndEntities(t *testing.T) {
	doc := `<div data-message-author-role="user"><div><p>2 &lt; 3 &amp;&amp; 4 &gt; 1</p></div> tail<br>end</div><div>outside</div>`

	res := extractAll(t, doc, exportTargets...)
	got, _ := res.Value("user")
	if got != "2 < 3 && 4 > 1 tailend" {
		t.Fatalf("Value(user) = %q", got)
	}
}

func TestExtractSkipsScriptText(t *testing.T) {
	doc := `<div data-message-author-role="assistant">a<script>steal()</script><style>p{}</style>b</div>`

	res := extractAll(t, doc, exportTargets...)
	if got, _ := res.Value("assistant"); got != "ab" {
		t.Fatalf("Value(assistant) = %q, want %q", got, "ab")
	}
}

func TestExtractUnterminated(t *testing.T) {
	res := extractAll(t, `<div data-message-author-role="user">partial text`, exportTargets...)
	if got, _ := res.Value("user"); got != "partial text" {
		t.Fatalf("Value(user) = %q, want %q", got, "partial text")
	}
}

func TestExtractAttributeTarget(t *testing.T) {
	target := Target{Name: "link", Selector: MustParseSelector("a.share"), Attr: "href"}
	res := extractAll(t, `<a class="share" href="/c/one">x</a><a href="/skip">y</a><a class="share" href="/c/two">z</a>`, target)

	if len(res.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(res.Matches))
	}
	if got, _ := res.Value("link"); got != "/c/two" {
		t.Fatalf("Value(link) = %q", got)
	}
}
