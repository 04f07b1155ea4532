package model

// Format records which cascade tier produced a ParseResult.
type Format string

const (
	FormatJSON         Format = "json"
	FormatHTMLRewriter Format = "htmlrewriter"
	FormatParsed       Format = "parsed"
	FormatFallback     Format = "fallback"
	FormatRaw          Format = "raw"
)

// ParseResult is the normalized form of a submitted transcript.
type ParseResult struct {
	Messages     []Message `json:"messages"`
	Format       Format    `json:"format"`
	MessageCount int       `json:"messageCount"`
	Error        string    `json:"error,omitempty"`
}

// NewParseResult builds a result whose MessageCount always matches its messages.
func NewParseResult(format Format, messages []Message) ParseResult {
	if messages == nil {
		messages = []Message{}
	}
	return ParseResult{
		Messages:     messages,
		Format:       format,
		MessageCount: len(messages),
	}
}
