package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chatshare/internal/model"
	"github.com/capitalize-ai/chatshare/pkg/logger"
)

// errNoStructure is reported on results produced by the blob fallback.
const errNoStructure = "no conversation structure recognized"

// structuredMarkers gate the structured tier: without one of them the
// input cannot be a chat export page.
var structuredMarkers = []string{"data-message-author-role", "message-content"}

// exportTargets describe the known chat-export markup.
var exportTargets = []Target{
	{Name: string(model.RoleUser), Selector: MustParseSelector(`[data-message-author-role="user"]`)},
	{Name: string(model.RoleAssistant), Selector: MustParseSelector(`[data-message-author-role="assistant"]`)},
}

// ParserConfig controls optional cascade behavior.
type ParserConfig struct {
	// MultiTurn makes the structured tier emit every user and assistant
	// element in document order. When false only the last element of each
	// role survives and the result is ordered [user, assistant].
	MultiTurn bool
}

// Parser runs the format detection cascade.
type Parser struct {
	extractor *Extractor
	multiTurn bool
	logger    *logger.Logger
}

// NewParser creates a new parser.
func NewParser(cfg ParserConfig, log *logger.Logger) *Parser {
	if log == nil {
		log = logger.Global()
	}
	return &Parser{
		extractor: NewExtractor(exportTargets...),
		multiTurn: cfg.MultiTurn,
		logger:    log,
	}
}

// tier returns a populated result, or false to hand over to the next tier.
type tier func(input string) (model.ParseResult, bool)

// Parse converts a normalized transcript into messages. It never fails:
// input no tier understands comes back as a single unknown-role message
// with Format "fallback" and Error set.
func (p *Parser) Parse(input string) (result model.ParseResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("parse cascade panicked", zap.Any("panic", r))
			result = blobResult(input, fmt.Sprintf("parse failed: %v", r))
		}
	}()

	for _, t := range []tier{parseJSON, p.parseStructured, parsePatterns} {
		if res, ok := t(input); ok {
			return res
		}
	}
	return blobResult(input, errNoStructure)
}

// ParseRaw skips detection and keeps the sanitized input as one message.
func (p *Parser) ParseRaw(input string) model.ParseResult {
	return model.NewParseResult(model.FormatRaw, []model.Message{
		{Role: model.RoleUnknown, Content: Sanitize(input)},
	})
}

func blobResult(input, reason string) model.ParseResult {
	res := model.NewParseResult(model.FormatFallback, []model.Message{
		{Role: model.RoleUnknown, Content: Clean(input)},
	})
	res.Error = reason
	return res
}

// parseJSON accepts a non-empty array of {"from", "value"} objects whose
// every "from" is in the synonym set.
func parseJSON(input string) (model.ParseResult, bool) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "[") {
		return model.ParseResult{}, false
	}

	var items []map[string]any
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil || len(items) == 0 {
		return model.ParseResult{}, false
	}

	messages := make([]model.Message, 0, len(items))
	for _, item := range items {
		from, ok := item["from"].(string)
		if !ok {
			return model.ParseResult{}, false
		}
		value, ok := item["value"].(string)
		if !ok {
			return model.ParseResult{}, false
		}
		role, ok := model.RoleFromSource(from)
		if !ok {
			return model.ParseResult{}, false
		}
		messages = append(messages, model.Message{Role: role, Content: Sanitize(value)})
	}

	return model.NewParseResult(model.FormatJSON, messages), true
}

func (p *Parser) parseStructured(input string) (model.ParseResult, bool) {
	if !hasStructuredMarkers(input) {
		return model.ParseResult{}, false
	}

	res, err := p.extractor.Extract(strings.NewReader(input))
	if err != nil {
		p.logger.Warn("structured extraction failed, falling back to patterns", zap.Error(err))
		return model.ParseResult{}, false
	}

	var messages []model.Message
	if p.multiTurn {
		for _, m := range res.Matches {
			if content := Sanitize(strings.TrimSpace(m.Value)); content != "" {
				messages = append(messages, model.Message{Role: model.Role(m.Target), Content: content})
			}
		}
	} else {
		for _, role := range []model.Role{model.RoleUser, model.RoleAssistant} {
			v, ok := res.Value(string(role))
			if !ok {
				continue
			}
			if content := Sanitize(strings.TrimSpace(v)); content != "" {
				messages = append(messages, model.Message{Role: role, Content: content})
			}
		}
	}

	if len(messages) == 0 {
		return model.ParseResult{}, false
	}
	return model.NewParseResult(model.FormatHTMLRewriter, messages), true
}

func parsePatterns(input string) (model.ParseResult, bool) {
	messages, ok := extractFallback(input)
	if !ok {
		return model.ParseResult{}, false
	}
	return model.NewParseResult(model.FormatParsed, messages), true
}

func hasStructuredMarkers(input string) bool {
	for _, marker := range structuredMarkers {
		if strings.Contains(input, marker) {
			return true
		}
	}
	return false
}
