package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/capitalize-ai/chatshare/internal/idgen"
	"github.com/capitalize-ai/chatshare/internal/ingest"
	"github.com/capitalize-ai/chatshare/internal/model"
	"github.com/capitalize-ai/chatshare/internal/storage"
	"github.com/capitalize-ai/chatshare/pkg/logger"
)

// countingParser records how often the cascade ran.
type countingParser struct {
	inner *ingest.Parser
	calls int
}

func (p *countingParser) Parse(input string) model.ParseResult {
	p.calls++
	return p.inner.Parse(input)
}

func (p *countingParser) ParseRaw(input string) model.ParseResult {
	p.calls++
	return p.inner.ParseRaw(input)
}

type recordingPublisher struct {
	events []*model.ConversationEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error) {
	p.events = append(p.events, event)
	return uint64(len(p.events)), p.err
}

// takenStore reports every key as present.
type takenStore struct{}

func (takenStore) Get(ctx context.Context, key string) (string, error) { return "{}", nil }

func (takenStore) Put(ctx context.Context, key, value string, ttl time.Duration) error { return nil }

type testEnv struct {
	svc       *ConversationService
	store     *storage.MemoryStore
	parser    *countingParser
	publisher *recordingPublisher
}

func newTestEnv(t *testing.T, maxBytes int) *testEnv {
	t.Helper()
	log := logger.NewNop()
	store := storage.NewMemoryStore()
	parser := &countingParser{inner: ingest.NewParser(ingest.ParserConfig{}, log)}
	publisher := &recordingPublisher{}
	svc := NewConversationService(store, idgen.NewAllocator(store, 0), parser, publisher, maxBytes, log)
	return &testEnv{svc: svc, store: store, parser: parser, publisher: publisher}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	record, err := env.svc.Create(ctx, CreateInput{
		Body:           "User: hi\r\nAssistant: hello\r\n",
		ClientIdentity: "ip:203.0.113.7",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !idgen.Valid(record.ID) {
		t.Fatalf("record id %q is not valid", record.ID)
	}
	if record.Content.Format != string(model.FormatParsed) || record.Content.Parsed.MessageCount != 2 {
		t.Fatalf("unexpected parse result: %+v", record.Content.Parsed)
	}
	if record.Content.Raw != "User: hi\nAssistant: hello" {
		t.Fatalf("Raw = %q", record.Content.Raw)
	}
	meta := record.Content.Metadata
	if meta.ClientIdentity != "ip:203.0.113.7" || meta.Size != len("User: hi\r\nAssistant: hello\r\n") || meta.Created.IsZero() {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	got, err := env.svc.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != record.ID || len(got.Content.Parsed.Messages) != 2 {
		t.Fatalf("Get() = %+v", got)
	}
	if got.Content.Parsed.Messages[1] != (model.Message{Role: model.RoleAssistant, Content: "hello"}) {
		t.Fatalf("unexpected message: %+v", got.Content.Parsed.Messages[1])
	}
}

func TestCreateRawMode(t *testing.T) {
	env := newTestEnv(t, 0)

	record, err := env.svc.Create(context.Background(), CreateInput{Body: "User: hi", Raw: true})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if record.Content.Parsed.Format != model.FormatRaw || record.Content.Parsed.MessageCount != 1 {
		t.Fatalf("unexpected parse result: %+v", record.Content.Parsed)
	}
}

func TestCreateEmpty(t *testing.T) {
	env := newTestEnv(t, 0)

	for _, body := range []string{"", "   \n\t", "--boundary42\r\nContent-Disposition: form-data; name=\"content\"\r\n\r\n--boundary42--"} {
		_, err := env.svc.Create(context.Background(), CreateInput{Body: body})
		if !errors.Is(err, ErrEmptyContent) {
			t.Fatalf("Create(%q) error = %v, want ErrEmptyContent", body, err)
		}
	}
	if env.parser.calls != 0 {
		t.Fatalf("parser ran %d times for empty input", env.parser.calls)
	}
	if env.store.Len() != 0 {
		t.Fatalf("store holds %d keys, want 0", env.store.Len())
	}
}

func TestCreateTooLargeSkipsParsing(t *testing.T) {
	env := newTestEnv(t, 64)

	_, err := env.svc.Create(context.Background(), CreateInput{Body: strings.Repeat("x", 65)})
	if !errors.Is(err, ErrContentTooLarge) {
		t.Fatalf("Create() error = %v, want ErrContentTooLarge", err)
	}
	if env.parser.calls != 0 {
		t.Fatalf("parser ran %d times for oversized input", env.parser.calls)
	}

	if _, err := env.svc.Create(context.Background(), CreateInput{Body: strings.Repeat("x", 64)}); err != nil {
		t.Fatalf("Create() at the limit error = %v", err)
	}
}

func TestCreateAllocationExhausted(t *testing.T) {
	log := logger.NewNop()
	parser := ingest.NewParser(ingest.ParserConfig{}, log)
	svc := NewConversationService(takenStore{}, idgen.NewAllocator(takenStore{}, 0), parser, nil, 0, log)

	_, err := svc.Create(context.Background(), CreateInput{Body: "hello"})
	if !errors.Is(err, idgen.ErrAllocationExhausted) {
		t.Fatalf("Create() error = %v, want ErrAllocationExhausted", err)
	}
}

func TestCreatePublishesEvent(t *testing.T) {
	env := newTestEnv(t, 0)

	record, err := env.svc.Create(context.Background(), CreateInput{Body: `[{"from":"human","value":"hi"}]`})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(env.publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(env.publisher.events))
	}
	ev := env.publisher.events[0]
	if ev.ConversationID != record.ID || ev.Type != model.EventTypeCreated || ev.Format != model.FormatJSON || ev.MessageCount != 1 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestCreateSurvivesPublishFailure(t *testing.T) {
	env := newTestEnv(t, 0)
	env.publisher.err = errors.New("nats down")

	record, err := env.svc.Create(context.Background(), CreateInput{Body: "hello"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := env.svc.Get(context.Background(), record.ID); err != nil {
		t.Fatalf("record not stored: %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	env := newTestEnv(t, 0)

	if _, err := env.svc.Get(context.Background(), "Ab3xYz9Q"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}
