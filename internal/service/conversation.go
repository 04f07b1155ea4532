// Package service provides business logic for the transcript sharing service.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chatshare/internal/idgen"
	"github.com/capitalize-ai/chatshare/internal/ingest"
	"github.com/capitalize-ai/chatshare/internal/model"
	"github.com/capitalize-ai/chatshare/internal/storage"
	"github.com/capitalize-ai/chatshare/pkg/logger"
	"github.com/capitalize-ai/chatshare/pkg/metrics"
)

// DefaultMaxContentBytes is the submission size ceiling (1 MiB).
const DefaultMaxContentBytes = 1 << 20

var (
	// ErrEmptyContent is returned for submissions with nothing left after normalization.
	ErrEmptyContent = errors.New("content is empty")

	// ErrContentTooLarge is returned for submissions above the size ceiling.
	ErrContentTooLarge = errors.New("content exceeds maximum size")

	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("conversation not found")
)

const tracerName = "github.com/capitalize-ai/chatshare/internal/service"

// Parser turns normalized text into messages.
type Parser interface {
	Parse(input string) model.ParseResult
	ParseRaw(input string) model.ParseResult
}

// EventPublisher receives an event for every stored record.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error)
}

// CreateInput is one submission.
type CreateInput struct {
	Body           string
	ClientIdentity string

	// Raw stores the sanitized body as a single message without detection.
	Raw bool
}

// ConversationService stores and retrieves shared transcripts.
type ConversationService struct {
	store           storage.Store
	allocator       *idgen.Allocator
	parser          Parser
	events          EventPublisher
	maxContentBytes int
	logger          *logger.Logger
	now             func() time.Time
}

// NewConversationService creates a new conversation service. events may be nil.
func NewConversationService(
	store storage.Store,
	allocator *idgen.Allocator,
	parser Parser,
	events EventPublisher,
	maxContentBytes int,
	log *logger.Logger,
) *ConversationService {
	if maxContentBytes <= 0 {
		maxContentBytes = DefaultMaxContentBytes
	}
	return &ConversationService{
		store:           store,
		allocator:       allocator,
		parser:          parser,
		events:          events,
		maxContentBytes: maxContentBytes,
		logger:          log,
		now:             time.Now,
	}
}

// MaxContentBytes returns the configured size ceiling.
func (s *ConversationService) MaxContentBytes() int {
	return s.maxContentBytes
}

// Create validates, parses and stores a submission.
func (s *ConversationService) Create(ctx context.Context, in CreateInput) (*model.ConversationRecord, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ConversationService.Create")
	defer span.End()

	if len(in.Body) > s.maxContentBytes {
		metrics.SubmissionsRejected.WithLabelValues("too_large").Inc()
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrContentTooLarge, len(in.Body), s.maxContentBytes)
	}

	text := ingest.Normalize(in.Body)
	if strings.TrimSpace(text) == "" {
		metrics.SubmissionsRejected.WithLabelValues("empty").Inc()
		return nil, ErrEmptyContent
	}

	var parsed model.ParseResult
	if in.Raw {
		parsed = s.parser.ParseRaw(text)
	} else {
		parsed = s.parser.Parse(text)
	}
	metrics.RecordParse(string(parsed.Format), parsed.MessageCount)
	span.SetAttributes(
		attribute.String("transcript.format", string(parsed.Format)),
		attribute.Int("transcript.messages", parsed.MessageCount),
	)

	id, err := s.allocator.Allocate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "id allocation failed")
		return nil, err
	}

	record := &model.ConversationRecord{
		ID: id,
		Content: model.ConversationContent{
			Parsed: parsed,
			Raw:    text,
			Format: string(parsed.Format),
			Metadata: model.ConversationMetadata{
				Created:        s.now().UTC(),
				Size:           len(in.Body),
				ClientIdentity: in.ClientIdentity,
			},
		},
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	if err := s.store.Put(ctx, id, string(data), 0); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store write failed")
		return nil, fmt.Errorf("failed to store conversation: %w", err)
	}

	metrics.ConversationsTotal.Inc()
	s.logger.Info("conversation stored",
		zap.String("conversation_id", id),
		zap.String("format", string(parsed.Format)),
		zap.Int("message_count", parsed.MessageCount),
		zap.Int("size", len(in.Body)),
	)

	s.publishCreated(ctx, record)

	return record, nil
}

// Get retrieves a stored record by id.
func (s *ConversationService) Get(ctx context.Context, id string) (*model.ConversationRecord, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ConversationService.Get")
	defer span.End()

	data, err := s.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var record model.ConversationRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", id, err)
	}
	return &record, nil
}

// publishCreated announces a stored record. Failures are logged only; the
// record is already durable.
func (s *ConversationService) publishCreated(ctx context.Context, record *model.ConversationRecord) {
	if s.events == nil {
		return
	}

	event := &model.ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: record.ID,
		Type:           model.EventTypeCreated,
		Format:         record.Content.Parsed.Format,
		MessageCount:   record.Content.Parsed.MessageCount,
		Size:           record.Content.Metadata.Size,
		CreatedAt:      record.Content.Metadata.Created,
	}

	if _, err := s.events.PublishEvent(ctx, event); err != nil {
		metrics.EventsPublished.WithLabelValues(string(event.Type), "error").Inc()
		s.logger.Warn("failed to publish conversation event",
			zap.String("conversation_id", record.ID),
			zap.Error(err),
		)
		return
	}
	metrics.EventsPublished.WithLabelValues(string(event.Type), "ok").Inc()
}
