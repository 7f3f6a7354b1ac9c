package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"responsa/internal/models"
	"responsa/internal/store"
	"responsa/pkg/logger"
)

// Invalidator forces the vector cache to rebuild once a new answer landed.
type Invalidator interface {
	Invalidate()
}

// AnswerLinker runs the Q&A linker on one persisted answer.
type AnswerLinker interface {
	Link(ctx context.Context, answer *models.Entry, replyToID, contextHint string) (models.LinkDecision, error)
}

// AnswerConsumer consumes transcribed answers from Kafka, persists them and
// runs the linker on each one. Handler failures are logged and the message
// committed anyway: the reindexer replays entries whose link is missing.
type AnswerConsumer struct {
	reader  *kafka.Reader
	entries store.EntryStore
	linker  AnswerLinker
	cache   Invalidator
	logger  *logger.Logger
}

// NewAnswerConsumer creates the consumer over an existing reader.
func NewAnswerConsumer(reader *kafka.Reader, entries store.EntryStore, linker AnswerLinker, cache Invalidator, logger *logger.Logger) *AnswerConsumer {
	return &AnswerConsumer{
		reader:  reader,
		entries: entries,
		linker:  linker,
		cache:   cache,
		logger:  logger,
	}
}

// Start begins consuming in a background goroutine until ctx is cancelled.
func (c *AnswerConsumer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Stopping answer consumer...")
				return
			default:
				msg, err := c.reader.FetchMessage(ctx)
				if err != nil {
					if ctx.Err() == nil {
						c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error fetching message from Kafka")
					}
					continue
				}

				if err := c.handle(ctx, msg); err != nil {
					c.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
						"topic":     msg.Topic,
						"partition": msg.Partition,
						"offset":    msg.Offset,
					}).Error("Error handling answer event")
				}

				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to commit Kafka message")
				}
			}
		}
	}()
}

// handle persists the answer entry and links it. The entry is created before
// linking so a linker failure leaves a replayable record instead of losing
// the message.
func (c *AnswerConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var event models.AnswerEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("malformed answer event: %w", err)
	}
	if event.AnswerID == "" || event.GroupID == "" {
		return fmt.Errorf("answer event missing answer_id or group_id")
	}

	entry := &models.Entry{
		ID:            event.AnswerID,
		GroupID:       event.GroupID,
		Sender:        event.Sender,
		Timestamp:     time.Unix(event.Timestamp, 0).UTC(),
		AudioRef:      event.AudioRef,
		TranscriptRaw: event.Transcript,
	}
	if err := c.entries.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to persist answer %s: %w", event.AnswerID, err)
	}

	decision, err := c.linker.Link(ctx, entry, event.ReplyToID, event.ContextHint)
	if err != nil {
		return fmt.Errorf("failed to link answer %s: %w", event.AnswerID, err)
	}

	c.cache.Invalidate()
	c.logger.WithPayload(map[string]interface{}{
		"answer_id":  event.AnswerID,
		"method":     decision.Method,
		"confidence": decision.Confidence,
	}).Info("Answer ingested")
	return nil
}
