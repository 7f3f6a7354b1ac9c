package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"responsa/internal/models"
)

// ErrEntryNotFound is returned when a lookup matches no entry.
var ErrEntryNotFound = fmt.Errorf("entry not found")

// EntryStore is the persistence interface for archive entries. MongoDB is
// the source of truth; embeddings and the vector cache are derived from it.
type EntryStore interface {
	Create(ctx context.Context, entry *models.Entry) error
	Get(ctx context.Context, id string) (*models.Entry, error)
	// ListCandidates returns non-deleted question entries of the group with
	// timestamps in (before-window, before], most recent first.
	ListCandidates(ctx context.Context, groupID string, before time.Time, window time.Duration, limit int) ([]models.Entry, error)
	// UpsertLink overwrites the link fields on an answer.
	UpsertLink(ctx context.Context, answerID string, decision models.LinkDecision) error
	UpdateRelevance(ctx context.Context, id string, score float64, count int64) error
	UpdateText(ctx context.Context, id, text string) error
	UpdateTranscript(ctx context.Context, id, raw, clean string) error
	MarkEmbedded(ctx context.Context, id string, at time.Time) error
	SoftDelete(ctx context.Context, id string) error
	// ListActive returns every non-deleted entry.
	ListActive(ctx context.Context) ([]models.Entry, error)
	// ListUnembedded returns non-deleted entries whose vector is missing or
	// stale, for the bulk indexer.
	ListUnembedded(ctx context.Context, limit int) ([]models.Entry, error)
	ListLowestRelevance(ctx context.Context, limit int) ([]models.Entry, error)
}

// MongoEntryStore implements EntryStore on a MongoDB collection.
type MongoEntryStore struct {
	collection *mongo.Collection
}

var _ EntryStore = (*MongoEntryStore)(nil)

// NewMongoEntryStore creates a MongoEntryStore over the given collection.
func NewMongoEntryStore(db *mongo.Database, collectionName string) *MongoEntryStore {
	return &MongoEntryStore{
		collection: db.Collection(collectionName),
	}
}

// Create inserts a new entry. RelevanceScore starts at the default when the
// caller left it zero.
func (s *MongoEntryStore) Create(ctx context.Context, entry *models.Entry) error {
	if entry.RelevanceScore == 0 {
		entry.RelevanceScore = models.DefaultRelevance
	}
	_, err := s.collection.InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// Get retrieves an entry by id.
func (s *MongoEntryStore) Get(ctx context.Context, id string) (*models.Entry, error) {
	var entry models.Entry
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// ListCandidates returns the linkable questions for one answer: same group,
// not deleted, question-shaped (no transcript), inside the time window.
func (s *MongoEntryStore) ListCandidates(ctx context.Context, groupID string, before time.Time, window time.Duration, limit int) ([]models.Entry, error) {
	filter := bson.M{
		"group_id":         groupID,
		"deleted":          false,
		"transcript_raw":   bson.M{"$in": bson.A{nil, ""}},
		"transcript_clean": bson.M{"$in": bson.A{nil, ""}},
		"timestamp": bson.M{
			"$lte": before,
			"$gte": before.Add(-window),
		},
	}

	opts := options.Find()
	opts.SetSort(bson.D{{Key: "timestamp", Value: -1}})
	opts.SetLimit(int64(limit))

	return s.find(ctx, filter, opts)
}

// UpsertLink overwrites the link fields on the answer. Links are revisable:
// a re-run of the linker replaces the previous decision.
func (s *MongoEntryStore) UpsertLink(ctx context.Context, answerID string, decision models.LinkDecision) error {
	update := bson.M{
		"$set": bson.M{
			"link_question_id": decision.QuestionID,
			"link_confidence":  decision.Confidence,
			"link_method":      decision.Method,
		},
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": answerID}, update)
	if err != nil {
		return fmt.Errorf("failed to update link fields: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// UpdateRelevance writes the feedback aggregate.
func (s *MongoEntryStore) UpdateRelevance(ctx context.Context, id string, score float64, count int64) error {
	update := bson.M{
		"$set": bson.M{
			"relevance_score": score,
			"feedback_count":  count,
		},
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update relevance: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// UpdateText replaces the question text and clears the embedded flag.
func (s *MongoEntryStore) UpdateText(ctx context.Context, id, text string) error {
	update := bson.M{
		"$set": bson.M{
			"text":          text,
			"has_embedding": false,
		},
		"$unset": bson.M{"embedded_at": ""},
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update text: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// UpdateTranscript replaces the transcript variants and clears the embedded
// flag: content changed, so the vector must be recomputed.
func (s *MongoEntryStore) UpdateTranscript(ctx context.Context, id, raw, clean string) error {
	update := bson.M{
		"$set": bson.M{
			"transcript_raw":   raw,
			"transcript_clean": clean,
			"has_embedding":    false,
		},
		"$unset": bson.M{"embedded_at": ""},
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update transcript: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// MarkEmbedded records that the entry's vector is current.
func (s *MongoEntryStore) MarkEmbedded(ctx context.Context, id string, at time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"has_embedding": true,
			"embedded_at":   at,
		},
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to mark entry embedded: %w", err)
	}
	return nil
}

// SoftDelete flags the entry deleted. Entries are never hard-deleted outside
// explicit maintenance.
func (s *MongoEntryStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"deleted": true}})
	if err != nil {
		return fmt.Errorf("failed to soft-delete entry: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// ListActive returns every non-deleted entry.
func (s *MongoEntryStore) ListActive(ctx context.Context) ([]models.Entry, error) {
	return s.find(ctx, bson.M{"deleted": false}, options.Find())
}

// ListUnembedded returns non-deleted entries without a current vector.
func (s *MongoEntryStore) ListUnembedded(ctx context.Context, limit int) ([]models.Entry, error) {
	opts := options.Find()
	opts.SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, bson.M{"deleted": false, "has_embedding": false}, opts)
}

// ListLowestRelevance returns the worst-rated entries for curation.
func (s *MongoEntryStore) ListLowestRelevance(ctx context.Context, limit int) ([]models.Entry, error) {
	opts := options.Find()
	opts.SetSort(bson.D{{Key: "relevance_score", Value: 1}})
	opts.SetLimit(int64(limit))
	return s.find(ctx, bson.M{"deleted": false, "feedback_count": bson.M{"$gt": 0}}, opts)
}

func (s *MongoEntryStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Entry, error) {
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.Entry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode entries: %w", err)
	}
	return entries, nil
}
