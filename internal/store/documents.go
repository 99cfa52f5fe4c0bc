package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"engdocs-qa-platform/models"
	"engdocs-qa-platform/utils"
)

// DocumentStore owns the durable document records. Status transitions
// are monotonic (pending -> processing -> done|failed) except the
// explicit retry reset.
type DocumentStore struct {
	documents *mongo.Collection
	counters  *mongo.Collection
}

func NewDocumentStore(db *mongo.Database) *DocumentStore {
	return &DocumentStore{
		documents: db.Collection("documents"),
		counters:  db.Collection("counters"),
	}
}

// nextID allocates a stable numeric id from the counters collection.
func (s *DocumentStore) nextID(ctx context.Context) (int64, error) {
	var result struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "documents"},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&result)
	if err != nil {
		return 0, utils.Transient("allocating document id", err)
	}
	return result.Seq, nil
}

// Create inserts a pending record. A (content_hash, group_id) collision
// surfaces as an input error so the upload surface can report the
// duplicate instead of reprocessing it.
func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	id, err := s.nextID(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	doc.ID = id
	doc.Status = models.StatusPending
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, err := s.documents.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return utils.InvalidInput("duplicate_document", "a document with identical content already exists in this group")
		}
		return utils.Transient("inserting document record", err)
	}
	return nil
}

// Get loads one record by id.
func (s *DocumentStore) Get(ctx context.Context, id int64) (*models.Document, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewError(utils.KindInputInvalid, "not_found", "document not found", nil)
	}
	if err != nil {
		return nil, utils.Transient("loading document record", err)
	}
	return &doc, nil
}

// GetByHash looks up a record by (content hash, group). Returns nil
// without error when absent.
func (s *DocumentStore) GetByHash(ctx context.Context, contentHash string, groupID int64) (*models.Document, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"content_hash": contentHash, "group_id": groupID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.Transient("looking up document by hash", err)
	}
	return &doc, nil
}

// SetProcessing marks the worker pickup and records the task handle.
func (s *DocumentStore) SetProcessing(ctx context.Context, id int64, taskID string) error {
	return s.update(ctx, id, bson.M{
		"status":  models.StatusProcessing,
		"task_id": taskID,
	})
}

// SetDone stores the final chunk count and clears any previous error.
func (s *DocumentStore) SetDone(ctx context.Context, id int64, chunkCount int) error {
	return s.update(ctx, id, bson.M{
		"status":      models.StatusDone,
		"chunk_count": chunkCount,
		"error":       "",
	})
}

// SetFailed stores the failure message, truncated for display.
func (s *DocumentStore) SetFailed(ctx context.Context, id int64, message string) error {
	return s.update(ctx, id, bson.M{
		"status": models.StatusFailed,
		"error":  utils.Truncate(message, 500),
	})
}

// ResetForRetry moves a terminal record back to pending. Only done and
// failed records may be retried.
func (s *DocumentStore) ResetForRetry(ctx context.Context, id int64) error {
	res, err := s.documents.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": []string{models.StatusDone, models.StatusFailed}}},
		bson.M{"$set": bson.M{
			"status":      models.StatusPending,
			"error":       "",
			"chunk_count": 0,
			"updated_at":  time.Now().UTC(),
		}},
	)
	if err != nil {
		return utils.Transient("resetting document for retry", err)
	}
	if res.MatchedCount == 0 {
		return utils.InvalidInput("not_retryable", "document is not in a terminal state")
	}
	return nil
}

// SetTaskID records the broker handle after dispatch.
func (s *DocumentStore) SetTaskID(ctx context.Context, id int64, taskID string) error {
	return s.update(ctx, id, bson.M{"task_id": taskID})
}

// Delete removes the record.
func (s *DocumentStore) Delete(ctx context.Context, id int64) error {
	res, err := s.documents.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return utils.Transient("deleting document record", err)
	}
	if res.DeletedCount == 0 {
		return utils.NewError(utils.KindInputInvalid, "not_found", "document not found", nil)
	}
	return nil
}

// List returns a group's documents newest first.
func (s *DocumentStore) List(ctx context.Context, groupIDs []int64, limit, offset int64) ([]models.Document, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	cursor, err := s.documents.Find(ctx,
		bson.M{"group_id": bson.M{"$in": groupIDs}},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(limit).
			SetSkip(offset),
	)
	if err != nil {
		return nil, utils.Transient("listing documents", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, utils.Transient("decoding document list", err)
	}
	return docs, nil
}

func (s *DocumentStore) update(ctx context.Context, id int64, fields bson.M) error {
	fields["updated_at"] = time.Now().UTC()
	res, err := s.documents.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return utils.Transient("updating document record", err)
	}
	if res.MatchedCount == 0 {
		return utils.Inconsistent("document record vanished during update", nil)
	}
	return nil
}
