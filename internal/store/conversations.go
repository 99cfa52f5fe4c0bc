package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"engdocs-qa-platform/models"
	"engdocs-qa-platform/utils"
)

const titleMaxLength = 60

// ConversationStore owns durable chat history. Conversations own their
// messages; deleting one cascades.
type ConversationStore struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewConversationStore(db *mongo.Database) *ConversationStore {
	return &ConversationStore{
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
	}
}

// Create starts a conversation titled after the first query.
func (s *ConversationStore) Create(ctx context.Context, userID string, groupID int64, firstQuery string) (*models.Conversation, error) {
	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     deriveTitle(firstQuery),
		GroupID:   groupID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.conversations.InsertOne(ctx, conv); err != nil {
		return nil, utils.Transient("creating conversation", err)
	}
	return conv, nil
}

// Get loads a conversation, enforcing ownership.
func (s *ConversationStore) Get(ctx context.Context, id, userID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.conversations.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewError(utils.KindInputInvalid, "not_found", "conversation not found", nil)
	}
	if err != nil {
		return nil, utils.Transient("loading conversation", err)
	}
	return &conv, nil
}

// List returns a user's conversations, most recently active first.
func (s *ConversationStore) List(ctx context.Context, userID string, limit int64) ([]models.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	cursor, err := s.conversations.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, utils.Transient("listing conversations", err)
	}
	defer cursor.Close(ctx)

	var convs []models.Conversation
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, utils.Transient("decoding conversation list", err)
	}
	return convs, nil
}

// AppendMessage stores one message and bumps the conversation's
// updated_at so listing order follows activity.
func (s *ConversationStore) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = time.Now().UTC()

	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return utils.Transient("storing chat message", err)
	}
	_, err := s.conversations.UpdateOne(ctx,
		bson.M{"_id": msg.ConversationID},
		bson.M{"$set": bson.M{"updated_at": msg.CreatedAt}},
	)
	if err != nil {
		return utils.Transient("touching conversation", err)
	}
	return nil
}

// Messages returns a conversation's messages in chronological order.
func (s *ConversationStore) Messages(ctx context.Context, conversationID string) ([]models.ChatMessage, error) {
	cursor, err := s.messages.Find(ctx,
		bson.M{"conversation_id": conversationID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, utils.Transient("listing messages", err)
	}
	defer cursor.Close(ctx)

	var msgs []models.ChatMessage
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, utils.Transient("decoding messages", err)
	}
	return msgs, nil
}

// RecentHistory returns the last n turns in chronological order, used
// to rebuild the session cache after a miss.
func (s *ConversationStore) RecentHistory(ctx context.Context, conversationID string, n int64) ([]models.HistoryTurn, error) {
	if n <= 0 {
		n = 10
	}
	cursor, err := s.messages.Find(ctx,
		bson.M{"conversation_id": conversationID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(n),
	)
	if err != nil {
		return nil, utils.Transient("loading recent history", err)
	}
	defer cursor.Close(ctx)

	var msgs []models.ChatMessage
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, utils.Transient("decoding recent history", err)
	}

	// Reverse back to chronological order.
	turns := make([]models.HistoryTurn, len(msgs))
	for i, msg := range msgs {
		turns[len(msgs)-1-i] = models.HistoryTurn{Role: msg.Role, Content: msg.Content}
	}
	return turns, nil
}

// Delete removes a conversation and all of its messages.
func (s *ConversationStore) Delete(ctx context.Context, id, userID string) error {
	res, err := s.conversations.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return utils.Transient("deleting conversation", err)
	}
	if res.DeletedCount == 0 {
		return utils.NewError(utils.KindInputInvalid, "not_found", "conversation not found", nil)
	}
	if _, err := s.messages.DeleteMany(ctx, bson.M{"conversation_id": id}); err != nil {
		return utils.Transient("deleting conversation messages", err)
	}
	return nil
}

func deriveTitle(query string) string {
	title := strings.TrimSpace(query)
	if len(title) > titleMaxLength {
		cut := strings.LastIndex(title[:titleMaxLength], " ")
		if cut <= 0 {
			cut = titleMaxLength
		}
		title = title[:cut] + "..."
	}
	if title == "" {
		title = "New conversation"
	}
	return title
}
