package models

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is the durable chat-history parent record.
// Conversations own their messages; deleting one cascades.
type Conversation struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Title     string    `bson:"title" json:"title"`
	GroupID   int64     `bson:"group_id,omitempty" json:"group_id,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ChatMessage is one durable message in a conversation. Sources and the
// intent tag are populated for assistant messages only.
type ChatMessage struct {
	ID             string    `bson:"_id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	Role           string    `bson:"role" json:"role"`
	Content        string    `bson:"content" json:"content"`
	SourcesJSON    string    `bson:"sources_json,omitempty" json:"sources_json,omitempty"`
	Intent         string    `bson:"intent,omitempty" json:"intent,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// HistoryTurn is the role/content pair kept in the short-term session
// cache and fed to the generator.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
