package models

import "time"

// Document processing statuses. Transitions are monotonic
// (pending -> processing -> done|failed) except an explicit retry,
// which resets done|failed back to pending.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Document describes one uploaded artifact. The record is created at
// upload time, before the processing task is dispatched, and is mutated
// only by the ingestion worker or the retry action.
type Document struct {
	ID          int64     `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	ContentHash string    `bson:"content_hash" json:"content_hash"`
	GroupID     int64     `bson:"group_id" json:"group_id"`
	ObjectKey   string    `bson:"object_key" json:"object_key"`
	LocalPath   string    `bson:"local_path,omitempty" json:"-"`
	Status      string    `bson:"status" json:"status"`
	Error       string    `bson:"error,omitempty" json:"error,omitempty"`
	ChunkCount  int       `bson:"chunk_count" json:"chunk_count"`
	TaskID      string    `bson:"task_id,omitempty" json:"task_id,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// DocumentKind is the declared upload format.
const (
	KindPDF  = "pdf"
	KindPPTX = "pptx"
	KindPPT  = "ppt"
)
