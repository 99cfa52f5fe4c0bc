package routes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"engdocs-qa-platform/utils"
)

// The duplicate-key insert failure must never trigger the object
// rollback: a concurrent upload of identical bytes writes the same
// deterministic key, and the object belongs to the record that won.
func TestIsDuplicateRecordSkipsRollback(t *testing.T) {
	dup := utils.InvalidInput("duplicate_document", "a document with identical content already exists in this group")
	assert.True(t, isDuplicateRecord(dup))

	wrapped := fmt.Errorf("creating record: %w", dup)
	assert.True(t, isDuplicateRecord(wrapped))
}

func TestIsDuplicateRecordRollsBackOtherFailures(t *testing.T) {
	assert.False(t, isDuplicateRecord(utils.Transient("inserting document record", errors.New("connection reset"))))
	assert.False(t, isDuplicateRecord(utils.InvalidInput("not_found", "document not found")))
	assert.False(t, isDuplicateRecord(errors.New("plain failure")))
	assert.False(t, isDuplicateRecord(nil))
}

func TestAllowedExtension(t *testing.T) {
	allowed := []string{"pdf", " pptx", "ppt"}
	assert.True(t, allowedExtension("pdf", allowed))
	assert.True(t, allowedExtension("PPTX", allowed))
	assert.False(t, allowedExtension("xlsx", allowed))
	assert.False(t, allowedExtension("", allowed))
}
