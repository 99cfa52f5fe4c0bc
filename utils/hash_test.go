package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBytesStable(t *testing.T) {
	a := HashBytes([]byte("report body"))
	b := HashBytes([]byte("report body"))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, HashBytes([]byte("other body")))
}

func TestHashReaderMatchesHashBytes(t *testing.T) {
	data := []byte("the same bytes either way")
	fromReader, err := HashReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, HashBytes(data), fromReader)
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "ETR_02_24_12.pdf", SafeFilename("ETR_02_24_12.pdf"))
	assert.Equal(t, "brake_test_v2_.pdf", SafeFilename("brake test (v2).pdf"))
	assert.Equal(t, "report.pdf", SafeFilename("../../etc/report.pdf"))
	assert.Equal(t, "file", SafeFilename("   "))
}
