package ai

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparseEncodeDeterministic(t *testing.T) {
	e := NewSparseEncoder()
	a := e.Encode("brake test results for ETR_02_24_12")
	b := e.Encode("brake test results for ETR_02_24_12")
	assert.Equal(t, a, b)
}

func TestSparseEncodeSortedIndices(t *testing.T) {
	e := NewSparseEncoder()
	sv := e.Encode("gradeability cooling weighment articulation steering")
	require.Len(t, sv.Indices, 5)
	require.Len(t, sv.Values, 5)
	assert.True(t, sort.SliceIsSorted(sv.Indices, func(i, j int) bool {
		return sv.Indices[i] < sv.Indices[j]
	}))
}

func TestSparseEncodeDropsStopwords(t *testing.T) {
	e := NewSparseEncoder()
	sv := e.Encode("the results of the test")
	// Only "results" and "test" survive.
	assert.Len(t, sv.Indices, 2)
}

func TestSparseEncodeKeepsIdentifiers(t *testing.T) {
	e := NewSparseEncoder()
	withID := e.Encode("etr_02_24_12")
	require.Len(t, withID.Indices, 1)

	// The same identifier at index and query time hashes identically
	// regardless of case.
	query := e.Encode("show me ETR_02_24_12")
	assert.Contains(t, query.Indices, withID.Indices[0])
}

func TestSparseEncodeTermFrequencySaturates(t *testing.T) {
	e := NewSparseEncoder()
	once := e.Encode("brake")
	thrice := e.Encode("brake brake brake")

	require.Len(t, once.Values, 1)
	require.Len(t, thrice.Values, 1)
	assert.Greater(t, thrice.Values[0], once.Values[0])
	// Saturation bound: tf*(k1+1)/(tf+k1) < k1+1.
	assert.Less(t, thrice.Values[0], float32(2.2))
}

func TestSparseEncodeEmpty(t *testing.T) {
	e := NewSparseEncoder()
	sv := e.Encode("  a i ! ")
	assert.Empty(t, sv.Indices)
	assert.Empty(t, sv.Values)
}
