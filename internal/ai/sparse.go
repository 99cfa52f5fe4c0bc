package ai

import (
	"hash/fnv"
	"sort"
	"strings"
	"unicode"
)

// SparseVector is a lexical (indices, values) term vector for the sparse
// index space.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// SparseEncoder produces BM25-style sparse vectors locally. The same
// encoder runs at index and query time so term indices line up; indices
// are FNV-1a hashes of normalized terms and values are saturating
// TF weights.
type SparseEncoder struct {
	k1 float32
}

func NewSparseEncoder() *SparseEncoder {
	return &SparseEncoder{k1: 1.2}
}

// Encode tokenizes text and returns a sparse vector sorted by index.
// Returns a zero-length vector for text with no indexable terms.
func (e *SparseEncoder) Encode(text string) SparseVector {
	counts := make(map[uint32]int)
	for _, term := range tokenize(text) {
		counts[hashTerm(term)]++
	}

	sv := SparseVector{
		Indices: make([]uint32, 0, len(counts)),
		Values:  make([]float32, 0, len(counts)),
	}
	for idx := range counts {
		sv.Indices = append(sv.Indices, idx)
	}
	sort.Slice(sv.Indices, func(i, j int) bool { return sv.Indices[i] < sv.Indices[j] })
	for _, idx := range sv.Indices {
		tf := float32(counts[idx])
		// Saturating BM25 term weight; document-length normalization is
		// left to the inverted index.
		sv.Values = append(sv.Values, tf*(e.k1+1)/(tf+e.k1))
	}
	return sv
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "in": {}, "is": {}, "it": {},
	"its": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "to": {},
	"was": {}, "were": {}, "will": {}, "with": {},
}

// tokenize lowercases, splits on non-alphanumerics, and drops stopwords
// and single characters. Terms with embedded digits are kept whole so
// identifiers like "etr_02_24_12" survive as searchable tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

func hashTerm(term string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(term))
	return h.Sum32()
}
