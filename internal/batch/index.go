package batch

import "strings"

// OutputIndex maps lowercase output paths to the source that produced them,
// so a later file silently replacing an earlier output can be reported.
type OutputIndex struct {
	entries map[string]string
}

// NewOutputIndex creates an empty index.
func NewOutputIndex() *OutputIndex {
	return &OutputIndex{entries: make(map[string]string)}
}

// Add records that source wrote output. It returns the previous source and
// true when output was already claimed.
func (idx *OutputIndex) Add(output, source string) (string, bool) {
	key := strings.ToLower(output)
	prev, exists := idx.entries[key]
	idx.entries[key] = source
	return prev, exists
}

// Len returns the number of distinct outputs.
func (idx *OutputIndex) Len() int {
	return len(idx.entries)
}
