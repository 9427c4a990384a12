package core

// History keeps query results newest first, bounded by a limit.
// It is not safe for concurrent use; Session guards it with its mutex.
type History struct {
	limit   int
	entries []QueryResult
}

// NewHistory creates a history holding at most limit entries. A limit of 0
// or less means unbounded.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Add prepends r, dropping the oldest entry when full.
func (h *History) Add(r QueryResult) {
	h.entries = append([]QueryResult{r}, h.entries...)
	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = h.entries[:h.limit]
	}
}

// All returns a copy of the entries, newest first.
func (h *History) All() []QueryResult {
	out := make([]QueryResult, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }

// Clear removes every entry.
func (h *History) Clear() { h.entries = nil }
