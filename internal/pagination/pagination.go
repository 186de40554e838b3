package pagination

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page carries the caller's position in an ordered listing. Cursor is the ID
// of the last item the caller has seen; empty means start from the beginning.
type Page struct {
	Cursor string
	Limit  int
}

// Normalize clamps the limit into [1, MaxLimit], applying DefaultLimit when
// the caller sent nothing.
func Normalize(p Page) Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// NextCursor returns the ID of the last item when the page is exactly full,
// signalling more rows may follow. A short page ends the stream.
func NextCursor[T any](items []T, limit int, id func(T) string) string {
	if len(items) == 0 || len(items) < limit {
		return ""
	}
	return id(items[len(items)-1])
}
