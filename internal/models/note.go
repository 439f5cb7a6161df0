// Package models defines the domain types for Jotter.
package models

import "time"

// Note is a short text note with a color tag and an optional image.
type Note struct {
	ID          *int64 `json:"id,omitempty" db:"id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
	// Timestamp is epoch milliseconds, set by the caller at create/edit time.
	Timestamp int64 `json:"timestamp" db:"timestamp"`
	// Color is a packed ARGB value.
	Color int64 `json:"color" db:"color"`
	// Image holds the encoded image bytes (PNG once normalized), nil when absent.
	Image []byte `json:"image,omitempty" db:"image"`
}

// HasID reports whether the note has been assigned an identity.
func (n Note) HasID() bool {
	return n.ID != nil
}

// IDValue returns the note id, or 0 when unset.
func (n Note) IDValue() int64 {
	if n.ID == nil {
		return 0
	}
	return *n.ID
}

// Time returns Timestamp as a time.Time in the local zone.
func (n Note) Time() time.Time {
	return time.UnixMilli(n.Timestamp)
}

// Clone returns a deep copy of the note.
func (n Note) Clone() Note {
	out := n
	if n.ID != nil {
		id := *n.ID
		out.ID = &id
	}
	if n.Image != nil {
		out.Image = append([]byte(nil), n.Image...)
	}
	return out
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}

// NowMillis returns the current wall-clock time in epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
