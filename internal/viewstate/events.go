package viewstate

import "github.com/starford/jotter/internal/query"

// Event is a user action on the note list. The set of variants is closed.
type Event interface {
	isEvent()
}

// SearchNotes changes the free-text query.
type SearchNotes struct{ Query string }

// SortNotes changes the sort order.
type SortNotes struct{ Order query.SortOrder }

// FilterNotes changes the category filter. Any filter other than ByColor
// clears the selected color.
type FilterNotes struct{ Filter query.DateFilter }

// FilterByColor selects (or, with nil, clears) the color for ByColor.
type FilterByColor struct{ Color *int64 }

// RefreshNotes re-subscribes to the note collection.
type RefreshNotes struct{}

func (SearchNotes) isEvent()   {}
func (SortNotes) isEvent()     {}
func (FilterNotes) isEvent()   {}
func (FilterByColor) isEvent() {}
func (RefreshNotes) isEvent()  {}
