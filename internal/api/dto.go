package api

import (
	"fmt"

	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/viewstate"
)

// CreateNoteRequest is the request body for creating or replacing a note.
type CreateNoteRequest struct {
	ID          *int64  `json:"id,omitempty" example:"12"`
	Title       string  `json:"title" example:"Groceries" validate:"required"`
	Description string  `json:"description" example:"milk, eggs" validate:"required"`
	Color       *string `json:"color,omitempty" example:"#FFB2EBF2"`
	Timestamp   *int64  `json:"timestamp,omitempty" example:"1760443200000"`
	// Image is base64 encoded png, jpeg, gif or webp.
	Image *string `json:"image,omitempty"`
}

// NoteResponse is a note as returned by the API. Image bytes are served
// separately from ImageURL.
type NoteResponse struct {
	ID          int64  `json:"id" example:"12" validate:"required"`
	Title       string `json:"title" example:"Groceries" validate:"required"`
	Description string `json:"description" example:"milk, eggs" validate:"required"`
	Timestamp   int64  `json:"timestamp" example:"1760443200000" validate:"required"`
	Color       string `json:"color" example:"#FFB2EBF2" validate:"required"`
	HasImage    bool   `json:"has_image"`
	ImageURL    string `json:"image_url,omitempty" example:"/api/notes/12/image"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteResponse `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// PaletteResponse lists the configured note colors.
type PaletteResponse struct {
	Colors []string `json:"colors" validate:"required"`
}

// ViewResponse is the payload of a "view" event on the view stream.
type ViewResponse struct {
	Query   string         `json:"query"`
	Filter  string         `json:"filter"`
	Color   string         `json:"color,omitempty"`
	Sort    string         `json:"sort"`
	Loading bool           `json:"loading"`
	Notes   []NoteResponse `json:"notes"`
	Total   int            `json:"total"`
}

func toNoteResponse(n models.Note) NoteResponse {
	resp := NoteResponse{
		ID:          n.IDValue(),
		Title:       n.Title,
		Description: n.Description,
		Timestamp:   n.Timestamp,
		Color:       models.FormatColor(n.Color),
		HasImage:    len(n.Image) > 0,
	}
	if resp.HasImage {
		resp.ImageURL = fmt.Sprintf("/api/notes/%d/image", resp.ID)
	}
	return resp
}

func toNoteList(notes []models.Note) NoteListResponse {
	out := make([]NoteResponse, len(notes))
	for i, n := range notes {
		out[i] = toNoteResponse(n)
	}
	return NoteListResponse{Notes: out, Total: len(out)}
}

func toViewResponse(st viewstate.State) ViewResponse {
	list := toNoteList(st.Notes)
	resp := ViewResponse{
		Query:   st.Options.SearchQuery,
		Filter:  st.Options.DateFilter.String(),
		Sort:    st.Options.SortOrder.String(),
		Loading: st.Loading,
		Notes:   list.Notes,
		Total:   list.Total,
	}
	if st.Options.SelectedColor != nil {
		resp.Color = models.FormatColor(*st.Options.SelectedColor)
	}
	return resp
}
