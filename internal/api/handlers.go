package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/imagecodec"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/noteservice"
	"github.com/starford/jotter/internal/query"
)

// Handler holds API route handlers.
type Handler struct {
	svc     *noteservice.Service
	palette models.Palette
	images  imagecodec.Limits
}

// NewHandler creates a new Handler. New notes without a color get a random
// entry of palette; uploaded images are normalized within images.
func NewHandler(svc *noteservice.Service, palette models.Palette, images imagecodec.Limits) *Handler {
	return &Handler{svc: svc, palette: palette, images: images}
}

// noteID parses the {id} URL parameter.
func noteID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("id", "invalid note id")
	}
	return id, nil
}

// parseOptions reads q, filter, color and sort from the query string. A
// color without an explicit filter implies by_color.
func parseOptions(r *http.Request) (query.Options, error) {
	v := r.URL.Query()
	opts := query.Options{SearchQuery: v.Get("q")}

	var err error
	if opts.DateFilter, err = query.ParseDateFilter(v.Get("filter")); err != nil {
		return opts, apperr.Validation("filter", err.Error())
	}
	if opts.SortOrder, err = query.ParseSortOrder(v.Get("sort")); err != nil {
		return opts, apperr.Validation("sort", err.Error())
	}
	if raw := v.Get("color"); raw != "" {
		c, err := models.ParseColor(raw)
		if err != nil {
			return opts, apperr.Validation("color", "invalid color")
		}
		opts.SelectedColor = &c
		if v.Get("filter") == "" {
			opts.DateFilter = query.ByColor
		}
	}
	return opts, nil
}

// loadNote fetches the note named by {id}, mapping absence to ErrNotFound.
func (h *Handler) loadNote(r *http.Request) (*models.Note, error) {
	id, err := noteID(r)
	if err != nil {
		return nil, err
	}
	note, err := h.svc.GetNoteByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, apperr.ErrNotFound
	}
	return note, nil
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes filtered and sorted
//	@Tags			notes
//	@Produce		json
//	@Param			q		query		string	false	"Case-insensitive text in title or description"
//	@Param			filter	query		string	false	"Category filter"	Enums(all, today, this_week, this_month, by_color)
//	@Param			color	query		string	false	"ARGB hex color for by_color"
//	@Param			sort	query		string	false	"Sort order"	Enums(date_desc, date_asc, title_asc, title_desc, color)
//	@Success		200		{object}	NoteListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	opts, err := parseOptions(r)
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	notes, err := h.svc.Query(r.Context(), opts)
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteList(notes))
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		int	true	"Note id"
//	@Success		200	{object}	NoteResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.loadNote(r)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponse(*note))
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note, or replace it when id is given
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to store"
//	@Success		201		{object}	NoteResponse
//	@Success		200		{object}	NoteResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 20<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	note, err := h.noteFromRequest(req)
	if err != nil {
		writeError(w, "create note", err)
		return
	}

	created, err := h.svc.SaveNote(r.Context(), note)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toNoteResponse(*note))
}

func (h *Handler) noteFromRequest(req CreateNoteRequest) (*models.Note, error) {
	// Ids below 1 would be stored but unreachable through /notes/{id}.
	if req.ID != nil && *req.ID <= 0 {
		return nil, apperr.Validation("id", "invalid note id")
	}
	note := &models.Note{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
	}

	if req.Timestamp != nil {
		note.Timestamp = *req.Timestamp
	} else {
		note.Timestamp = models.NowMillis()
	}

	if req.Color != nil {
		c, err := models.ParseColor(*req.Color)
		if err != nil {
			return nil, apperr.Validation("color", "invalid color")
		}
		note.Color = c
	} else {
		note.Color = h.palette.Random()
	}

	if req.Image != nil && *req.Image != "" {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(*req.Image))
		if err != nil {
			return nil, apperr.Validation("image", "image is not valid base64")
		}
		img, _, err := imagecodec.Normalize(raw, h.images)
		if err != nil {
			return nil, err
		}
		note.Image = img
	}
	return note, nil
}

// DeleteNote handles DELETE /api/notes/{id}. Deleting a missing note
// succeeds.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	int	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		writeError(w, "delete note", err)
		return
	}
	if err := h.svc.DeleteNote(r.Context(), models.Note{ID: &id}); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Case-sensitive title search
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Title substring"
//	@Success		200	{object}	NoteListResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	notes, err := h.svc.SearchTitles(r.Context(), q)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteList(notes))
}

// Palette handles GET /api/palette.
//
//	@Summary		List the note color palette
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	PaletteResponse
//	@Security		BearerAuth
//	@Router			/palette [get]
func (h *Handler) Palette(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PaletteResponse{Colors: h.palette.Hex()})
}
