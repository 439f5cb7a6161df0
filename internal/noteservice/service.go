// Package noteservice is the use-case layer over the note store: a
// validation gate on the write path and plain forwarding everywhere else.
package noteservice

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/notestore"
	"github.com/starford/jotter/internal/query"
)

// Validation messages shown to users.
const (
	MsgTitleEmpty       = "title empty"
	MsgDescriptionEmpty = "description empty"
	MsgNoteMissing      = "note missing"
)

// Service coordinates note store operations.
type Service struct {
	store notestore.Store
}

// NewService creates a new note service.
func NewService(store notestore.Store) *Service {
	return &Service{store: store}
}

// AddNote validates note and upserts it. The image is optional and never
// inspected. On success note.ID holds the stored id.
func (s *Service) AddNote(ctx context.Context, note *models.Note) error {
	_, err := s.SaveNote(ctx, note)
	return err
}

// SaveNote is AddNote that also reports whether a new note was created
// rather than an existing one replaced.
func (s *Service) SaveNote(ctx context.Context, note *models.Note) (created bool, err error) {
	if note == nil {
		return false, apperr.Validation("note", MsgNoteMissing)
	}
	if err := Validate(*note); err != nil {
		return false, err
	}
	return s.store.Save(ctx, note)
}

// DeleteNote removes note. Deleting a missing note is not an error.
func (s *Service) DeleteNote(ctx context.Context, note models.Note) error {
	return s.store.Delete(ctx, note)
}

// GetNoteByID returns the note with id, or nil when it does not exist.
func (s *Service) GetNoteByID(ctx context.Context, id int64) (*models.Note, error) {
	return s.store.GetByID(ctx, id)
}

// ListNotes subscribes to the full note collection.
func (s *Service) ListNotes(ctx context.Context) (*notestore.Subscription, error) {
	return s.store.Subscribe(ctx)
}

// SearchNotes subscribes to notes whose title contains q (case-sensitive).
func (s *Service) SearchNotes(ctx context.Context, q string) (*notestore.Subscription, error) {
	return s.store.SubscribeTitleSearch(ctx, q)
}

// SearchTitles is the one-shot form of SearchNotes.
func (s *Service) SearchTitles(ctx context.Context, q string) ([]models.Note, error) {
	return s.store.SearchByTitle(ctx, q)
}

// Snapshot returns the current collection in storage order.
func (s *Service) Snapshot(ctx context.Context) ([]models.Note, error) {
	return s.store.List(ctx)
}

// Query returns the current collection filtered and sorted by opts.
func (s *Service) Query(ctx context.Context, opts query.Options) ([]models.Note, error) {
	notes, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return query.Run(notes, opts), nil
}

// Validate reports the first blank required field as a ValidationError.
// Title is checked before description.
func Validate(n models.Note) error {
	fields := []struct {
		name  string
		value string
		msg   string
	}{
		{"title", n.Title, MsgTitleEmpty},
		{"description", n.Description, MsgDescriptionEmpty},
	}
	for _, f := range fields {
		if err := validation.Validate(f.value, notBlank(f.msg)); err != nil {
			return toValidationError(f.name, err)
		}
	}
	return nil
}

// notBlank rejects strings that are empty after trimming whitespace.
func notBlank(msg string) validation.Rule {
	return validation.By(func(v interface{}) error {
		if s, _ := v.(string); strings.TrimSpace(s) == "" {
			return validation.NewError("validation_blank", msg)
		}
		return nil
	})
}

// toValidationError carries the ozzo rule message onto apperr.
func toValidationError(field string, err error) error {
	var verr validation.Error
	if errors.As(err, &verr) {
		return apperr.Validation(field, verr.Message())
	}
	return apperr.Validation(field, err.Error())
}
