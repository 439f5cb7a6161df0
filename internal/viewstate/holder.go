// Package viewstate holds the filter/sort configuration of a note list view
// together with the visible notes derived from it.
package viewstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/notestore"
	"github.com/starford/jotter/internal/query"
)

// ErrFeedClosed is returned by Run when the note feed ends on its own.
var ErrFeedClosed = errors.New("viewstate: note feed closed")

// Source supplies the note collection stream.
type Source interface {
	ListNotes(ctx context.Context) (*notestore.Subscription, error)
}

// State is an immutable snapshot of the view.
type State struct {
	Options query.Options
	Notes   []models.Note
	Loading bool
}

// Option configures a Holder.
type Option func(*Holder)

// WithOptions sets the initial filter/sort configuration.
func WithOptions(opts query.Options) Option {
	return func(h *Holder) {
		h.opts = copyOptions(opts)
	}
}

// WithClock overrides the wall clock used for date filters.
func WithClock(now func() time.Time) Option {
	return func(h *Holder) {
		h.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Holder) {
		h.logger = l
	}
}

// Holder re-derives the visible notes whenever the configuration or the
// underlying collection changes. Every trigger starts a new generation; a
// recomputation only commits if no newer one has started since, so the
// published list always pairs the latest configuration with the latest
// collection.
type Holder struct {
	src    Source
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	opts    query.Options
	all     []models.Note
	visible []models.Note
	loading bool
	gen     uint64

	updates chan State
	refresh chan struct{}
}

// New creates a holder reading from src. Call Run to start consuming.
func New(src Source, opts ...Option) *Holder {
	h := &Holder{
		src:     src,
		now:     time.Now,
		logger:  slog.Default(),
		visible: []models.Note{},
		loading: true,
		updates: make(chan State, 1),
		refresh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run subscribes to the source and folds every emission into the view until
// ctx is cancelled or the feed closes.
func (h *Holder) Run(ctx context.Context) error {
	for {
		sub, err := h.src.ListNotes(ctx)
		if err != nil {
			return err
		}
		err = h.consume(ctx, sub)
		sub.Close()
		if !errors.Is(err, errRefresh) {
			return err
		}
		h.logger.Debug("viewstate: resubscribing")
	}
}

var errRefresh = errors.New("refresh")

func (h *Holder) consume(ctx context.Context, sub *notestore.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.refresh:
			return errRefresh
		case notes, ok := <-sub.C():
			if !ok {
				return ErrFeedClosed
			}
			h.mu.Lock()
			h.all = notes
			h.loading = false
			h.mu.Unlock()
			h.recompute()
		}
	}
}

// OnEvent applies a user action and re-derives the visible notes.
func (h *Holder) OnEvent(ev Event) {
	h.mu.Lock()
	switch e := ev.(type) {
	case SearchNotes:
		h.opts.SearchQuery = e.Query
	case SortNotes:
		h.opts.SortOrder = e.Order
	case FilterNotes:
		h.opts.DateFilter = e.Filter
		if e.Filter != query.ByColor {
			h.opts.SelectedColor = nil
		}
	case FilterByColor:
		h.opts.SelectedColor = copyColor(e.Color)
	case RefreshNotes:
		h.loading = true
		h.emitLocked()
		h.mu.Unlock()
		select {
		case h.refresh <- struct{}{}:
		default:
		}
		return
	default:
		h.mu.Unlock()
		h.logger.Warn("viewstate: unhandled event", slog.Any("event", ev))
		return
	}
	h.mu.Unlock()
	h.recompute()
}

func (h *Holder) recompute() {
	h.mu.Lock()
	h.gen++
	gen := h.gen
	opts := copyOptions(h.opts)
	notes := h.all
	h.mu.Unlock()

	visible := query.Apply(notes, opts, h.now())

	h.mu.Lock()
	defer h.mu.Unlock()
	if gen != h.gen {
		return
	}
	h.visible = visible
	h.emitLocked()
}

// emitLocked replaces any unread state with the current one. Senders hold
// h.mu, so after the drain the send cannot block.
func (h *Holder) emitLocked() {
	st := h.stateLocked()
	select {
	case h.updates <- st:
	default:
		select {
		case <-h.updates:
		default:
		}
		h.updates <- st
	}
}

// State returns the current view.
func (h *Holder) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stateLocked()
}

func (h *Holder) stateLocked() State {
	return State{
		Options: copyOptions(h.opts),
		Notes:   h.visible,
		Loading: h.loading,
	}
}

// Updates delivers the latest state after each committed recomputation.
// A slow reader only sees the most recent state.
func (h *Holder) Updates() <-chan State {
	return h.updates
}

func copyOptions(o query.Options) query.Options {
	o.SelectedColor = copyColor(o.SelectedColor)
	return o
}

func copyColor(c *int64) *int64 {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}
