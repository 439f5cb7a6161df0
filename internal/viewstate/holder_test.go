package viewstate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/notestore"
	"github.com/starford/jotter/internal/noteservice"
	"github.com/starford/jotter/internal/query"
	"github.com/starford/jotter/internal/testutil"
)

var fixedNow = time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// countingSource records how many times the holder subscribed.
type countingSource struct {
	Source
	calls atomic.Int32
}

func (c *countingSource) ListNotes(ctx context.Context) (*notestore.Subscription, error) {
	c.calls.Add(1)
	return c.Source.ListNotes(ctx)
}

func titles(notes []models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Title
	}
	return out
}

// waitFor reads updates until pred holds.
func waitFor(t *testing.T, h *Holder, pred func(State) bool) State {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if st := h.State(); pred(st) {
			return st
		}
		select {
		case <-h.Updates():
		case <-deadline:
			t.Fatalf("state never matched; last = %+v", h.State())
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func setup(t *testing.T, opts ...Option) (*noteservice.Service, *Holder, context.CancelFunc) {
	t.Helper()
	svc := noteservice.NewService(testutil.TestStore(t))
	ctx := context.Background()
	for i, title := range []string{"Work", "Trip", "grocery"} {
		n := &models.Note{
			Title:       title,
			Description: "d",
			Timestamp:   fixedNow.UnixMilli() + int64(i)*1000,
			Color:       int64(i % 2),
		}
		require.NoError(t, svc.AddNote(ctx, n))
	}

	h := New(svc, append([]Option{WithClock(clock)}, opts...)...)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- h.Run(runCtx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return svc, h, cancel
}

func TestInitialStateStartsLoading(t *testing.T) {
	h := New(nil)
	st := h.State()
	assert.True(t, st.Loading)
	assert.Empty(t, st.Notes)
	assert.Equal(t, query.DateDesc, st.Options.SortOrder)
}

func TestRunDerivesVisibleList(t *testing.T) {
	_, h, _ := setup(t, WithOptions(query.Options{SortOrder: query.TitleAsc}))

	st := waitFor(t, h, func(s State) bool { return !s.Loading && len(s.Notes) == 3 })
	assert.Equal(t, []string{"grocery", "Trip", "Work"}, titles(st.Notes))
}

func TestEventsReDerive(t *testing.T) {
	_, h, _ := setup(t)
	waitFor(t, h, func(s State) bool { return len(s.Notes) == 3 })

	h.OnEvent(SortNotes{Order: query.DateAsc})
	assert.Equal(t, []string{"Work", "Trip", "grocery"}, titles(h.State().Notes))

	h.OnEvent(SearchNotes{Query: "TRIP"})
	assert.Equal(t, []string{"Trip"}, titles(h.State().Notes))

	h.OnEvent(SearchNotes{Query: ""})
	h.OnEvent(FilterNotes{Filter: query.ByColor})
	assert.Len(t, h.State().Notes, 3, "by color without selection passes through")

	h.OnEvent(FilterByColor{Color: models.Int64(0)})
	assert.Equal(t, []string{"Work", "grocery"}, titles(h.State().Notes))

	h.OnEvent(FilterNotes{Filter: query.Today})
	st := h.State()
	assert.Nil(t, st.Options.SelectedColor, "leaving by-color clears the selection")
	assert.Len(t, st.Notes, 3)
}

func TestCollectionChangeReDerives(t *testing.T) {
	svc, h, _ := setup(t, WithOptions(query.Options{SearchQuery: "plan"}))
	waitFor(t, h, func(s State) bool { return !s.Loading })
	assert.Empty(t, h.State().Notes)

	require.NoError(t, svc.AddNote(context.Background(), &models.Note{Title: "Plans", Description: "d"}))
	st := waitFor(t, h, func(s State) bool { return len(s.Notes) == 1 })
	assert.Equal(t, "Plans", st.Notes[0].Title)
}

func TestRefreshResubscribes(t *testing.T) {
	svc := noteservice.NewService(testutil.TestStore(t))
	src := &countingSource{Source: svc}
	h := New(src, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	waitFor(t, h, func(s State) bool { return !s.Loading })
	h.OnEvent(RefreshNotes{})
	waitFor(t, h, func(State) bool { return src.calls.Load() >= 2 })
	waitFor(t, h, func(s State) bool { return !s.Loading })

	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))
}

// gatedSource holds every resubscription until gate is closed.
type gatedSource struct {
	Source
	calls atomic.Int32
	gate  chan struct{}
}

func (g *gatedSource) ListNotes(ctx context.Context) (*notestore.Subscription, error) {
	if g.calls.Add(1) > 1 {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.Source.ListNotes(ctx)
}

func TestRefreshPublishesLoading(t *testing.T) {
	svc := noteservice.NewService(testutil.TestStore(t))
	require.NoError(t, svc.AddNote(context.Background(), &models.Note{Title: "a", Description: "d"}))
	src := &gatedSource{Source: svc, gate: make(chan struct{})}
	h := New(src, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	waitFor(t, h, func(s State) bool { return !s.Loading && len(s.Notes) == 1 })
	select {
	case <-h.Updates():
	default:
	}

	h.OnEvent(RefreshNotes{})
	select {
	case st := <-h.Updates():
		assert.True(t, st.Loading)
		assert.Len(t, st.Notes, 1, "visible notes are kept while reloading")
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not publish a loading state")
	}

	close(src.gate)
	waitFor(t, h, func(s State) bool { return !s.Loading })
}

func TestConcurrentEventsSettleOnLatest(t *testing.T) {
	_, h, _ := setup(t)
	waitFor(t, h, func(s State) bool { return len(s.Notes) == 3 })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				h.OnEvent(SortNotes{Order: query.TitleDesc})
			} else {
				h.OnEvent(SearchNotes{Query: "r"})
			}
		}(i)
	}
	wg.Wait()
	h.OnEvent(SortNotes{Order: query.TitleAsc})

	st := h.State()
	assert.Equal(t, query.TitleAsc, st.Options.SortOrder)
	assert.Equal(t, []string{"grocery", "Trip", "Work"}, titles(st.Notes))
}

func TestRunReturnsWhenFeedCloses(t *testing.T) {
	f := testutil.TestStore(t)
	h := New(noteservice.NewService(f))

	done := make(chan error, 1)
	go func() { done <- h.Run(context.Background()) }()
	waitFor(t, h, func(s State) bool { return !s.Loading })

	require.NoError(t, f.Close())
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrFeedClosed))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after store close")
	}
}
