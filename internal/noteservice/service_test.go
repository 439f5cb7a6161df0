package noteservice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/notestore"
	"github.com/starford/jotter/internal/noteservice"
	"github.com/starford/jotter/internal/query"
	"github.com/starford/jotter/internal/testutil"
)

// faultyStore fails every write with a storage error and counts calls.
type faultyStore struct {
	notestore.Store
	upserts int
}

func (f *faultyStore) Save(context.Context, *models.Note) (bool, error) {
	f.upserts++
	return false, apperr.Storage("fake: upsert", errors.New("disk full"))
}

func TestAddNote_Validation(t *testing.T) {
	cases := []struct {
		name        string
		title, desc string
		image       []byte
		wantMsg     string
	}{
		{"empty title", "", "d", nil, noteservice.MsgTitleEmpty},
		{"blank title", " \t\n", "d", nil, noteservice.MsgTitleEmpty},
		{"both blank reports title", "", "", nil, noteservice.MsgTitleEmpty},
		{"empty description", "t", "", nil, noteservice.MsgDescriptionEmpty},
		{"blank description with image", "t", "   ", []byte{1}, noteservice.MsgDescriptionEmpty},
		{"valid without image", "t", "d", nil, ""},
		{"valid with image", "t", "d", []byte{1, 2, 3}, ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			svc := noteservice.NewService(testutil.TestStore(t))
			n := &models.Note{Title: c.title, Description: c.desc, Image: c.image, Timestamp: 1}
			err := svc.AddNote(context.Background(), n)

			if c.wantMsg == "" {
				require.NoError(t, err)
				assert.NotNil(t, n.ID)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrValidation))
			assert.Equal(t, c.wantMsg, err.Error())
			assert.Nil(t, n.ID, "rejected note must not be stored")
		})
	}
}

func TestAddNote_ValidationDoesNotTouchStorage(t *testing.T) {
	fs := &faultyStore{}
	svc := noteservice.NewService(fs)

	err := svc.AddNote(context.Background(), &models.Note{Title: "", Description: "d"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Zero(t, fs.upserts)
}

func TestAddNote_StorageFailurePropagates(t *testing.T) {
	fs := &faultyStore{}
	svc := noteservice.NewService(fs)

	err := svc.AddNote(context.Background(), &models.Note{Title: "t", Description: "d"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrStorage))
	assert.False(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, 1, fs.upserts, "no retries")
}

func TestRoundTripAndDelete(t *testing.T) {
	svc := noteservice.NewService(testutil.TestStore(t))
	ctx := context.Background()

	n := &models.Note{Title: "Trip", Description: "pack", Timestamp: 123, Color: 0xFFB2EBF2}
	require.NoError(t, svc.AddNote(ctx, n))

	got, err := svc.GetNoteByID(ctx, *n.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *n, *got)

	require.NoError(t, svc.DeleteNote(ctx, *n))
	require.NoError(t, svc.DeleteNote(ctx, *n))

	got, err = svc.GetNoteByID(ctx, *n.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListNotesStream(t *testing.T) {
	svc := noteservice.NewService(testutil.TestStore(t))
	ctx := context.Background()

	sub, err := svc.ListNotes(ctx)
	require.NoError(t, err)
	defer sub.Close()

	assert.Empty(t, <-sub.C())
	require.NoError(t, svc.AddNote(ctx, &models.Note{Title: "a", Description: "b"}))

	select {
	case notes := <-sub.C():
		assert.Len(t, notes, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no emission after AddNote")
	}
}

func TestSearchNotesAndQuery(t *testing.T) {
	svc := noteservice.NewService(testutil.TestStore(t))
	ctx := context.Background()
	for i, title := range []string{"Grocery List", "grocery run", "Work"} {
		require.NoError(t, svc.AddNote(ctx, &models.Note{Title: title, Description: "d", Timestamp: int64(i)}))
	}

	sub, err := svc.SearchNotes(ctx, "Grocery")
	require.NoError(t, err)
	defer sub.Close()
	assert.Len(t, <-sub.C(), 1)

	titles, err := svc.SearchTitles(ctx, "rocery")
	require.NoError(t, err)
	assert.Len(t, titles, 2)

	got, err := svc.Query(ctx, query.Options{SearchQuery: "grocery", SortOrder: query.DateDesc})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "grocery run", got[0].Title)
}

func TestAddNote_NilNote(t *testing.T) {
	fs := &faultyStore{}
	svc := noteservice.NewService(fs)

	err := svc.AddNote(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, noteservice.MsgNoteMissing, err.Error())
	assert.Zero(t, fs.upserts)
}

func TestValidate_ReportsField(t *testing.T) {
	err := noteservice.Validate(models.Note{Title: "t", Description: "\t"})
	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "description", verr.Field)
	assert.Equal(t, noteservice.MsgDescriptionEmpty, verr.Message)
}

func TestSaveNote_ReportsCreated(t *testing.T) {
	svc := noteservice.NewService(testutil.TestStore(t))
	ctx := context.Background()

	n := &models.Note{Title: "t", Description: "d"}
	created, err := svc.SaveNote(ctx, n)
	require.NoError(t, err)
	assert.True(t, created)

	n.Title = "t2"
	created, err = svc.SaveNote(ctx, n)
	require.NoError(t, err)
	assert.False(t, created)

	created, err = svc.SaveNote(ctx, &models.Note{ID: models.Int64(77), Title: "x", Description: "y"})
	require.NoError(t, err)
	assert.True(t, created, "unknown id is inserted")
}
