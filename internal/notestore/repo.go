package notestore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/models"
)

const selectNotes = `SELECT id, title, description, timestamp, color, image FROM notes`

// Subscribe returns a subscription that receives the full collection now and
// after every subsequent write.
func (db *DB) Subscribe(ctx context.Context) (*Subscription, error) {
	return db.subscribe(ctx, nil)
}

// SubscribeTitleSearch is Subscribe restricted to notes whose title contains
// query (case-sensitive).
func (db *DB) SubscribeTitleSearch(ctx context.Context, query string) (*Subscription, error) {
	return db.subscribe(ctx, func(all []models.Note) []models.Note {
		out := make([]models.Note, 0, len(all))
		for _, n := range all {
			if strings.Contains(n.Title, query) {
				out = append(out, n)
			}
		}
		return out
	})
}

func (db *DB) subscribe(ctx context.Context, filter func([]models.Note) []models.Note) (*Subscription, error) {
	// Holding writeMu keeps a concurrent write from publishing between the
	// initial snapshot and registration.
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	snapshot, err := db.List(ctx)
	if err != nil {
		return nil, err
	}

	sub := db.feed.newSubscription(filter)
	db.feed.subscribe(sub, snapshot)

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		case <-db.feed.stopped:
		}
	}()
	return sub, nil
}

// Subscribers returns the number of active subscriptions.
func (db *DB) Subscribers() int {
	return db.feed.count()
}

// List returns every stored note in storage order.
func (db *DB) List(ctx context.Context) ([]models.Note, error) {
	notes := []models.Note{}
	if err := db.conn.SelectContext(ctx, &notes, selectNotes+` ORDER BY id`); err != nil {
		return nil, apperr.Storage("notestore: list", err)
	}
	return notes, nil
}

// GetByID returns the note with id, or nil when there is none.
func (db *DB) GetByID(ctx context.Context, id int64) (*models.Note, error) {
	var n models.Note
	err := db.conn.GetContext(ctx, &n, selectNotes+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("notestore: get", err)
	}
	return &n, nil
}

// SearchByTitle returns notes whose title contains query (case-sensitive).
func (db *DB) SearchByTitle(ctx context.Context, query string) ([]models.Note, error) {
	notes := []models.Note{}
	if err := db.conn.SelectContext(ctx, &notes, selectNotes+` WHERE instr(title, ?) > 0 ORDER BY id`, query); err != nil {
		return nil, apperr.Storage("notestore: search", err)
	}
	return notes, nil
}

// Upsert inserts note, or replaces the stored row with the same id.
// A present id that matches no row is inserted with that id. On success
// note.ID holds the stored id.
func (db *DB) Upsert(ctx context.Context, note *models.Note) error {
	_, err := db.Save(ctx, note)
	return err
}

// Save is Upsert that also reports whether a new row was created. The
// report is decided under the write lock, so it matches the committed write.
func (db *DB) Save(ctx context.Context, note *models.Note) (created bool, err error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	row := *note
	if len(row.Image) == 0 {
		row.Image = nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return false, apperr.Storage("notestore: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	kind := KindCreated
	var id int64
	if row.ID == nil {
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO notes (title, description, timestamp, color, image)
			VALUES (:title, :description, :timestamp, :color, :image)
		`, row)
		if err != nil {
			return false, apperr.Storage("notestore: insert", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return false, apperr.Storage("notestore: last insert id", err)
		}
	} else {
		id = *row.ID
		var exists int
		err := tx.GetContext(ctx, &exists, `SELECT 1 FROM notes WHERE id = ?`, id)
		switch {
		case err == nil:
			kind = KindUpdated
		case !errors.Is(err, sql.ErrNoRows):
			return false, apperr.Storage("notestore: lookup", err)
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO notes (id, title, description, timestamp, color, image)
			VALUES (:id, :title, :description, :timestamp, :color, :image)
			ON CONFLICT(id) DO UPDATE SET
				title       = excluded.title,
				description = excluded.description,
				timestamp   = excluded.timestamp,
				color       = excluded.color,
				image       = excluded.image
		`, row)
		if err != nil {
			return false, apperr.Storage("notestore: upsert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, apperr.Storage("notestore: commit", err)
	}

	note.ID = models.Int64(id)
	db.notify(ctx, kind, id)
	return kind == KindCreated, nil
}

// Delete removes the row with note's id. Deleting an unsaved or unknown
// note is a no-op.
func (db *DB) Delete(ctx context.Context, note models.Note) error {
	if note.ID == nil {
		return nil
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, *note.ID)
	if err != nil {
		return apperr.Storage("notestore: delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage("notestore: rows affected", err)
	}
	if n > 0 {
		db.notify(ctx, KindDeleted, *note.ID)
	}
	return nil
}

// notify publishes a fresh snapshot and runs the change callback.
// Callers hold writeMu.
func (db *DB) notify(ctx context.Context, kind string, id int64) {
	snapshot, err := db.List(context.WithoutCancel(ctx))
	if err != nil {
		db.logger.Warn("notestore: snapshot after write failed",
			slog.String("kind", kind),
			slog.Int64("id", id),
			slog.String("error", err.Error()))
	} else {
		db.feed.publish(snapshot)
	}
	if db.onChange != nil {
		db.onChange(kind, id)
	}
}
