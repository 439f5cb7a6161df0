package notefile

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/starford/jotter/internal/imagecodec"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/storage"
)

// Notes is the slice of the note service used for import and export.
type Notes interface {
	Snapshot(ctx context.Context) ([]models.Note, error)
	AddNote(ctx context.Context, note *models.Note) error
}

// Failure records a file that could not be imported.
type Failure struct {
	Path string
	Err  error
}

// Report summarizes an import run.
type Report struct {
	Imported int
	Failed   []Failure
}

// Importer adds markdown files to the note collection. Notes without a
// color get a random palette color; notes without a timestamp get the
// current time; images are normalized to PNG within images.
type Importer struct {
	notes   Notes
	palette models.Palette
	images  imagecodec.Limits
	logger  *slog.Logger
}

// NewImporter creates an importer writing through notes.
func NewImporter(notes Notes, palette models.Palette, images imagecodec.Limits, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{notes: notes, palette: palette, images: images, logger: logger}
}

// Imported is the outcome of a successful ImportFile.
type Imported struct {
	Note models.Note
	// Sources lists the files the note was built from: the markdown file
	// and, when referenced, its image.
	Sources []string
}

// ImportFile reads, parses and stores the markdown file at p.
func (im *Importer) ImportFile(ctx context.Context, src storage.Provider, p string) (*Imported, error) {
	data, err := src.Read(p)
	if err != nil {
		return nil, err
	}
	parsed, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}

	note := parsed.Note
	sources := []string{p}
	if !parsed.HasColor {
		note.Color = im.palette.Random()
	}
	if !parsed.HasTimestamp {
		note.Timestamp = models.NowMillis()
	}
	if parsed.ImageRef != "" {
		imgPath := path.Join(path.Dir(p), parsed.ImageRef)
		raw, err := src.Read(imgPath)
		if err != nil {
			return nil, fmt.Errorf("%s: image: %w", p, err)
		}
		img, _, err := imagecodec.Normalize(raw, im.images)
		if err != nil {
			return nil, fmt.Errorf("%s: image: %w", p, err)
		}
		note.Image = img
		sources = append(sources, imgPath)
	}

	if err := im.notes.AddNote(ctx, &note); err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return &Imported{Note: note, Sources: sources}, nil
}

// ImportDir imports every markdown file under src. A failing file is
// recorded in the report and does not stop the run; only listing errors
// and context cancellation are returned.
func (im *Importer) ImportDir(ctx context.Context, src storage.Provider) (Report, error) {
	var rep Report
	files, err := src.List("")
	if err != nil {
		return rep, err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res, err := im.ImportFile(ctx, src, f.Path)
		if err != nil {
			im.logger.Warn("import: skipped file", slog.String("path", f.Path), slog.String("error", err.Error()))
			rep.Failed = append(rep.Failed, Failure{Path: f.Path, Err: err})
			continue
		}
		im.logger.Debug("import: note added", slog.String("path", f.Path), slog.Int64("id", res.Note.IDValue()))
		rep.Imported++
	}
	return rep, nil
}

// Export writes every note to dst as "<id>-<slug>.md", with its image next
// to it as "<id>-<slug>.png". It returns the number of notes written.
func Export(ctx context.Context, notes Notes, dst storage.Provider) (int, error) {
	all, err := notes.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	for i, n := range all {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		base := BaseName(n)
		imageRef := ""
		if len(n.Image) > 0 {
			imageRef = base + ".png"
			if err := dst.Write(imageRef, n.Image); err != nil {
				return i, err
			}
		}
		data, err := Render(n, imageRef)
		if err != nil {
			return i, err
		}
		if err := dst.Write(base+".md", data); err != nil {
			return i, err
		}
	}
	return len(all), nil
}
