package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/jotter/internal/sse"
	"github.com/starford/jotter/internal/viewstate"
)

// StreamView handles GET /api/views/stream. It drives a view state holder
// configured from the query string and sends every visible list it derives
// as a "view" event until the client disconnects.
//
//	@Summary		Stream the filtered, sorted note list
//	@Tags			notes
//	@Produce		text/event-stream
//	@Param			q		query	string	false	"Case-insensitive text in title or description"
//	@Param			filter	query	string	false	"Category filter"
//	@Param			color	query	string	false	"ARGB hex color for by_color"
//	@Param			sort	query	string	false	"Sort order"
//	@Success		200		"SSE stream of ViewResponse"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/views/stream [get]
func (h *Handler) StreamView(w http.ResponseWriter, r *http.Request) {
	opts, err := parseOptions(r)
	if err != nil {
		writeError(w, "stream view", err)
		return
	}

	flusher, ok := sse.PrepareStream(w)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	holder := viewstate.New(h.svc, viewstate.WithOptions(opts))
	runErr := make(chan error, 1)
	go func() { runErr <- holder.Run(ctx) }()

	for {
		select {
		case <-ctx.Done():
			<-runErr
			return
		case err := <-runErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("view stream ended", slog.String("error", err.Error()))
			}
			return
		case st := <-holder.Updates():
			msg, err := sse.Encode(sse.Event{Type: "view", Data: toViewResponse(st)})
			if err != nil {
				slog.Error("view encode failed", slog.String("error", err.Error()))
				continue
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
