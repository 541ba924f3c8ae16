/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Seednode/quizbox/category"
	"github.com/Seednode/quizbox/library"
	"github.com/julienschmidt/httprouter"
)

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// GameSummary is a library listing entry.
type GameSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Categories int       `json:"categories"`
	Answers    int       `json:"answers"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
}

func summarize(g *library.Game) GameSummary {
	return GameSummary{
		ID:         g.ID,
		Title:      g.Title,
		Categories: len(g.Categories),
		Answers:    g.AnswerCount(),
		Created:    g.Created,
		Updated:    g.Updated,
	}
}

type gameRequest struct {
	Title      string              `json:"title"`
	Categories []category.Category `json:"categories"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", errBadRequest, err)
	}

	return nil
}

func exportFilename(title string, f library.Format) string {
	name := strings.Trim(unsafeFilename.ReplaceAllString(title, "-"), "-.")
	if name == "" {
		name = "game"
	}
	return name + f.Extension()
}

func serveListGames(cfg *Config, lib *library.Library, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		q := r.URL.Query()

		order, err := library.ParseSort(q.Get("sort"))
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		games, err := lib.List(r.Context(), library.ListOptions{Search: q.Get("search"), Sort: order})
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		out := make([]GameSummary, len(games))
		for i, g := range games {
			out[i] = summarize(g)
		}

		serveJSON(cfg, w, http.StatusOK, out, errs)
	}
}

func serveCreateGame(cfg *Config, lib *library.Library, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req gameRequest
		if err := decodeJSON(w, r, cfg.maxUpload, &req); err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		g := &library.Game{Title: strings.TrimSpace(req.Title), Categories: req.Categories}
		if err := lib.Put(r.Context(), g); err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		logf(cfg, "GAMES: Created %q (%s) for %s", g.Title, g.ID, realIP(r))

		serveJSON(cfg, w, http.StatusCreated, g, errs)
	}
}

func serveGetGame(cfg *Config, lib *library.Library, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		g, err := lib.Get(r.Context(), p.ByName("id"))
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		serveJSON(cfg, w, http.StatusOK, g, errs)
	}
}

func serveUpdateGame(cfg *Config, lib *library.Library, im *ImportManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		var req gameRequest
		if err := decodeJSON(w, r, cfg.maxUpload, &req); err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		g, err := lib.Get(r.Context(), p.ByName("id"))
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		g.Title = strings.TrimSpace(req.Title)
		g.Categories = req.Categories

		err = im.exclusive(g.ID, func() error {
			return lib.Put(r.Context(), g)
		})
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		logf(cfg, "GAMES: Updated %q (%s) for %s", g.Title, g.ID, realIP(r))

		serveJSON(cfg, w, http.StatusOK, g, errs)
	}
}

func serveDeleteGame(cfg *Config, lib *library.Library, im *ImportManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		id := p.ByName("id")

		err := im.exclusive(id, func() error {
			return lib.Delete(r.Context(), id)
		})
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		logf(cfg, "GAMES: Deleted %s for %s", id, realIP(r))

		serveJSON(cfg, w, http.StatusNoContent, nil, errs)
	}
}

func serveDuplicateGame(cfg *Config, lib *library.Library, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		dup, err := lib.Duplicate(r.Context(), p.ByName("id"))
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		logf(cfg, "GAMES: Duplicated %s as %q (%s)", p.ByName("id"), dup.Title, dup.ID)

		serveJSON(cfg, w, http.StatusCreated, dup, errs)
	}
}

func serveExportGame(cfg *Config, lib *library.Library, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		format, err := library.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		g, err := lib.Get(r.Context(), p.ByName("id"))
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		var buf bytes.Buffer
		if err := library.Encode(&buf, g, format); err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		serveAttachment(cfg, w, exportFilename(g.Title, format), format.ContentType(), buf.Bytes(), errs)

		logf(cfg, "SERVE: Exported %q as %s (%s) to %s in %s",
			g.Title,
			format,
			humanReadableSize(int64(buf.Len())),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// serveImportGame stores an uploaded game file as a new game.
func serveImportGame(cfg *Config, lib *library.Library, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		name, data, err := readUpload(w, r, "file", cfg.maxUpload)
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		format := library.FormatFromFilename(name)
		if f := r.FormValue("format"); f != "" {
			format, err = library.ParseFormat(f)
			if err != nil {
				serveError(cfg, w, r, err, errs)

				return
			}
		}

		g, err := library.Decode(bytes.NewReader(data), format)
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		if err := lib.Put(r.Context(), g); err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		logf(cfg, "GAMES: Imported %q (%s) from %s", g.Title, g.ID, name)

		serveJSON(cfg, w, http.StatusCreated, g, errs)
	}
}

func registerGames(cfg *Config, lib *library.Library, im *ImportManager, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/api/games", serveListGames(cfg, lib, errs))
	mux.POST(cfg.prefix+"/api/games", serveCreateGame(cfg, lib, errs))
	mux.GET(cfg.prefix+"/api/games/:id", serveGetGame(cfg, lib, errs))
	mux.PUT(cfg.prefix+"/api/games/:id", serveUpdateGame(cfg, lib, im, errs))
	mux.DELETE(cfg.prefix+"/api/games/:id", serveDeleteGame(cfg, lib, im, errs))
	mux.POST(cfg.prefix+"/api/games/:id/duplicate", serveDuplicateGame(cfg, lib, errs))
	mux.GET(cfg.prefix+"/api/games/:id/export", serveExportGame(cfg, lib, errs))

	// Game files are posted outside /api/games/ since httprouter does not let
	// a static segment share a position with :id.
	mux.POST(cfg.prefix+"/api/library/import", serveImportGame(cfg, lib, errs))
}
