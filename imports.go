/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/quizbox/category"
	"github.com/Seednode/quizbox/conflict"
	"github.com/Seednode/quizbox/importcsv"
	"github.com/Seednode/quizbox/library"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

// importFlow is one CSV import waiting on conflict resolution. Its mutex
// serialises actions so the session only ever sees one caller.
type importFlow struct {
	id     string
	gameID string
	source string
	added  int

	mu         sync.Mutex
	session    *conflict.Session
	lastActive time.Time
}

// ImportView is the state of an import flow as shown to the browser.
type ImportView struct {
	ID            string                 `json:"id"`
	Game          string                 `json:"game"`
	Source        string                 `json:"source"`
	Added         int                    `json:"added"`
	Groups        []conflict.Group       `json:"groups"`
	Resolutions   []*conflict.Resolution `json:"resolutions"`
	Resolved      int                    `json:"resolved"`
	Total         int                    `json:"total"`
	FullyResolved bool                   `json:"fully_resolved"`
}

// ImportResult answers the upload. ID is empty when nothing conflicted.
type ImportResult struct {
	ID        string      `json:"id,omitempty"`
	Added     int         `json:"added"`
	Conflicts int         `json:"conflicts"`
	Import    *ImportView `json:"import,omitempty"`
}

func (f *importFlow) viewLocked() *ImportView {
	resolved, total := f.session.Progress()

	v := &ImportView{
		ID:            f.id,
		Game:          f.gameID,
		Source:        f.source,
		Added:         f.added,
		Groups:        f.session.Groups(),
		Resolutions:   make([]*conflict.Resolution, f.session.Len()),
		Resolved:      resolved,
		Total:         total,
		FullyResolved: f.session.IsFullyResolved(),
	}
	for i := range v.Resolutions {
		if r, ok := f.session.Resolution(i); ok {
			v.Resolutions[i] = &r
		}
	}

	return v
}

// ImportManager holds the open import flows, at most one per game.
type ImportManager struct {
	mu          sync.Mutex
	flows       map[string]*importFlow
	byGame      map[string]string
	lib         *library.Library
	idleTimeout time.Duration
}

func newImportManager(lib *library.Library, idleTimeout time.Duration) *ImportManager {
	return &ImportManager{
		flows:       make(map[string]*importFlow),
		byGame:      make(map[string]string),
		lib:         lib,
		idleTimeout: idleTimeout,
	}
}

// reserve claims the game for a new flow. The placeholder id is replaced by
// open or released by drop.
func (im *ImportManager) reserve(gameID string) (string, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	if _, ok := im.byGame[gameID]; ok {
		return "", errImportActive
	}

	id := uuid.NewString()
	im.byGame[gameID] = id

	return id, nil
}

func (im *ImportManager) open(f *importFlow) {
	im.mu.Lock()
	defer im.mu.Unlock()

	f.lastActive = time.Now()
	im.flows[f.id] = f
	im.byGame[f.gameID] = f.id
}

func (im *ImportManager) drop(id, gameID string) {
	im.mu.Lock()
	defer im.mu.Unlock()

	delete(im.flows, id)
	if im.byGame[gameID] == id {
		delete(im.byGame, gameID)
	}
}

func (im *ImportManager) get(id string) (*importFlow, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	f, ok := im.flows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoImport, id)
	}

	return f, nil
}

// exclusive runs fn only when no import flow holds gameID. Reservations
// wait for fn, so a flow never sees the game change underneath it.
func (im *ImportManager) exclusive(gameID string, fn func() error) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	if _, ok := im.byGame[gameID]; ok {
		return errImportActive
	}

	return fn()
}

// start parses data and adds every non-conflicting row to the game. When
// rows collide with existing categories a flow is opened for them.
func (im *ImportManager) start(ctx context.Context, gameID, source string, data []byte, header int, selection []int) (ImportResult, error) {
	if _, err := im.lib.Get(ctx, gameID); err != nil {
		return ImportResult{}, err
	}

	rows, err := importcsv.Parse(bytes.NewReader(data))
	if err != nil {
		return ImportResult{}, err
	}
	if header >= 0 {
		if rows, err = importcsv.WithHeader(rows, header); err != nil {
			return ImportResult{}, err
		}
	}
	if rows, err = importcsv.Select(rows, selection); err != nil {
		return ImportResult{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	id, err := im.reserve(gameID)
	if err != nil {
		return ImportResult{}, err
	}

	store := im.lib.Categories(gameID)

	groups, clean, err := conflict.Detect(ctx, store, importcsv.Incoming(rows, source))
	if err != nil {
		im.drop(id, gameID)
		return ImportResult{}, err
	}

	added, err := conflict.AddClean(ctx, store, clean)
	if err != nil {
		im.drop(id, gameID)
		return ImportResult{Added: added}, err
	}

	if len(groups) == 0 {
		im.drop(id, gameID)
		return ImportResult{Added: added}, nil
	}

	session, err := conflict.NewSession(store, groups)
	if err != nil {
		im.drop(id, gameID)
		return ImportResult{Added: added}, err
	}

	f := &importFlow{
		id:      id,
		gameID:  gameID,
		source:  source,
		added:   added,
		session: session,
	}
	view := f.viewLocked()
	im.open(f)

	return ImportResult{
		ID:        id,
		Added:     added,
		Conflicts: len(groups),
		Import:    view,
	}, nil
}

// with runs fn on the flow while holding its lock.
func (im *ImportManager) with(id string, fn func(f *importFlow) error) error {
	f, err := im.get(id)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session.Closed() {
		return fmt.Errorf("%w: %s", errNoImport, id)
	}
	f.lastActive = time.Now()

	return fn(f)
}

func (im *ImportManager) cancel(id string) error {
	return im.with(id, func(f *importFlow) error {
		f.session.Cancel()
		im.drop(f.id, f.gameID)
		return nil
	})
}

// reap cancels flows idle for longer than the timeout.
func (im *ImportManager) reap(now time.Time) []string {
	cutoff := now.Add(-im.idleTimeout)

	im.mu.Lock()
	var idle []*importFlow
	for _, f := range im.flows {
		idle = append(idle, f)
	}
	im.mu.Unlock()

	var reaped []string
	for _, f := range idle {
		f.mu.Lock()
		if f.lastActive.Before(cutoff) {
			f.session.Cancel()
			im.drop(f.id, f.gameID)
			reaped = append(reaped, f.id)
		}
		f.mu.Unlock()
	}

	return reaped
}

func (im *ImportManager) reaperLoop(ctx context.Context, cfg *Config) {
	ticker := time.NewTicker(im.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, id := range im.reap(now) {
				logf(cfg, "IMPORT: Cancelled idle import %s", id)
			}
		}
	}
}

// ActionRequest is one user decision posted against a flow.
type ActionRequest struct {
	Group     int      `json:"group"`
	Action    string   `json:"action"`
	Candidate *int     `json:"candidate,omitempty"`
	Mode      string   `json:"mode,omitempty"`
	Name      string   `json:"name,omitempty"`
	Answers   []string `json:"answers,omitempty"`
}

func (req ActionRequest) action() (conflict.Action, error) {
	var kind conflict.ActionKind
	if err := kind.UnmarshalText([]byte(req.Action)); err != nil {
		return conflict.Action{}, fmt.Errorf("%w: %w", conflict.ErrInvalidAction, err)
	}

	candidate := -1
	if req.Candidate != nil {
		candidate = *req.Candidate
	}

	needCandidate := func() error {
		if req.Candidate == nil {
			return fmt.Errorf("%w: %s requires a candidate", conflict.ErrInvalidAction, kind)
		}
		return nil
	}

	switch kind {
	case conflict.ActionSkip:
		if candidate < 0 {
			return conflict.SkipGroup(), nil
		}
		return conflict.SkipCandidate(candidate), nil
	case conflict.ActionRename:
		var mode conflict.RenameMode
		if err := mode.UnmarshalText([]byte(req.Mode)); err != nil {
			return conflict.Action{}, fmt.Errorf("%w: %w", conflict.ErrInvalidAction, err)
		}
		if mode == conflict.RenameCustom {
			return conflict.RenameTo(req.Name), nil
		}
		return conflict.RenameAutomatically(), nil
	case conflict.ActionEditName:
		if err := needCandidate(); err != nil {
			return conflict.Action{}, err
		}
		return conflict.EditName(candidate, req.Name), nil
	case conflict.ActionOverwrite:
		if err := needCandidate(); err != nil {
			return conflict.Action{}, err
		}
		return conflict.OverwriteWith(candidate, req.Answers), nil
	}

	return conflict.Action{}, fmt.Errorf("%w: unsupported action %s", conflict.ErrInvalidAction, kind)
}

// parseSelection reads the "select" form value, a comma-separated list of
// row indices. An empty value selects every row.
func parseSelection(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var out []int
	for _, field := range strings.Split(s, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid row selection %q", errBadRequest, field)
		}
		out = append(out, i)
	}

	return out, nil
}

func serveStartImport(cfg *Config, im *ImportManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		name, data, err := readUpload(w, r, "file", cfg.maxUpload)
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		header := -1
		if h := strings.TrimSpace(r.FormValue("header")); h != "" {
			header, err = strconv.Atoi(h)
			if err != nil {
				serveError(cfg, w, r, fmt.Errorf("%w: invalid header row %q", errBadRequest, h), errs)

				return
			}
		}

		selection, err := parseSelection(r.FormValue("select"))
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		res, err := im.start(r.Context(), p.ByName("id"), name, data, header, selection)
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		logf(cfg, "IMPORT: %s (%s) into %s added %d categories with %d conflicts in %s",
			name,
			humanReadableSize(int64(len(data))),
			p.ByName("id"),
			res.Added,
			res.Conflicts,
			time.Since(startTime).Round(time.Microsecond),
		)

		status := http.StatusOK
		if res.ID != "" {
			status = http.StatusCreated
		}

		serveJSON(cfg, w, status, res, errs)
	}
}

func serveGetImport(cfg *Config, im *ImportManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		var view *ImportView

		err := im.with(p.ByName("sid"), func(f *importFlow) error {
			view = f.viewLocked()
			return nil
		})
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		serveJSON(cfg, w, http.StatusOK, view, errs)
	}
}

func serveImportAction(cfg *Config, im *ImportManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		var req ActionRequest
		if err := decodeJSON(w, r, cfg.maxUpload, &req); err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		action, err := req.action()
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		var view *ImportView

		err = im.with(p.ByName("sid"), func(f *importFlow) error {
			if err := f.session.Do(r.Context(), req.Group, action); err != nil {
				return err
			}
			view = f.viewLocked()
			return nil
		})
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		logf(cfg, "IMPORT: %s group %d: %s", p.ByName("sid"), req.Group, action.Kind)

		serveJSON(cfg, w, http.StatusOK, view, errs)
	}
}

func serveApplyImport(cfg *Config, im *ImportManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()
		id := p.ByName("sid")

		var summary conflict.Summary

		err := im.with(id, func(f *importFlow) error {
			defer im.drop(f.id, f.gameID)

			var err error
			summary, err = f.session.ApplyWithProgress(r.Context(), func(done, total int, o conflict.Outcome) {
				logf(cfg, "IMPORT: %s applied %d/%d: %q %s", id, done, total, o.Name, o.Kind)
			})
			return err
		})
		if err != nil {
			var applyErr *conflict.ApplyError
			if errors.As(err, &applyErr) {
				logf(cfg, "IMPORT: %s stopped after %d of %d groups", id, applyErr.Summary.Processed(), applyErr.Total)
			}
			serveError(cfg, w, r, err, errs)

			return
		}

		logf(cfg, "IMPORT: %s applied (%d skipped, %d renamed, %d overwritten) in %s",
			id,
			summary.Skipped,
			summary.Renamed,
			summary.Overwritten,
			time.Since(startTime).Round(time.Microsecond),
		)

		serveJSON(cfg, w, http.StatusOK, summary, errs)
	}
}

func serveCancelImport(cfg *Config, im *ImportManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if err := im.cancel(p.ByName("sid")); err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		logf(cfg, "IMPORT: Cancelled %s for %s", p.ByName("sid"), realIP(r))

		serveJSON(cfg, w, http.StatusNoContent, nil, errs)
	}
}

// categoriesOf is used by the editor to confirm what an import left behind.
func categoriesOf(ctx context.Context, lib *library.Library, gameID string) ([]category.Category, error) {
	return category.Snapshot(ctx, lib.Categories(gameID))
}

func serveGameCategories(cfg *Config, lib *library.Library, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		cats, err := categoriesOf(r.Context(), lib, p.ByName("id"))
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		serveJSON(cfg, w, http.StatusOK, cats, errs)
	}
}

func registerImports(ctx context.Context, cfg *Config, lib *library.Library, mux *httprouter.Router, errs chan<- error) *ImportManager {
	im := newImportManager(lib, cfg.sessionTimeout)
	if cfg.sessionTimeout > 0 {
		go im.reaperLoop(ctx, cfg)
	}

	mux.GET(cfg.prefix+"/api/games/:id/categories", serveGameCategories(cfg, lib, errs))
	mux.POST(cfg.prefix+"/api/games/:id/import", serveStartImport(cfg, im, errs))
	mux.GET(cfg.prefix+"/api/imports/:sid", serveGetImport(cfg, im, errs))
	mux.POST(cfg.prefix+"/api/imports/:sid/actions", serveImportAction(cfg, im, errs))
	mux.POST(cfg.prefix+"/api/imports/:sid/apply", serveApplyImport(cfg, im, errs))
	mux.DELETE(cfg.prefix+"/api/imports/:sid", serveCancelImport(cfg, im, errs))

	return im
}
