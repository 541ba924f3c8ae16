/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Seednode/quizbox/category"
	"github.com/Seednode/quizbox/conflict"
	"github.com/Seednode/quizbox/importcsv"
	"github.com/Seednode/quizbox/library"
	"github.com/Seednode/quizbox/quiz"
)

var (
	errBadRequest   = errors.New("bad request")
	errNoImport     = errors.New("no such import")
	errImportActive = errors.New("an import is already in progress for this game")
	errNoSession    = errors.New("no such play session")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<link rel="stylesheet" href="/assets/app.css">`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", html.EscapeString(title)))
	htmlBody.WriteString(fmt.Sprintf("<body class=\"notice\"><a href=\"/\">%s</a></body></html>", html.EscapeString(body)))

	return htmlBody.String()
}

// statusFor maps domain errors onto HTTP status codes. Conflict sentinels are
// checked first since they may wrap a store or validation error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, conflict.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, library.ErrInvalidGame):
		return http.StatusBadRequest
	case errors.Is(err, conflict.ErrNameConflict),
		errors.Is(err, category.ErrExists),
		errors.Is(err, errImportActive):
		return http.StatusConflict
	case errors.Is(err, conflict.ErrInvalidAction),
		errors.Is(err, errBadRequest),
		errors.Is(err, library.ErrInvalidSort),
		errors.Is(err, library.ErrUnsupportedFormat),
		errors.Is(err, importcsv.ErrNoRows),
		errors.Is(err, importcsv.ErrHeaderRange),
		errors.Is(err, quiz.ErrNoAnswers):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrNotFound),
		errors.Is(err, category.ErrNotFound),
		errors.Is(err, errNoImport),
		errors.Is(err, errNoSession):
		return http.StatusNotFound
	case errors.Is(err, library.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error   string            `json:"error"`
	Summary *conflict.Summary `json:"summary,omitempty"`
}

func serveJSON(cfg *Config, w http.ResponseWriter, status int, v any, errs chan<- error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		errs <- err
	}
}

func serveError(cfg *Config, w http.ResponseWriter, r *http.Request, err error, errs chan<- error) {
	status := statusFor(err)

	resp := errorResponse{Error: err.Error()}

	var applyErr *conflict.ApplyError
	if errors.As(err, &applyErr) {
		resp.Summary = &applyErr.Summary
	}

	if status == http.StatusInternalServerError {
		errs <- fmt.Errorf("%s %s: %w", r.Method, r.URL.Path, err)
	} else {
		logf(cfg, "SERVE: %s %s for %s: %v", r.Method, r.URL.Path, realIP(r), err)
	}

	serveJSON(cfg, w, status, resp, errs)
}
