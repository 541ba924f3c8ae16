/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
)

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

// readUpload returns the name and contents of the multipart file in field,
// refusing bodies larger than limit.
func readUpload(w http.ResponseWriter, r *http.Request, field string, limit int64) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return "", nil, fmt.Errorf("%w: upload exceeds %s", errBadRequest, humanReadableSize(limit))
		}
		return "", nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	f, hdr, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("%w: missing %q file: %w", errBadRequest, field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	return filepath.Base(hdr.Filename), data, nil
}

func serveAttachment(cfg *Config, w http.ResponseWriter, name, contentType string, data []byte, errs chan<- error) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	securityHeaders(cfg, w)

	_, err := w.Write(data)
	if err != nil {
		errs <- err
	}
}
