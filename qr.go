/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// shareURL rebuilds the absolute URL of the page a QR image was requested
// for, honouring X-Forwarded-Proto when running behind a proxy.
func shareURL(cfg *Config, r *http.Request) string {
	scheme := cfg.scheme()
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr.png")
}

func serveSessionQR(cfg *Config, gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		mode, err := playMode(p)
		if err == nil {
			_, err = gm.get(mode, p.ByName("gameid"), p.ByName("hubid"))
		}
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		png, err := qrcode.Encode(shareURL(cfg, r), qrcode.Medium, qrSize)
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		_, err = w.Write(png)
		if err != nil {
			errs <- err

			return
		}
	}
}
