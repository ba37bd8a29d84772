/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

const (
	controlPasswordHeader = "X-Control-Password"
	apiBodyLimit          = 4 << 10
)

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

type suggestionsResponse struct {
	Words []string `json:"words"`
}

type suggestRequest struct {
	Word string `json:"word"`
}

type suggestResponse struct {
	OK   bool   `json:"ok"`
	Word string `json:"word"`
}

type startRequest struct {
	Seconds float64 `json:"seconds"`
}

type startResponse struct {
	OK       bool        `json:"ok"`
	Schedule Schedule    `json:"schedule"`
	Set      *CurrentSet `json:"set"`
}

type controlResponse struct {
	OK     bool  `json:"ok"`
	Paused bool  `json:"paused"`
	Frame  Frame `json:"frame"`
}

func writeJSON(cfg *Config, w http.ResponseWriter, r *http.Request, status int, v any, errs chan<- error) {
	startTime := time.Now()

	data, err := json.Marshal(v)
	if err != nil {
		errs <- err

		status = http.StatusInternalServerError
		data = []byte(`{"ok":false,"error":"internal"}`)
	}
	data = append(data, '\n')

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	noStore(w)
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	written, err := w.Write(data)
	if err != nil {
		errs <- err

		return
	}

	logf(cfg, "SERVE: API %s %s (%s, %d) to %s in %s",
		r.Method,
		strings.TrimPrefix(r.URL.Path, cfg.prefix),
		humanReadableSize(int64(written)),
		status,
		realIP(r),
		time.Since(startTime).Round(time.Microsecond),
	)
}

// apiError maps a show or store error onto a status code and a short error
// code. Storage details are logged, never returned.
func apiError(cfg *Config, w http.ResponseWriter, r *http.Request, err error, errs chan<- error) {
	status, code := http.StatusInternalServerError, "internal"

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		status, code = http.StatusBadRequest, verr.Message
	case errors.Is(err, ErrNotConfirmed):
		status, code = http.StatusBadRequest, "confirmation-required"
	case errors.Is(err, ErrNoActiveSet):
		status, code = http.StatusNotFound, "no-active-set"
	case errors.Is(err, ErrShowActive):
		status, code = http.StatusConflict, "show-active"
	case errors.Is(err, ErrNoWords):
		status, code = http.StatusConflict, "no-suggestions"
	case errors.Is(err, ErrInvalidState):
		status, code = http.StatusConflict, "invalid-state"
	case errors.Is(err, ErrNotInitialized):
		errs <- err
		code = "not-initialized"
	default:
		errs <- err
	}

	writeJSON(cfg, w, r, status, errorResponse{Error: code}, errs)
}

func isJSONRequest(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))

	return err == nil && mt == "application/json"
}

// decodeJSON reads a small JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, apiBodyLimit))

	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

// confirmed reports whether the request carries confirm=true, as a query
// parameter, a form field or a JSON body field.
func confirmed(w http.ResponseWriter, r *http.Request) bool {
	if ok, err := strconv.ParseBool(r.URL.Query().Get("confirm")); err == nil && ok {
		return true
	}

	if isJSONRequest(r) {
		var body struct {
			Confirm bool `json:"confirm"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			return false
		}
		return body.Confirm
	}

	r.Body = http.MaxBytesReader(w, r.Body, apiBodyLimit)
	ok, err := strconv.ParseBool(r.PostFormValue("confirm"))

	return err == nil && ok
}

// guarded rejects requests without the configured control password. No
// password configured means no guard.
func guarded(cfg *Config, errs chan<- error, h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if cfg.controlPassword != "" {
			got := strings.TrimSpace(r.Header.Get(controlPasswordHeader))

			if subtle.ConstantTimeCompare([]byte(got), []byte(cfg.controlPassword)) != 1 {
				logf(cfg, "SERVE: Refused %s %s from %s", r.Method, r.URL.Path, realIP(r))
				writeJSON(cfg, w, r, http.StatusForbidden, errorResponse{Error: "forbidden"}, errs)

				return
			}
		}

		h(w, r, p)
	}
}

func serveCount(cfg *Config, show *Show, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		n, err := show.store.Count(r.Context())
		if err != nil {
			apiError(cfg, w, r, err, errs)

			return
		}

		writeJSON(cfg, w, r, http.StatusOK, countResponse{Count: n}, errs)
	}
}

func serveSuggestions(cfg *Config, show *Show, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		words, err := show.store.List(r.Context())
		if err != nil {
			apiError(cfg, w, r, err, errs)

			return
		}

		writeJSON(cfg, w, r, http.StatusOK, suggestionsResponse{Words: words}, errs)
	}
}

func serveInit(cfg *Config, show *Show, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if err := show.Initialise(r.Context(), confirmed(w, r)); err != nil {
			apiError(cfg, w, r, err, errs)

			return
		}

		writeJSON(cfg, w, r, http.StatusOK, okResponse{OK: true}, errs)
	}
}

func serveClear(cfg *Config, show *Show, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if err := show.Initialise(r.Context(), true); err != nil {
			apiError(cfg, w, r, err, errs)

			return
		}

		writeJSON(cfg, w, r, http.StatusOK, okResponse{OK: true}, errs)
	}
}

func serveSuggest(cfg *Config, show *Show, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req suggestRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(cfg, w, r, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"}, errs)

			return
		}

		clientID := getOrSetClientID(cfg, w, r)

		word, err := show.Submit(r.Context(), req.Word, clientID)

		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			clearGate(w)
			writeJSON(cfg, w, r, http.StatusBadRequest, errorResponse{Error: verr.Message}, errs)

		case err != nil:
			errs <- err
			clearGate(w)
			writeJSON(cfg, w, r, http.StatusInternalServerError, errorResponse{Error: userMessage(err)}, errs)

		default:
			setGate(w, word, cfg.cooldown)
			logf(cfg, "WORDS: Accepted %q from %s", word, realIP(r))
			writeJSON(cfg, w, r, http.StatusOK, suggestResponse{OK: true, Word: word}, errs)
		}
	}
}

func serveStats(cfg *Config, show *Show, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		stats, err := show.Stats(r.Context())
		if err != nil {
			apiError(cfg, w, r, err, errs)

			return
		}

		writeJSON(cfg, w, r, http.StatusOK, stats, errs)
	}
}

// setLength converts the requested seconds into a set length. Absent or
// non-positive values use the configured default; anything shorter than a
// second is rounded up to one.
func setLength(cfg *Config, seconds float64) time.Duration {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return cfg.defaultSetLength
	}
	if seconds > math.MaxInt64/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}

	return max(time.Duration(seconds*float64(time.Second)), time.Second)
}

func serveStart(cfg *Config, show *Show, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req startRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(cfg, w, r, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"}, errs)

			return
		}

		set, err := show.Start(r.Context(), setLength(cfg, req.Seconds))
		if err != nil {
			apiError(cfg, w, r, err, errs)

			return
		}

		writeJSON(cfg, w, r, http.StatusOK, startResponse{OK: true, Schedule: set.Schedule, Set: set}, errs)
	}
}

func serveControl(cfg *Config, errs chan<- error, op func(*http.Request) (Frame, error)) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		frame, err := op(r)
		if err != nil {
			apiError(cfg, w, r, err, errs)

			return
		}

		writeJSON(cfg, w, r, http.StatusOK, controlResponse{
			OK:     true,
			Paused: frame.State == StatePaused,
			Frame:  frame,
		}, errs)
	}
}

func serveCurrentSet(cfg *Config, show *Show, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		set, err := show.CurrentSet(r.Context())
		if err != nil {
			apiError(cfg, w, r, err, errs)

			return
		}

		writeJSON(cfg, w, r, http.StatusOK, set, errs)
	}
}

func registerAPI(cfg *Config, mux *httprouter.Router, show *Show, hub *Hub, errs chan<- error) {
	mux.GET(cfg.prefix+"/api/count", serveCount(cfg, show, errs))
	mux.GET(cfg.prefix+"/api/suggestions", serveSuggestions(cfg, show, errs))
	mux.POST(cfg.prefix+"/api/init", serveInit(cfg, show, errs))
	mux.POST(cfg.prefix+"/api/suggest", serveSuggest(cfg, show, errs))
	mux.GET(cfg.prefix+"/api/stats", serveStats(cfg, show, errs))
	mux.GET(cfg.prefix+"/api/current-set", serveCurrentSet(cfg, show, errs))

	mux.POST(cfg.prefix+"/api/clear", guarded(cfg, errs, serveClear(cfg, show, errs)))
	mux.POST(cfg.prefix+"/api/start", guarded(cfg, errs, serveStart(cfg, show, errs)))
	mux.POST(cfg.prefix+"/api/pause", guarded(cfg, errs, serveControl(cfg, errs, func(r *http.Request) (Frame, error) {
		return show.Pause(r.Context())
	})))
	mux.POST(cfg.prefix+"/api/resume", guarded(cfg, errs, serveControl(cfg, errs, func(r *http.Request) (Frame, error) {
		return show.Resume(r.Context())
	})))
	mux.POST(cfg.prefix+"/api/reset", guarded(cfg, errs, serveControl(cfg, errs, func(r *http.Request) (Frame, error) {
		return show.Reset(r.Context())
	})))

	if hub != nil {
		mux.GET(cfg.prefix+"/api/live", serveLive(cfg, hub, errs))
	}
}
