/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

const (
	gateCookieName     = "suggested"
	gateWordCookieName = "word"
	clientCookieName   = "cid"

	clientCookieMaxAge = 365 * 24 * time.Hour
)

// Gate records whether this browser has already submitted a word. It is a
// convenience for the form, not a security control.
type Gate struct {
	AlreadySubmitted bool
	LastWord         string
}

func readGate(r *http.Request) Gate {
	var g Gate

	if c, err := r.Cookie(gateCookieName); err == nil && c.Value == "1" {
		g.AlreadySubmitted = true
	}

	if c, err := r.Cookie(gateWordCookieName); err == nil {
		word, err := url.QueryUnescape(c.Value)
		if err != nil {
			word = c.Value
		}
		g.LastWord = word
	}

	return g
}

// setGate issues the presence flag and last word with the same expiry so they
// disappear together.
func setGate(w http.ResponseWriter, word string, maxAge time.Duration) {
	seconds := int(maxAge / time.Second)

	http.SetCookie(w, &http.Cookie{
		Name:     gateCookieName,
		Value:    "1",
		Path:     "/",
		MaxAge:   seconds,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     gateWordCookieName,
		Value:    url.QueryEscape(word),
		Path:     "/",
		MaxAge:   seconds,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearGate(w http.ResponseWriter) {
	for _, name := range []string{gateCookieName, gateWordCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// getOrSetClientID returns the browser's client id, issuing one if missing.
func getOrSetClientID(cfg *Config, w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(clientCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(clientCookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})

	return id
}
