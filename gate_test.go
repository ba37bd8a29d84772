package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestReadGateEmpty(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	g := readGate(r)
	if g.AlreadySubmitted || g.LastWord != "" {
		t.Fatalf("readGate with no cookies = %+v", g)
	}
}

func TestSetGateRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	setGate(rec, "crème brûlée", 30*time.Second)

	cookies := cookiesByName(rec)
	flag, word := cookies[gateCookieName], cookies[gateWordCookieName]
	if flag == nil || word == nil {
		t.Fatalf("expected both gate cookies, got %v", cookies)
	}
	if flag.MaxAge != 30 || word.MaxAge != 30 {
		t.Fatalf("expected matching 30s expiry, got %d and %d", flag.MaxAge, word.MaxAge)
	}
	for _, c := range []*http.Cookie{flag, word} {
		if c.Path != "/" {
			t.Fatalf("cookie %s path = %q", c.Name, c.Path)
		}
		if c.SameSite != http.SameSiteLaxMode {
			t.Fatalf("cookie %s SameSite = %v", c.Name, c.SameSite)
		}
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: flag.Name, Value: flag.Value})
	r.AddCookie(&http.Cookie{Name: word.Name, Value: word.Value})

	g := readGate(r)
	if !g.AlreadySubmitted {
		t.Fatalf("expected gate to be set")
	}
	if g.LastWord != "crème brûlée" {
		t.Fatalf("LastWord = %q", g.LastWord)
	}
}

func TestReadGateIgnoresOtherFlagValues(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: gateCookieName, Value: "0"})
	r.AddCookie(&http.Cookie{Name: gateWordCookieName, Value: "%zz"})

	g := readGate(r)
	if g.AlreadySubmitted {
		t.Fatalf("expected gate to be unset for value 0")
	}
	if g.LastWord != "%zz" {
		t.Fatalf("undecodable word should be kept raw, got %q", g.LastWord)
	}
}

func TestClearGate(t *testing.T) {
	rec := httptest.NewRecorder()
	clearGate(rec)

	header := rec.Result().Header.Values("Set-Cookie")
	if len(header) != 2 {
		t.Fatalf("expected 2 Set-Cookie headers, got %v", header)
	}

	cookies := cookiesByName(rec)
	for _, name := range []string{gateCookieName, gateWordCookieName} {
		c, ok := cookies[name]
		if !ok {
			t.Fatalf("missing cleared cookie %s", name)
		}
		if c.MaxAge >= 0 {
			t.Fatalf("cookie %s MaxAge = %d, want expired", name, c.MaxAge)
		}
	}
}

func TestGetOrSetClientID(t *testing.T) {
	cfg := &Config{}

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/submit", nil)

	id := getOrSetClientID(cfg, rec, r)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("issued id %q is not a uuid: %v", id, err)
	}

	c := cookiesByName(rec)[clientCookieName]
	if c == nil || c.Value != id || !c.HttpOnly {
		t.Fatalf("unexpected cid cookie %+v", c)
	}

	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/submit", nil)
	r.AddCookie(&http.Cookie{Name: clientCookieName, Value: id})

	if got := getOrSetClientID(cfg, rec, r); got != id {
		t.Fatalf("existing id not reused: got %q want %q", got, id)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("expected no new cookie for a known client")
	}

	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/submit", nil)
	r.AddCookie(&http.Cookie{Name: clientCookieName, Value: "not-a-uuid"})

	if got := getOrSetClientID(cfg, rec, r); got == "not-a-uuid" {
		t.Fatalf("malformed id should be replaced")
	}
}
