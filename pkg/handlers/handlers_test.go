package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Spotify-Skill-Go/pkg/db"
	"Spotify-Skill-Go/pkg/handlers"
	"Spotify-Skill-Go/pkg/music"
	"Spotify-Skill-Go/pkg/skill"
)

// fakeSkill records the last call and returns canned answers.
type fakeSkill struct {
	results   []music.Result
	res       *skill.Resolution
	err       error
	phrase    string
	mediaType music.MediaType
}

func (f *fakeSkill) Search(_ context.Context, phrase string, mt music.MediaType) ([]music.Result, error) {
	f.phrase, f.mediaType = phrase, mt
	return f.results, f.err
}

func (f *fakeSkill) Resolve(_ context.Context, phrase string) (*skill.Resolution, error) {
	f.phrase = phrase
	return f.res, f.err
}

type fakeHistory struct {
	limit int
	since time.Time
}

func (f *fakeHistory) RecentResolutions(_ context.Context, limit int) ([]db.Resolution, error) {
	f.limit = limit
	return []db.Resolution{{Phrase: "metallica", URI: "spotify://spotify:artist:1"}}, nil
}

func (f *fakeHistory) TopURIsSince(_ context.Context, since time.Time) ([]db.URICount, error) {
	f.since = since
	return []db.URICount{{URI: "spotify://spotify:artist:1", Count: 3}}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) (string, error) { return "me", f.err }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSearchJSON(t *testing.T) {
	entry := music.MediaEntry{Title: "One", URI: "spotify:track:1", MatchConfidence: 80}
	fs := &fakeSkill{results: []music.Result{{Entry: &entry}}}
	app := &handlers.Application{Skill: fs}

	rr := do(t, app.Routes(), http.MethodPost, "/api/search", `{"phrase":"one","media_type":"music"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if fs.phrase != "one" || fs.mediaType != music.MediaTypeMusic {
		t.Fatalf("unexpected call %q %q", fs.phrase, fs.mediaType)
	}
	var out struct {
		Results []music.Result `json:"results"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 1 || out.Results[0].Entry == nil || out.Results[0].Entry.URI != "spotify:track:1" {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestSearchJSONEmpty(t *testing.T) {
	app := &handlers.Application{Skill: &fakeSkill{}}
	rr := do(t, app.Routes(), http.MethodPost, "/api/search", `{"phrase":"nothing"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"results":[]`) {
		t.Fatalf("expected empty list got %s", rr.Body.String())
	}
}

func TestSearchJSONBadRequests(t *testing.T) {
	app := &handlers.Application{Skill: &fakeSkill{}}
	h := app.Routes()
	for _, tc := range []struct {
		method, body string
		code         int
	}{
		{http.MethodGet, "", http.StatusMethodNotAllowed},
		{http.MethodPost, "", http.StatusBadRequest},
		{http.MethodPost, `{"phrase":"x","unknown":1}`, http.StatusBadRequest},
		{http.MethodPost, `{"phrase":"x"}{}`, http.StatusBadRequest},
		{http.MethodPost, `{"phrase":""}`, http.StatusBadRequest},
	} {
		rr := do(t, h, tc.method, "/api/search", tc.body)
		if rr.Code != tc.code {
			t.Errorf("%s %q: expected %d got %d", tc.method, tc.body, tc.code, rr.Code)
		}
	}
}

func TestResolveJSON(t *testing.T) {
	fs := &fakeSkill{res: &skill.Resolution{URI: "spotify://spotify:album:1", Confidence: 90, Kind: "album"}}
	app := &handlers.Application{Skill: fs}
	rr := do(t, app.Routes(), http.MethodPost, "/api/resolve", `{"phrase":"the album one"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var res skill.Resolution
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.URI != "spotify://spotify:album:1" || res.Confidence != 90 {
		t.Fatalf("unexpected resolution %+v", res)
	}
}

func TestResolveJSONErrors(t *testing.T) {
	for _, tc := range []struct {
		err  error
		code int
	}{
		{skill.ErrNothingFound, http.StatusNotFound},
		{fmt.Errorf("refresh: %w", skill.ErrNotAuthorized), http.StatusUnauthorized},
		{skill.ErrNoDevices, http.StatusServiceUnavailable},
		{errors.New("api down"), http.StatusBadGateway},
	} {
		app := &handlers.Application{Skill: &fakeSkill{err: tc.err}}
		rr := do(t, app.Routes(), http.MethodPost, "/api/resolve", `{"phrase":"x"}`)
		if rr.Code != tc.code {
			t.Errorf("%v: expected %d got %d", tc.err, tc.code, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `"error"`) {
			t.Errorf("%v: expected error body got %s", tc.err, rr.Body.String())
		}
	}
}

func TestHistory(t *testing.T) {
	fh := &fakeHistory{}
	app := &handlers.Application{Skill: &fakeSkill{}, History: fh}
	h := app.Routes()

	rr := do(t, h, http.MethodGet, "/api/history?limit=5", "")
	if rr.Code != http.StatusOK || fh.limit != 5 {
		t.Fatalf("unexpected %d limit %d", rr.Code, fh.limit)
	}
	rr = do(t, h, http.MethodGet, "/api/history/top", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"count":3`) {
		t.Fatalf("unexpected %d %s", rr.Code, rr.Body.String())
	}
	if time.Since(fh.since) < 6*24*time.Hour {
		t.Fatalf("expected a week lookback got %v", fh.since)
	}

	app.History = nil
	if rr := do(t, app.Routes(), http.MethodGet, "/api/history", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	app := &handlers.Application{Skill: &fakeSkill{}, Pinger: fakePinger{}}
	if rr := do(t, app.Routes(), http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"user":"me"`) {
		t.Fatalf("unexpected %d %s", rr.Code, rr.Body.String())
	}
	app.Pinger = fakePinger{err: errors.New("token revoked")}
	if rr := do(t, app.Routes(), http.MethodGet, "/healthz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rr.Code)
	}
}

func TestMiddleware(t *testing.T) {
	app := &handlers.Application{Skill: &fakeSkill{}}
	h := app.Routes()

	rr := do(t, h, http.MethodGet, "/healthz", "")
	if rr.Header().Get(handlers.RequestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(handlers.RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(handlers.RequestIDHeader); got != "abc" {
		t.Fatalf("expected caller id got %q", got)
	}
}

func TestMetricsRoute(t *testing.T) {
	app := &handlers.Application{Skill: &fakeSkill{}}
	rr := do(t, app.Routes(), http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
}
