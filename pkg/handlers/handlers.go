// Package handlers exposes the skill over HTTP so the voice assistant host
// can reach it: a search endpoint for the playback plugin, a resolve endpoint
// for single URI answers, the resolution history and the usual health and
// metrics routes.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"Spotify-Skill-Go/pkg/db"
	"Spotify-Skill-Go/pkg/music"
	"Spotify-Skill-Go/pkg/skill"
)

// Skill is the part of *skill.Skill used by the handlers.
type Skill interface {
	Search(ctx context.Context, phrase string, mediaType music.MediaType) ([]music.Result, error)
	Resolve(ctx context.Context, phrase string) (*skill.Resolution, error)
}

// History reads past resolutions. *db.DB implements it.
type History interface {
	RecentResolutions(ctx context.Context, limit int) ([]db.Resolution, error)
	TopURIsSince(ctx context.Context, since time.Time) ([]db.URICount, error)
}

// Pinger checks that the Web API accepts the stored token.
type Pinger interface {
	Ping(ctx context.Context) (string, error)
}

// Application holds the dependencies of the routes. History and Pinger are
// optional.
type Application struct {
	Skill   Skill
	History History
	Pinger  Pinger
}

// Routes registers every endpoint and wraps the mux with the middleware
// chain.
func (app *Application) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", app.SearchJSON)
	mux.HandleFunc("/api/resolve", app.ResolveJSON)
	mux.HandleFunc("/api/history", app.HistoryJSON)
	mux.HandleFunc("/api/history/top", app.TopURIsJSON)
	mux.HandleFunc("/healthz", app.Healthz)
	mux.Handle("/metrics", promhttp.Handler())
	return RequestID(AccessLog(SecurityHeaders(mux)))
}

type searchRequest struct {
	Phrase    string          `json:"phrase"`
	MediaType music.MediaType `json:"media_type"`
}

type searchResponse struct {
	Results []music.Result `json:"results"`
}

// SearchJSON answers a playback plugin query. An empty result list is a
// valid answer.
func (app *Application) SearchJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		respondJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Phrase == "" {
		respondJSONError(w, http.StatusBadRequest, "phrase is required")
		return
	}
	if req.MediaType == "" {
		req.MediaType = music.MediaTypeGeneric
	}
	res, err := app.Skill.Search(r.Context(), req.Phrase, req.MediaType)
	if err != nil {
		respondSkillError(w, r, err)
		return
	}
	if res == nil {
		res = []music.Result{}
	}
	respondJSON(w, http.StatusOK, searchResponse{Results: res})
}

type resolveRequest struct {
	Phrase string `json:"phrase"`
}

// ResolveJSON maps a phrase to one spotify:// URI.
func (app *Application) ResolveJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		respondJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Phrase == "" {
		respondJSONError(w, http.StatusBadRequest, "phrase is required")
		return
	}
	res, err := app.Skill.Resolve(r.Context(), req.Phrase)
	if err != nil {
		respondSkillError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// respondSkillError maps the skill's sentinel errors to status codes.
func respondSkillError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, skill.ErrNothingFound):
		respondJSONError(w, http.StatusNotFound, "nothing found")
	case errors.Is(err, skill.ErrNotAuthorized):
		respondJSONError(w, http.StatusUnauthorized, "not authorized, run the auth command")
	case errors.Is(err, skill.ErrNoDevices):
		respondJSONError(w, http.StatusServiceUnavailable, "no spotify device available")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondJSONError(w, http.StatusGatewayTimeout, "request cancelled")
	default:
		log.WithError(err).WithField("request_id", RequestIDFrom(r.Context())).Error("skill request failed")
		respondJSONError(w, http.StatusBadGateway, "spotify request failed")
	}
}

// Healthz reports whether the process is up and, when a Pinger is set,
// whether the Web API accepts the token.
func (app *Application) Healthz(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if app.Pinger != nil {
		user, err := app.Pinger.Ping(r.Context())
		if err != nil {
			log.WithError(err).Warn("health check failed")
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		status["user"] = user
	}
	respondJSON(w, http.StatusOK, status)
}
