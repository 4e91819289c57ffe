package handlers

import (
	"net/http"
	"strconv"
	"time"
)

const defaultHistoryLimit = 20

// HistoryJSON returns the most recent resolutions. The 'limit' query
// parameter defaults to 20.
func (app *Application) HistoryJSON(w http.ResponseWriter, r *http.Request) {
	if app.History == nil {
		respondJSONError(w, http.StatusNotFound, "history not enabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	res, err := app.History.RecentResolutions(r.Context(), limit)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// TopURIsJSON returns the most resolved URIs for a period controlled by the
// 'days' query parameter.
func (app *Application) TopURIsJSON(w http.ResponseWriter, r *http.Request) {
	if app.History == nil {
		respondJSONError(w, http.StatusNotFound, "history not enabled")
		return
	}
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days)
	res, err := app.History.TopURIsSince(r.Context(), since)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	respondJSON(w, http.StatusOK, res)
}
