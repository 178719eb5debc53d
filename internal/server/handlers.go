package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Guliveer/twitch-points-tracker/internal/model"
	"github.com/Guliveer/twitch-points-tracker/internal/pubsub"
)

type accountStatus struct {
	Username string `json:"username"`
	Running  bool   `json:"running"`
}

func (s *AnalyticsServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	accounts := s.getAccounts()
	statuses := make([]accountStatus, 0, len(accounts))
	active := 0
	for _, a := range accounts {
		running := a.IsRunning()
		if running {
			active++
		}
		statuses = append(statuses, accountStatus{Username: a.Username(), Running: running})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"active_accounts": active,
		"total_accounts":  len(accounts),
		"accounts":        statuses,
	})
}

type accountStreamer struct {
	Account string `json:"account"`
	model.StreamerSnapshot
}

func (s *AnalyticsServer) handleStreamers(w http.ResponseWriter, _ *http.Request) {
	result := []accountStreamer{}
	for _, a := range s.getAccounts() {
		for _, snap := range a.Snapshot() {
			result = append(result, accountStreamer{Account: a.Username(), StreamerSnapshot: snap})
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *AnalyticsServer) handleStreamer(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(r.PathValue("name"))

	result := []accountStreamer{}
	for _, a := range s.getAccounts() {
		for _, snap := range a.Snapshot() {
			if strings.EqualFold(snap.Username, name) {
				result = append(result, accountStreamer{Account: a.Username(), StreamerSnapshot: snap})
			}
		}
	}
	if len(result) == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "streamer not found"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *AnalyticsServer) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := overallStats{History: make(map[string]model.HistoryEntry)}

	for _, a := range s.getAccounts() {
		for _, snap := range a.Snapshot() {
			stats.TotalStreamers++
			stats.TotalPoints += snap.ChannelPoints
			if snap.IsOnline {
				stats.OnlineStreamers++
			}
			for reason, entry := range snap.History {
				agg := stats.History[reason]
				agg.Counter += entry.Counter
				agg.Amount += entry.Amount
				stats.History[reason] = agg
			}
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

type accountPubSub struct {
	Account string `json:"account"`
	pubsub.Stats
}

func (s *AnalyticsServer) handlePubSub(w http.ResponseWriter, _ *http.Request) {
	result := []accountPubSub{}
	for _, a := range s.getAccounts() {
		result = append(result, accountPubSub{Account: a.Username(), Stats: a.PubSubStats()})
	}
	writeJSON(w, http.StatusOK, result)
}

type overallStats struct {
	TotalStreamers  int                           `json:"total_streamers"`
	OnlineStreamers int                           `json:"online_streamers"`
	TotalPoints     int                           `json:"total_points"`
	History         map[string]model.HistoryEntry `json:"history"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v) //nolint:errcheck
}
