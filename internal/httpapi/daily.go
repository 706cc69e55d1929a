package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/velotype/velotype/internal/apperr"
	"github.com/velotype/velotype/internal/daily"
)

func toDailySubmission(req dailySubmitRequest) daily.Submission {
	return daily.Submission{
		Typed:           req.Typed,
		ElapsedMs:       req.ElapsedMs,
		Samples:         req.Samples,
		TotalErrors:     req.TotalErrors,
		TotalKeystrokes: req.TotalKeystrokes,
	}
}

type dailyTextResponse struct {
	Day  string `json:"day"`
	Text string `json:"text"`
}

// handleDailyText serves GET /daily: today's challenge text, keyed by the
// configured reset timezone (spec §4.9). Anonymous; submitting requires
// auth, reading the prompt does not.
func (s *Server) handleDailyText(w http.ResponseWriter, r *http.Request) {
	if s.daily == nil {
		s.writeNotImplemented(w)
		return
	}
	day, text := s.daily.Today()
	writeJSON(w, http.StatusOK, dailyTextResponse{Day: day, Text: text})
}

type dailySubmitRequest struct {
	Typed           string `json:"typed"`
	ElapsedMs       int    `json:"elapsedMs"`
	Samples         []int  `json:"samples"`
	TotalErrors     *int   `json:"totalErrors,omitempty"`
	TotalKeystrokes *int   `json:"totalKeystrokes,omitempty"`
}

// handleDailySubmit serves POST /daily/submit: one recomputed-metrics
// submission per (user, day), 409 on a second attempt (spec S7).
func (s *Server) handleDailySubmit(w http.ResponseWriter, r *http.Request) {
	if s.daily == nil {
		s.writeNotImplemented(w)
		return
	}

	claims, ok := s.authenticate(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req dailySubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_payload"})
		return
	}

	score, err := s.daily.Submit(r.Context(), claims.ID, toDailySubmission(req))
	if err != nil {
		if apperr.Is(err, apperr.KindDuplicateDaily) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "duplicate"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}

	writeJSON(w, http.StatusOK, score)
}

// handleDailyLeaderboard serves GET /daily/leaderboard?limit= for the
// current reset day; no other day can be requested.
func (s *Server) handleDailyLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.daily == nil {
		s.writeNotImplemented(w)
		return
	}

	claims, _ := s.authenticate(r)

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	top, rank, ok, err := s.daily.Leaderboard(r.Context(), claims.ID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}

	resp := map[string]any{"top": top}
	if ok {
		resp["rank"] = rank
	}
	writeJSON(w, http.StatusOK, resp)
}

// authenticate reads a bearer token from the Authorization header.
func (s *Server) authenticate(r *http.Request) (claims struct {
	ID       string
	Username string
}, ok bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return claims, false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	c, err := s.verifier.Verify(token)
	if err != nil {
		return claims, false
	}
	claims.ID = c.ID
	claims.Username = c.Username
	return claims, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
