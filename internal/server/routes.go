package server

import (
	"context"
	"encoding/json"
	"errors"
	"mediumpilot/internal/registry"
	"net/http"
)

const maxRegisterBodyBytes = 64 << 10

type registerRequest struct {
	UID     string `json:"uid"`
	RSSURL  string `json:"rssUrl"`
	LiToken string `json:"liToken"`
	LiActor string `json:"liActor"`
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	s.mux.HandleFunc("POST /api/share", s.handleShare)
	s.mux.HandleFunc("POST /api/register", s.handleRegister)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), s.cycleTimeout)
		defer cancel()
	}

	report, err := s.runner.RunCycle(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to run cycle",
			"error", err,
			"trigger", "http")

		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	s.log.InfoContext(ctx, "Cycle is triggered over HTTP",
		"cycleID", report.CycleID,
		"userCount", len(report.Results))

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegisterBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON body"})
		return
	}

	userID, err := s.registrar.Register(ctx, registry.Registration{
		UserID:        req.UID,
		FeedURL:       req.RSSURL,
		SocialToken:   req.LiToken,
		SocialActorID: req.LiActor,
	})

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"userId": userID})
	case errors.Is(err, registry.ErrMissingUserID):
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Missing user UID"})
	case errors.Is(err, registry.ErrMissingFields):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "All fields are required"})
	case errors.Is(err, registry.ErrInvalidFeedURL):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Feed URL must be an http(s) URL"})
	default:
		s.log.ErrorContext(ctx, "Failed to register user",
			"error", err,
			"userID", req.UID)

		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Internal Server Error",
			"details": err.Error(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
