package api

import (
	"encoding/json"
	"errors"
	"net/http"

	orchestratorx "github.com/pchaya/aftercare/agent/agents/orchestrator"
	contractx "github.com/pchaya/aftercare/agent/contract"
	statex "github.com/pchaya/aftercare/agent/state"
)

// ChatRequest is one user turn. An absent session_id starts a conversation;
// restart wipes the existing one.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Restart   bool   `json:"restart,omitempty"`
}

type ChatResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Stage     string `json:"stage"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}

	result, err := s.orchestrator.HandleTurn(r.Context(), orchestratorx.Request{
		SessionID: req.SessionID,
		Message:   req.Message,
		Restart:   req.Restart,
	})
	if err != nil {
		s.writeTurnError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		SessionID: result.SessionID,
		Answer:    result.Reply,
		Stage:     string(result.Stage),
	})
}

func (s *Server) writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, statex.ErrSessionBusy):
		writeError(w, http.StatusConflict, "session_busy", "another turn is in flight for this session")
	case errors.Is(err, orchestratorx.ErrInvalidMessage),
		errors.Is(err, orchestratorx.ErrInvalidSession),
		errors.Is(err, contractx.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		s.log.Error().Err(err).Msg("chat turn failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to process the turn")
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
