package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	orchestratorx "github.com/pchaya/aftercare/agent/agents/orchestrator"
	contractx "github.com/pchaya/aftercare/agent/contract"
	statex "github.com/pchaya/aftercare/agent/state"
)

type fakeAgent struct{}

func (fakeAgent) Handle(_ context.Context, text string, sess *statex.Session) (contractx.TurnResult, error) {
	if sess.Stage == statex.StageAwaitingName {
		return contractx.TurnResult{
			Reply: "Welcome back, " + text + ".",
			Delta: contractx.SessionDelta{
				SetStage:    statex.StageGreeted,
				BindPatient: &statex.PatientRecord{Name: text},
			},
		}, nil
	}
	return contractx.TurnResult{Reply: "Happy to help."}, nil
}

type fakeRegistry struct{}

func (fakeRegistry) Receptionist() contractx.Agent { return fakeAgent{} }
func (fakeRegistry) Clinical() contractx.Agent     { return fakeAgent{} }

type noopLog struct{}

func (noopLog) Append(context.Context, contractx.TurnRecord) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	manager, err := statex.NewManager(statex.NewMemoryStore(), statex.ManagerConfig{MaxHistoryTurns: 10}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	orchestrator, err := orchestratorx.New(manager, fakeRegistry{}, noopLog{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("orchestrator New() error = %v", err)
	}
	return NewServer(orchestrator, zerolog.Nop())
}

func postChat(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := postChat(t, srv, `{"message":"Alice Wong"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatalf("expected a session id in the response")
	}
	if resp.Stage != string(statex.StageGreeted) {
		t.Fatalf("expected greeted stage, got %q", resp.Stage)
	}
	if !strings.Contains(resp.Answer, "Alice Wong") {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}

	// Follow-up turn on the same session.
	rec = postChat(t, srv, `{"message":"thanks","session_id":"`+resp.SessionID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChatEndpointBadRequests(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	if rec := postChat(t, srv, `not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid JSON, got %d", rec.Code)
	}
	if rec := postChat(t, srv, `{"message":"   "}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty message, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
