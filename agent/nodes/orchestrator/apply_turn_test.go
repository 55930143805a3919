package orchestratornode

import (
	"errors"
	"testing"
	"time"

	contractx "github.com/pchaya/aftercare/agent/contract"
	statex "github.com/pchaya/aftercare/agent/state"
)

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	now := func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) }
	sess := statex.NewSession("s1", now())

	if _, err := ValidateRequest(GraphInput{Text: "hi"}, now); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if _, err := ValidateRequest(GraphInput{Session: sess, Text: "   "}, now); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}

	// A restart with no text is a valid request.
	st, err := ValidateRequest(GraphInput{Session: sess, Restart: true}, now)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	if !st.Restart || st.StageBefore != statex.StageAwaitingName {
		t.Fatalf("unexpected graph state: %+v", st)
	}
}

func TestApplyTurnRecordsHistoryAndDelta(t *testing.T) {
	t.Parallel()

	now := time.Now()
	sess := statex.NewSession("s1", now)
	in := &GraphState{
		Text:    "my name is Alice Wong",
		Now:     now,
		Session: sess,
		Result: contractx.TurnResult{
			Reply: "Welcome back, Alice Wong.",
			Delta: contractx.SessionDelta{
				SetStage:    statex.StageGreeted,
				BindPatient: &statex.PatientRecord{Name: "Alice Wong"},
			},
		},
	}

	if _, err := ApplyTurn(in, 10); err != nil {
		t.Fatalf("ApplyTurn() error = %v", err)
	}
	if sess.Stage != statex.StageGreeted {
		t.Fatalf("expected greeted, got %s", sess.Stage)
	}
	if sess.Patient == nil || sess.Patient.Name != "Alice Wong" {
		t.Fatalf("expected patient bound")
	}
	if len(sess.History) != 2 {
		t.Fatalf("expected user and assistant turns, got %d", len(sess.History))
	}
	if sess.History[0].Role != statex.RoleUser || sess.History[1].Role != statex.RoleAssistant {
		t.Fatalf("unexpected history roles: %+v", sess.History)
	}
}

func TestApplyDeltaBindsPatientBeforeTransition(t *testing.T) {
	t.Parallel()

	sess := statex.NewSession("s1", time.Now())
	err := ApplyDelta(sess, contractx.SessionDelta{
		SetStage:    statex.StageGreeted,
		BindPatient: &statex.PatientRecord{Name: "Alice Wong"},
	})
	if err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if err := sess.Validate(); err != nil {
		t.Fatalf("session must be valid after delta, got %v", err)
	}
}

func TestApplyDeltaRejectsIllegalTransition(t *testing.T) {
	t.Parallel()

	sess := statex.NewSession("s1", time.Now())
	err := ApplyDelta(sess, contractx.SessionDelta{SetStage: statex.StageClinical})
	if !errors.Is(err, statex.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRestartSessionResetsEverything(t *testing.T) {
	t.Parallel()

	now := time.Now()
	sess := statex.NewSession("s1", now)
	if err := sess.BindPatient(&statex.PatientRecord{Name: "Alice Wong"}); err != nil {
		t.Fatalf("BindPatient() error = %v", err)
	}
	if err := sess.TransitionTo(statex.StageGreeted); err != nil {
		t.Fatalf("TransitionTo() error = %v", err)
	}
	sess.AppendTurn(statex.RoleUser, "hi", now, 0)

	in := &GraphState{Now: now, Session: sess, Restart: true}
	out, err := RestartSession(in)
	if err != nil {
		t.Fatalf("RestartSession() error = %v", err)
	}
	if sess.Stage != statex.StageAwaitingName || sess.Patient != nil || len(sess.History) != 0 {
		t.Fatalf("restart must wipe stage, identity and history")
	}
	if out.Result.Reply == "" {
		t.Fatalf("restart must carry a reply")
	}
}
