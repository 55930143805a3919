package state

import (
	"errors"
	"fmt"
	"time"
)

// Stage is the routing stage of a conversation. The orchestrator owns
// transitions; session helpers only enforce which transitions are legal.
type Stage string

const (
	StageAwaitingName Stage = "awaiting_name"
	StageGreeted      Stage = "greeted"
	StageClinical     Stage = "clinical"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged entry of the conversation history.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// PatientRecord is the discharge report cached inside a session after the
// directory resolves the patient. Immutable once fetched; owned by the
// external directory and never persisted beyond the session lifetime.
type PatientRecord struct {
	Name                string   `json:"name"`
	PrimaryDiagnosis    string   `json:"primary_diagnosis"`
	SecondaryDiagnoses  []string `json:"secondary_diagnoses,omitempty"`
	Medications         []string `json:"medications,omitempty"`
	DietaryRestrictions string   `json:"dietary_restrictions,omitempty"`
	FollowUp            string   `json:"follow_up,omitempty"`
	WarningSigns        string   `json:"warning_signs,omitempty"`
	DischargeDate       string   `json:"discharge_date,omitempty"`
	AttendingPhysician  string   `json:"attending_physician,omitempty"`
}

var (
	ErrNilSession        = errors.New("session is nil")
	ErrInvalidSessionID  = errors.New("session id is empty")
	ErrPatientBound      = errors.New("session already bound to a patient")
	ErrInvalidTransition = errors.New("invalid stage transition")
)

// Session carries identity, routing stage and bounded history across turns.
// Invariants: Patient, once set, never changes for the session's lifetime;
// Stage only moves along the routing state machine (restart excepted).
type Session struct {
	ID          string         `json:"id"`
	Stage       Stage          `json:"stage"`
	Patient     *PatientRecord `json:"patient,omitempty"`
	History     []Turn         `json:"history,omitempty"`
	NameRetries int            `json:"name_retries,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	LastActive  time.Time      `json:"last_active"`
}

func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:         id,
		Stage:      StageAwaitingName,
		CreatedAt:  now.UTC(),
		LastActive: now.UTC(),
	}
}

func (s *Session) Touch(now time.Time) {
	s.LastActive = now.UTC()
}

// AppendTurn appends a history entry, evicting the oldest entries once the
// cap is exceeded. maxTurns <= 0 means unbounded.
func (s *Session) AppendTurn(role Role, text string, now time.Time, maxTurns int) {
	s.History = append(s.History, Turn{Role: role, Text: text, At: now.UTC()})
	if maxTurns > 0 && len(s.History) > maxTurns {
		s.History = append([]Turn(nil), s.History[len(s.History)-maxTurns:]...)
	}
}

// BindPatient sets the patient identity exactly once. Re-binding the same
// name is a no-op; binding a different one is an invariant violation.
func (s *Session) BindPatient(rec *PatientRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: patient record is nil", ErrNilSession)
	}
	if s.Patient != nil {
		if s.Patient.Name == rec.Name {
			return nil
		}
		return fmt.Errorf("%w: bound=%q attempted=%q", ErrPatientBound, s.Patient.Name, rec.Name)
	}
	s.Patient = rec
	return nil
}

// TransitionTo moves the session to the given stage, rejecting jumps the
// routing state machine does not allow. Self-loops are always legal.
func (s *Session) TransitionTo(stage Stage) error {
	if stage == s.Stage {
		return nil
	}
	if !legalTransition(s.Stage, stage) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Stage, stage)
	}
	s.Stage = stage
	return nil
}

func legalTransition(from, to Stage) bool {
	switch from {
	case StageAwaitingName:
		return to == StageGreeted
	case StageGreeted:
		return to == StageClinical
	case StageClinical:
		return to == StageGreeted
	}
	return false
}

// Restart clears history and identity and returns the session to the
// awaiting_name stage. The only legal backward jump.
func (s *Session) Restart(now time.Time) {
	s.Stage = StageAwaitingName
	s.Patient = nil
	s.History = nil
	s.NameRetries = 0
	s.Touch(now)
}

// Diagnosis returns the bound patient's primary diagnosis, or "".
func (s *Session) Diagnosis() string {
	if s == nil || s.Patient == nil {
		return ""
	}
	return s.Patient.PrimaryDiagnosis
}

// Clone returns a deep copy so a turn can mutate a working copy and only
// publish it on commit.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Patient != nil {
		rec := *s.Patient
		rec.SecondaryDiagnoses = append([]string(nil), s.Patient.SecondaryDiagnoses...)
		rec.Medications = append([]string(nil), s.Patient.Medications...)
		cp.Patient = &rec
	}
	cp.History = append([]Turn(nil), s.History...)
	return &cp
}

func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if s.ID == "" {
		return ErrInvalidSessionID
	}
	switch s.Stage {
	case StageAwaitingName, StageGreeted, StageClinical:
	default:
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, s.Stage)
	}
	if s.Stage != StageAwaitingName && s.Patient == nil {
		return fmt.Errorf("stage %s requires a bound patient", s.Stage)
	}
	return nil
}
