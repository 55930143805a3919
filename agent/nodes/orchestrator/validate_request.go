package orchestratornode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/pchaya/aftercare/agent/contract"
	statex "github.com/pchaya/aftercare/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session is missing")
)

// GraphInput is one turn as the service hands it to the graph: the user's
// text plus the working session copy acquired under the per-session lock.
type GraphInput struct {
	Session *statex.Session
	Text    string
	Restart bool
}

type GraphOutput struct {
	SessionID string
	Reply     string
	Stage     statex.Stage

	Agent       contractx.AgentType
	EvidenceIDs []string
	Provenance  contractx.Provenance
}

type GraphState struct {
	Text    string
	Restart bool
	Now     time.Time

	Session     *statex.Session
	StageBefore statex.Stage

	Agent  contractx.AgentType
	Result contractx.TurnResult
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	if in.Session == nil {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" && !in.Restart {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		Text:        text,
		Restart:     in.Restart,
		Now:         nowFn().UTC(),
		Session:     in.Session,
		StageBefore: in.Session.Stage,
	}, nil
}
