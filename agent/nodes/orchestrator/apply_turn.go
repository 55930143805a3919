package orchestratornode

import (
	"fmt"

	contractx "github.com/pchaya/aftercare/agent/contract"
	statex "github.com/pchaya/aftercare/agent/state"
)

// ApplyTurn publishes the turn onto the working session: the user's text and
// the agent's reply go into history, the agent's delta mutates identity,
// stage and retry bookkeeping.
func ApplyTurn(in *GraphState, maxHistoryTurns int) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	in.Session.AppendTurn(statex.RoleUser, in.Text, in.Now, maxHistoryTurns)
	if err := ApplyDelta(in.Session, in.Result.Delta); err != nil {
		return nil, err
	}
	if in.Result.Reply != "" {
		in.Session.AppendTurn(statex.RoleAssistant, in.Result.Reply, in.Now, maxHistoryTurns)
	}
	in.Session.Touch(in.Now)
	return in, nil
}

// ApplyDelta applies an agent's requested session mutations. Patient binding
// comes first so a stage transition never outruns identity.
func ApplyDelta(sess *statex.Session, delta contractx.SessionDelta) error {
	if delta.BindPatient != nil {
		if err := sess.BindPatient(delta.BindPatient); err != nil {
			return err
		}
	}
	if delta.SetStage != "" {
		if err := sess.TransitionTo(delta.SetStage); err != nil {
			return err
		}
	}
	if delta.ResetNameRetries {
		sess.NameRetries = 0
	}
	if delta.BumpNameRetries {
		sess.NameRetries++
	}
	return nil
}
