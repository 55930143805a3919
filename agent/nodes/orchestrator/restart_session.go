package orchestratornode

import (
	"fmt"

	contractx "github.com/pchaya/aftercare/agent/contract"
)

const restartReply = "No problem, let's start over. Could you tell me your full name as it appears on your discharge papers?"

// RestartSession wipes identity and history and returns the conversation to
// the identification stage, regardless of where it was.
func RestartSession(in *GraphState) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	in.Session.Restart(in.Now)
	in.Agent = contractx.AgentTypeReceptionist
	in.Result = contractx.TurnResult{Reply: restartReply}
	return in, nil
}
