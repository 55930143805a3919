package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/pchaya/aftercare/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Result.Reply)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: agent returned empty reply", contractx.ErrValidation)
	}
	return GraphOutput{
		SessionID:   in.Session.ID,
		Reply:       reply,
		Stage:       in.Session.Stage,
		Agent:       in.Agent,
		EvidenceIDs: in.Result.EvidenceIDs,
		Provenance:  in.Result.Provenance,
	}, nil
}
