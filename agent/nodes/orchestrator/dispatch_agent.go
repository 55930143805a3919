package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/pchaya/aftercare/agent/contract"
	statex "github.com/pchaya/aftercare/agent/state"
)

// DispatchAgent hands the turn to the agent that owns the current stage and
// honors at most one route hop: an agent may redirect the turn to its
// counterpart once, after its own session delta is applied.
func DispatchAgent(ctx context.Context, in *GraphState, registry contractx.Registry) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	agent, agentType := agentForStage(in.Session.Stage, registry)
	result, err := agent.Handle(ctx, in.Text, in.Session)
	if err != nil {
		return nil, err
	}

	if result.Route != contractx.RouteNone {
		if err := ApplyDelta(in.Session, result.Delta); err != nil {
			return nil, err
		}
		agent, agentType = agentForRoute(result.Route, registry)
		result, err = agent.Handle(ctx, in.Text, in.Session)
		if err != nil {
			return nil, err
		}
		if result.Route != contractx.RouteNone {
			return nil, fmt.Errorf("%w: agents routed the same turn twice", contractx.ErrSchemaViolation)
		}
	}

	in.Agent = agentType
	in.Result = result
	return in, nil
}

func agentForStage(stage statex.Stage, registry contractx.Registry) (contractx.Agent, contractx.AgentType) {
	if stage == statex.StageClinical {
		return registry.Clinical(), contractx.AgentTypeClinical
	}
	return registry.Receptionist(), contractx.AgentTypeReceptionist
}

func agentForRoute(route contractx.RouteSignal, registry contractx.Registry) (contractx.Agent, contractx.AgentType) {
	if route == contractx.RouteClinical {
		return registry.Clinical(), contractx.AgentTypeClinical
	}
	return registry.Receptionist(), contractx.AgentTypeReceptionist
}
