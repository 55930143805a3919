package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	clinicalx "github.com/pchaya/aftercare/agent/agents/clinical"
	receptionistx "github.com/pchaya/aftercare/agent/agents/receptionist"
	answerx "github.com/pchaya/aftercare/agent/answer"
	classifyx "github.com/pchaya/aftercare/agent/classify"
	contractx "github.com/pchaya/aftercare/agent/contract"
	llmx "github.com/pchaya/aftercare/agent/llm"
	promptx "github.com/pchaya/aftercare/agent/prompt"
)

type registryImpl struct {
	receptionist contractx.Agent
	clinical     contractx.Agent
}

func (r *registryImpl) Receptionist() contractx.Agent {
	return r.receptionist
}

func (r *registryImpl) Clinical() contractx.Agent {
	return r.clinical
}

// NewRegistry wires the conversational agents over their models and
// evidence ports.
func NewRegistry(
	ctx context.Context,
	cfg llmx.Config,
	directory contractx.PatientDirectory,
	retriever contractx.Retriever,
	web contractx.WebSearcher,
	log zerolog.Logger,
) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()

	classifierModelCfg := cfg.GroqFor(contractx.AgentTypeClassifier)
	classifierModel, err := classifierModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create classifier model: %v", contractx.ErrModelInvoke, err)
	}
	composerModelCfg := cfg.GroqFor(contractx.AgentTypeComposer)
	composerModel, err := composerModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create composer model: %v", contractx.ErrModelInvoke, err)
	}
	receptionistModelCfg := cfg.GroqFor(contractx.AgentTypeReceptionist)
	receptionistModel, err := receptionistModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create receptionist model: %v", contractx.ErrModelInvoke, err)
	}

	classifier, err := classifyx.New(ctx, classifierModel, prompts.Classifier, log)
	if err != nil {
		return nil, err
	}
	composer, err := answerx.New(ctx, composerModel, prompts.Composer, log)
	if err != nil {
		return nil, err
	}

	receptionist, err := receptionistx.New(directory, classifier, log,
		receptionistx.WithSmalltalkModel(ctx, receptionistModel, prompts.Receptionist),
	)
	if err != nil {
		return nil, err
	}
	clinical, err := clinicalx.New(classifier, retriever, web, composer, log)
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		receptionist: receptionist,
		clinical:     clinical,
	}, nil
}
