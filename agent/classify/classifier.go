package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"

	contractx "github.com/pchaya/aftercare/agent/contract"
	llmx "github.com/pchaya/aftercare/agent/llm"
	statex "github.com/pchaya/aftercare/agent/state"
)

type llmOutput struct {
	Kind string `json:"kind"`
}

// LLMClassifier decides the kind of a user turn with a structured model
// call. Ambiguity and model failure both resolve to the clinical path so a
// clinically relevant question is never silently dropped.
type LLMClassifier struct {
	runner compose.Runnable[map[string]any, llmOutput]
	log    zerolog.Logger
}

var _ contractx.Classifier = (*LLMClassifier)(nil)

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, log zerolog.Logger) (*LLMClassifier, error) {
	runner, err := llmx.CompileStructuredGraph[llmOutput](ctx, chatModel, systemPrompt, "classify.turn_kind")
	if err != nil {
		return nil, fmt.Errorf("%w: compile classifier graph: %v", contractx.ErrModelInvoke, err)
	}
	return &LLMClassifier{runner: runner, log: log}, nil
}

func (c *LLMClassifier) Classify(ctx context.Context, req contractx.ClassifyRequest) (contractx.TurnKind, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", fmt.Errorf("%w: text is required", contractx.ErrValidation)
	}

	payload := map[string]any{
		"text":      text,
		"stage":     string(req.Stage),
		"diagnosis": req.Diagnosis,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal classify payload: %v", contractx.ErrValidation, err)
	}

	out, err := c.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		// Safety bias: an unclassifiable turn goes down the clinical path.
		c.log.Warn().Err(err).Msg("classifier invoke failed, defaulting to medical")
		return Fallback(req.Stage), nil
	}

	kind, ok := normalizeKind(out.Kind, req.Stage)
	if !ok {
		c.log.Warn().Str("kind", out.Kind).Msg("classifier returned unknown kind, defaulting to medical")
		return Fallback(req.Stage), nil
	}
	return kind, nil
}

// Fallback is the verdict used when classification is unavailable: prefer
// the clinical path everywhere a medical question could be pending.
func Fallback(stage statex.Stage) contractx.TurnKind {
	if stage == statex.StageAwaitingName {
		return contractx.TurnLogistics
	}
	return contractx.TurnMedical
}

func normalizeKind(raw string, stage statex.Stage) (contractx.TurnKind, bool) {
	switch contractx.TurnKind(strings.ToLower(strings.TrimSpace(raw))) {
	case contractx.TurnMedical:
		return contractx.TurnMedical, true
	case contractx.TurnLogistics:
		return contractx.TurnLogistics, true
	case contractx.TurnClosure:
		// Closure only means something while the clinical topic is open.
		if stage == statex.StageClinical {
			return contractx.TurnClosure, true
		}
		return contractx.TurnLogistics, true
	default:
		return "", false
	}
}
