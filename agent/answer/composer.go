package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"

	contractx "github.com/pchaya/aftercare/agent/contract"
	llmx "github.com/pchaya/aftercare/agent/llm"
)

// FallbackText is returned when the model cannot produce a grounded answer.
const FallbackText = "I wasn't able to put together a reliable answer for that right now. " +
	"Please reach out to your care team directly, especially if this is urgent."

// Disclaimer closes every clinical reply. Composed answers inform; they never
// replace the care team's judgement.
const Disclaimer = "This is general guidance based on your discharge materials, not a diagnosis. " +
	"Contact your care team if symptoms worsen or you are unsure."

var markerPattern = regexp.MustCompile(`\[([SW]\d+)\]`)

type llmOutput struct {
	Answer string `json:"answer"`
}

// LLMComposer folds the gathered evidence into a grounded prompt and maps
// the model's inline markers back to citations. A failed completion degrades
// to an ungrounded fallback Answer, never an error: the caller always has
// something safe to say.
type LLMComposer struct {
	runner compose.Runnable[map[string]any, llmOutput]
	log    zerolog.Logger
}

var _ contractx.Composer = (*LLMComposer)(nil)

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, log zerolog.Logger) (*LLMComposer, error) {
	runner, err := llmx.CompileStructuredGraph[llmOutput](ctx, chatModel, systemPrompt, "answer.compose")
	if err != nil {
		return nil, fmt.Errorf("%w: compile composer graph: %v", contractx.ErrModelInvoke, err)
	}
	return &LLMComposer{runner: runner, log: log}, nil
}

func (c *LLMComposer) Compose(ctx context.Context, req contractx.ComposeRequest) (contractx.Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return contractx.Answer{}, fmt.Errorf("%w: question is required", contractx.ErrValidation)
	}

	citations := BuildCitations(req.Passages, req.Snippets)
	if len(citations) == 0 {
		// Nothing to ground on: skip the model entirely.
		return fallbackAnswer(req.Notes), nil
	}

	payload, err := buildPayload(req, citations)
	if err != nil {
		return contractx.Answer{}, fmt.Errorf("%w: marshal compose payload: %v", contractx.ErrValidation, err)
	}

	out, err := c.runner.Invoke(ctx, map[string]any{
		"input": payload,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("composer invoke failed, degrading to ungrounded fallback")
		return fallbackAnswer(req.Notes), nil
	}
	text := strings.TrimSpace(out.Answer)
	if text == "" {
		c.log.Warn().Msg("composer returned empty answer, degrading to ungrounded fallback")
		return fallbackAnswer(req.Notes), nil
	}

	cited := CitedSubset(text, citations)
	return contractx.Answer{
		Text:       text + "\n\n" + Disclaimer,
		Citations:  cited,
		Provenance: DeriveProvenance(cited),
		Notes:      req.Notes,
	}, nil
}

func buildPayload(req contractx.ComposeRequest, citations []contractx.Citation) (string, error) {
	type evidenceEntry struct {
		Marker string `json:"marker"`
		Text   string `json:"text"`
	}
	evidence := make([]evidenceEntry, 0, len(citations))
	for i, p := range req.Passages {
		evidence = append(evidence, evidenceEntry{
			Marker: citations[i].Marker,
			Text:   p.Text,
		})
	}
	for i, s := range req.Snippets {
		evidence = append(evidence, evidenceEntry{
			Marker: citations[len(req.Passages)+i].Marker,
			Text:   s.Title + ": " + s.Content,
		})
	}

	raw, err := json.Marshal(map[string]any{
		"question":        req.Question,
		"patient_context": req.PatientContext,
		"evidence":        evidence,
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// BuildCitations assigns stable markers to the evidence: S1..Sn for corpus
// passages in retrieval order, then W1..Wn for web snippets in rank order.
func BuildCitations(passages []contractx.Passage, snippets []contractx.WebSnippet) []contractx.Citation {
	citations := make([]contractx.Citation, 0, len(passages)+len(snippets))
	for i, p := range passages {
		locator := fmt.Sprintf("%s p.%d", p.ChunkID, p.Page)
		if p.Section != "" {
			locator = fmt.Sprintf("%s (%s) p.%d", p.ChunkID, p.Section, p.Page)
		}
		citations = append(citations, contractx.Citation{
			Marker:  fmt.Sprintf("S%d", i+1),
			Kind:    contractx.CitationCorpus,
			Locator: locator,
		})
	}
	for i, s := range snippets {
		citations = append(citations, contractx.Citation{
			Marker:  fmt.Sprintf("W%d", i+1),
			Kind:    contractx.CitationWeb,
			Locator: s.URL,
		})
	}
	return citations
}

// CitedSubset keeps the citations whose markers actually appear in the text,
// ordered by first appearance. A text with no markers cites everything the
// model was shown, since all of it informed the answer.
func CitedSubset(text string, citations []contractx.Citation) []contractx.Citation {
	matches := markerPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return citations
	}

	byMarker := make(map[string]contractx.Citation, len(citations))
	for _, c := range citations {
		byMarker[c.Marker] = c
	}

	seen := make(map[string]bool, len(matches))
	cited := make([]contractx.Citation, 0, len(matches))
	for _, m := range matches {
		marker := m[1]
		if seen[marker] {
			continue
		}
		seen[marker] = true
		if c, ok := byMarker[marker]; ok {
			cited = append(cited, c)
		}
	}
	if len(cited) == 0 {
		return citations
	}
	return cited
}

// DeriveProvenance reports which evidence kinds the citations draw on.
func DeriveProvenance(citations []contractx.Citation) contractx.Provenance {
	var corpus, web bool
	for _, c := range citations {
		switch c.Kind {
		case contractx.CitationCorpus:
			corpus = true
		case contractx.CitationWeb:
			web = true
		}
	}
	switch {
	case corpus && web:
		return contractx.ProvenanceBoth
	case corpus:
		return contractx.ProvenanceCorpus
	case web:
		return contractx.ProvenanceWeb
	default:
		return contractx.ProvenanceUngrounded
	}
}

func fallbackAnswer(notes []string) contractx.Answer {
	return contractx.Answer{
		Text:       FallbackText,
		Provenance: contractx.ProvenanceUngrounded,
		Notes:      notes,
	}
}
