package clinical

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	contractx "github.com/pchaya/aftercare/agent/contract"
	ragx "github.com/pchaya/aftercare/agent/rag"
	statex "github.com/pchaya/aftercare/agent/state"
)

const escalationText = "I can't verify an answer for you right now because my reference sources are unreachable. " +
	"For anything urgent, please contact your care team or emergency services immediately."

// timeSensitiveCues trigger a web lookup even when the corpus scores well:
// discharge guidelines age, the web does not.
var timeSensitiveCues = []string{
	"latest", "newest", "recent", "recently", "new research", "new study",
	"current guidelines", "this year", "update", "news",
}

// Clinical answers medical questions over retrieved evidence. It never
// answers from the model's own knowledge: no evidence means an explicit
// ungrounded reply, not a guess.
type Clinical struct {
	classifier contractx.Classifier
	retriever  contractx.Retriever
	web        contractx.WebSearcher
	composer   contractx.Composer
	topK       int
	log        zerolog.Logger
}

var _ contractx.Agent = (*Clinical)(nil)

func New(classifier contractx.Classifier, retriever contractx.Retriever, web contractx.WebSearcher, composer contractx.Composer, log zerolog.Logger) (*Clinical, error) {
	if classifier == nil {
		return nil, fmt.Errorf("%w: classifier is required", contractx.ErrValidation)
	}
	if retriever == nil {
		return nil, fmt.Errorf("%w: retriever is required", contractx.ErrValidation)
	}
	if web == nil {
		return nil, fmt.Errorf("%w: web searcher is required", contractx.ErrValidation)
	}
	if composer == nil {
		return nil, fmt.Errorf("%w: composer is required", contractx.ErrValidation)
	}
	return &Clinical{
		classifier: classifier,
		retriever:  retriever,
		web:        web,
		composer:   composer,
		topK:       ragx.DefaultTopK,
		log:        log,
	}, nil
}

func (c *Clinical) Handle(ctx context.Context, text string, sess *statex.Session) (contractx.TurnResult, error) {
	kind, err := c.classifier.Classify(ctx, contractx.ClassifyRequest{
		Text:      text,
		Stage:     sess.Stage,
		Diagnosis: sess.Diagnosis(),
	})
	if err != nil {
		return contractx.TurnResult{}, err
	}
	if kind == contractx.TurnClosure {
		// Topic is done; the front desk takes the turn from here.
		return contractx.TurnResult{
			Route: contractx.RouteReceptionist,
			Delta: contractx.SessionDelta{SetStage: statex.StageGreeted},
		}, nil
	}

	return c.answer(ctx, text, sess)
}

func (c *Clinical) answer(ctx context.Context, text string, sess *statex.Session) (contractx.TurnResult, error) {
	var notes []string

	passages, retErr := c.retriever.Search(ctx, text, c.topK)
	if retErr != nil {
		c.log.Error().Err(retErr).Str("session_id", sess.ID).Msg("corpus retrieval failed")
		notes = append(notes, "corpus unavailable")
		passages = nil
	}

	var snippets []contractx.WebSnippet
	var webErr error
	if retErr != nil || len(passages) == 0 || hasTimeSensitiveCue(text) {
		snippets, webErr = c.web.Search(ctx, webQuery(text, sess.Diagnosis()))
		if webErr != nil {
			c.log.Error().Err(webErr).Str("session_id", sess.ID).Msg("web search failed")
			notes = append(notes, "web search unavailable")
			snippets = nil
		}
	}

	if retErr != nil && webErr != nil {
		// Both evidence sources are down; nothing to compose over.
		return contractx.TurnResult{
			Reply:      escalationText,
			Provenance: contractx.ProvenanceUngrounded,
		}, nil
	}

	ans, err := c.composer.Compose(ctx, contractx.ComposeRequest{
		Question:       text,
		Passages:       passages,
		Snippets:       snippets,
		PatientContext: patientContext(sess.Patient),
		Notes:          notes,
	})
	if err != nil {
		return contractx.TurnResult{}, fmt.Errorf("%w: %v", contractx.ErrGenerationFailed, err)
	}

	return contractx.TurnResult{
		Reply:       renderReply(ans),
		EvidenceIDs: evidenceIDs(passages, snippets),
		Provenance:  ans.Provenance,
	}, nil
}

// renderReply appends the source list so the patient can see exactly what
// the answer rests on.
func renderReply(ans contractx.Answer) string {
	if len(ans.Citations) == 0 {
		return ans.Text
	}
	var b strings.Builder
	b.WriteString(ans.Text)
	b.WriteString("\n\nSources:")
	for _, c := range ans.Citations {
		fmt.Fprintf(&b, "\n[%s] %s", c.Marker, c.Locator)
	}
	return b.String()
}

func evidenceIDs(passages []contractx.Passage, snippets []contractx.WebSnippet) []string {
	ids := make([]string, 0, len(passages)+len(snippets))
	for _, p := range passages {
		ids = append(ids, p.ChunkID)
	}
	for _, s := range snippets {
		ids = append(ids, s.URL)
	}
	return ids
}

func patientContext(rec *statex.PatientRecord) string {
	if rec == nil {
		return ""
	}
	parts := []string{fmt.Sprintf("Patient %s, diagnosed with %s.", rec.Name, rec.PrimaryDiagnosis)}
	if len(rec.SecondaryDiagnoses) > 0 {
		parts = append(parts, "Also noted: "+strings.Join(rec.SecondaryDiagnoses, ", ")+".")
	}
	if len(rec.Medications) > 0 {
		parts = append(parts, "Medications: "+strings.Join(rec.Medications, ", ")+".")
	}
	if rec.DietaryRestrictions != "" {
		parts = append(parts, "Dietary restrictions: "+rec.DietaryRestrictions+".")
	}
	if rec.WarningSigns != "" {
		parts = append(parts, "Warning signs to watch: "+rec.WarningSigns+".")
	}
	if rec.DischargeDate != "" {
		parts = append(parts, "Discharged on "+rec.DischargeDate+".")
	}
	return strings.Join(parts, " ")
}

// webQuery scopes the search to the patient's condition so general-web
// results stay on topic.
func webQuery(text, diagnosis string) string {
	if diagnosis == "" {
		return text
	}
	return diagnosis + " " + text
}

func hasTimeSensitiveCue(text string) bool {
	lower := strings.ToLower(text)
	for _, cue := range timeSensitiveCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}
