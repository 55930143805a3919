package receptionist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"

	contractx "github.com/pchaya/aftercare/agent/contract"
	llmx "github.com/pchaya/aftercare/agent/llm"
	statex "github.com/pchaya/aftercare/agent/state"
)

// MaxNameRetries bounds how many failed identifications the front desk
// tolerates before it stops re-asking and points the patient at the clinic.
const MaxNameRetries = 3

const (
	namePrompt        = "Hello! I'm your post-discharge care assistant. Could you tell me your full name as it appears on your discharge papers?"
	nameRetryPrompt   = "I couldn't find that name in our discharge records. Could you spell out your full name exactly as it appears on your discharge papers?"
	nameGiveUpPrompt  = "I still can't find you in our records. Please call the clinic's front desk so they can check your registration, then come back and we'll pick it up from there."
	directoryDownText = "I'm having trouble reaching our patient records right now. Could you tell me your name again in a moment?"
)

type smalltalkOutput struct {
	Message string `json:"message"`
}

// Receptionist handles identification and non-medical conversation. Medical
// turns are routed to the clinical agent untouched.
type Receptionist struct {
	directory  contractx.PatientDirectory
	classifier contractx.Classifier
	smalltalk  compose.Runnable[map[string]any, smalltalkOutput]
	log        zerolog.Logger
}

var _ contractx.Agent = (*Receptionist)(nil)

type Option func(*Receptionist)

// WithSmalltalkModel compiles an LLM pipeline for conversational replies in
// the greeted stage. Without it, replies come from fixed templates.
func WithSmalltalkModel(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) Option {
	return func(r *Receptionist) {
		runner, err := llmx.CompileStructuredGraph[smalltalkOutput](ctx, chatModel, systemPrompt, "receptionist.smalltalk")
		if err != nil {
			r.log.Warn().Err(err).Msg("smalltalk graph compile failed, using template replies")
			return
		}
		r.smalltalk = runner
	}
}

func New(directory contractx.PatientDirectory, classifier contractx.Classifier, log zerolog.Logger, opts ...Option) (*Receptionist, error) {
	if directory == nil {
		return nil, fmt.Errorf("%w: patient directory is required", contractx.ErrValidation)
	}
	if classifier == nil {
		return nil, fmt.Errorf("%w: classifier is required", contractx.ErrValidation)
	}
	r := &Receptionist{directory: directory, classifier: classifier, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Receptionist) Handle(ctx context.Context, text string, sess *statex.Session) (contractx.TurnResult, error) {
	switch sess.Stage {
	case statex.StageAwaitingName:
		return r.identify(ctx, text, sess)
	default:
		return r.converse(ctx, text, sess)
	}
}

// identify resolves the patient's name against the directory and, on
// success, greets them with their discharge summary.
func (r *Receptionist) identify(ctx context.Context, text string, sess *statex.Session) (contractx.TurnResult, error) {
	name, ok := extractName(text)
	if !ok || isGreeting(name) {
		return contractx.TurnResult{Reply: namePrompt}, nil
	}

	rec, err := r.directory.Lookup(ctx, name)
	if err != nil {
		if errors.Is(err, contractx.ErrPatientNotFound) {
			if sess.NameRetries+1 >= MaxNameRetries {
				r.log.Info().Str("session_id", sess.ID).Msg("identification retries exhausted")
				return contractx.TurnResult{
					Reply: nameGiveUpPrompt,
					Delta: contractx.SessionDelta{BumpNameRetries: true},
				}, nil
			}
			return contractx.TurnResult{
				Reply: nameRetryPrompt,
				Delta: contractx.SessionDelta{BumpNameRetries: true},
			}, nil
		}
		// Directory outage is not the patient's fault: re-prompt, do not
		// burn a retry.
		r.log.Error().Err(err).Str("session_id", sess.ID).Msg("patient directory unavailable")
		return contractx.TurnResult{Reply: directoryDownText}, nil
	}

	return contractx.TurnResult{
		Reply: greeting(rec),
		Delta: contractx.SessionDelta{
			SetStage:         statex.StageGreeted,
			BindPatient:      rec,
			ResetNameRetries: true,
		},
	}, nil
}

// converse answers a non-medical turn, or signals the orchestrator to route
// a medical one to the clinical agent.
func (r *Receptionist) converse(ctx context.Context, text string, sess *statex.Session) (contractx.TurnResult, error) {
	kind, err := r.classifier.Classify(ctx, contractx.ClassifyRequest{
		Text:      text,
		Stage:     sess.Stage,
		Diagnosis: sess.Diagnosis(),
	})
	if err != nil {
		return contractx.TurnResult{}, err
	}
	if kind == contractx.TurnMedical {
		// The clinical agent owns the turn from here.
		return contractx.TurnResult{
			Route: contractx.RouteClinical,
			Delta: contractx.SessionDelta{SetStage: statex.StageClinical},
		}, nil
	}

	return contractx.TurnResult{Reply: r.smalltalkReply(ctx, text, sess)}, nil
}

func (r *Receptionist) smalltalkReply(ctx context.Context, text string, sess *statex.Session) string {
	fallback := templateReply(sess.Patient)
	if r.smalltalk == nil {
		return fallback
	}

	payload, err := json.Marshal(map[string]any{
		"text":    text,
		"patient": sess.Patient,
	})
	if err != nil {
		return fallback
	}
	out, err := r.smalltalk.Invoke(ctx, map[string]any{
		"input": string(payload),
	})
	if err != nil || strings.TrimSpace(out.Message) == "" {
		r.log.Warn().Err(err).Msg("smalltalk invoke failed, using template reply")
		return fallback
	}
	return strings.TrimSpace(out.Message)
}

func templateReply(rec *statex.PatientRecord) string {
	if rec != nil && rec.FollowUp != "" {
		return fmt.Sprintf("Happy to help. Your next step is: %s. Ask me anything about your recovery whenever you're ready.", rec.FollowUp)
	}
	return "Happy to help. Ask me anything about your recovery whenever you're ready."
}

// greeting renders the discharge summary the patient sees once identified.
func greeting(rec *statex.PatientRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Welcome back, %s. Here's a quick look at your discharge summary:\n", rec.Name)
	fmt.Fprintf(&b, "- Diagnosis: %s\n", rec.PrimaryDiagnosis)
	if len(rec.SecondaryDiagnoses) > 0 {
		fmt.Fprintf(&b, "- Also noted: %s\n", strings.Join(rec.SecondaryDiagnoses, ", "))
	}
	if len(rec.Medications) > 0 {
		fmt.Fprintf(&b, "- Medications: %s\n", strings.Join(rec.Medications, ", "))
	}
	if rec.DietaryRestrictions != "" {
		fmt.Fprintf(&b, "- Diet: %s\n", rec.DietaryRestrictions)
	}
	if rec.FollowUp != "" {
		fmt.Fprintf(&b, "- Follow-up: %s\n", rec.FollowUp)
	}
	if rec.WarningSigns != "" {
		fmt.Fprintf(&b, "- Watch for: %s\n", rec.WarningSigns)
	}
	if rec.AttendingPhysician != "" {
		fmt.Fprintf(&b, "- Attending physician: %s\n", rec.AttendingPhysician)
	}
	b.WriteString("\nHow are you feeling today? I can answer questions about your recovery.")
	return b.String()
}

// isGreeting catches salutations so a "hello" is answered with the name
// prompt instead of a failed directory lookup.
func isGreeting(text string) bool {
	switch strings.ToLower(text) {
	case "hello", "hi", "hey", "good morning", "good afternoon", "good evening", "yo":
		return true
	}
	return false
}

// extractName treats the whole message as a candidate name once obvious
// lead-ins are stripped. A usable name has at least one letter and no digits.
func extractName(text string) (string, bool) {
	name := strings.TrimSpace(text)
	for _, prefix := range []string{"my name is ", "i am ", "i'm ", "this is ", "it's "} {
		if len(name) > len(prefix) && strings.EqualFold(name[:len(prefix)], prefix) {
			name = strings.TrimSpace(name[len(prefix):])
			break
		}
	}
	name = strings.Trim(name, ".!,")
	if name == "" || len(name) > 100 {
		return "", false
	}
	hasLetter := false
	for _, r := range name {
		if unicode.IsDigit(r) {
			return "", false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	if !hasLetter {
		return "", false
	}
	return name, true
}
