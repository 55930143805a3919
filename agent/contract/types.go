package contract

import (
	"time"

	statex "github.com/pchaya/aftercare/agent/state"
)

type AgentType string

const (
	AgentTypeReceptionist AgentType = "receptionist"
	AgentTypeClinical     AgentType = "clinical"
	AgentTypeClassifier   AgentType = "classifier"
	AgentTypeComposer     AgentType = "composer"
)

// TurnKind is the classifier's verdict on a single user turn.
type TurnKind string

const (
	TurnMedical   TurnKind = "medical"
	TurnLogistics TurnKind = "logistics"
	TurnClosure   TurnKind = "closure"
)

// RouteSignal lets an agent hand the current turn's text to its counterpart
// instead of answering itself. The orchestrator honors at most one hop.
type RouteSignal string

const (
	RouteNone         RouteSignal = ""
	RouteClinical     RouteSignal = "clinical"
	RouteReceptionist RouteSignal = "receptionist"
)

// Provenance tags an Answer with the evidence that supports it.
type Provenance string

const (
	ProvenanceCorpus     Provenance = "corpus"
	ProvenanceWeb        Provenance = "web"
	ProvenanceBoth       Provenance = "both"
	ProvenanceUngrounded Provenance = "ungrounded"
)

// Passage is one scored chunk returned by the retriever. Produced fresh per
// query; relevance scores are comparable within one call only.
type Passage struct {
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
	Page    int     `json:"page"`
	Section string  `json:"section,omitempty"`
}

// WebSnippet is one ranked web search result.
type WebSnippet struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type CitationKind string

const (
	CitationCorpus CitationKind = "corpus"
	CitationWeb    CitationKind = "web"
)

// Citation maps a marker in the answer text back to its evidence source.
type Citation struct {
	Marker  string       `json:"marker"`
	Kind    CitationKind `json:"kind"`
	Locator string       `json:"locator"`
}

// Answer is a composed reply with its supporting evidence. An ungrounded
// answer must say so; it is never presented as a grounded medical claim.
type Answer struct {
	Text       string     `json:"text"`
	Citations  []Citation `json:"citations,omitempty"`
	Provenance Provenance `json:"provenance"`
	Notes      []string   `json:"notes,omitempty"`
}

// SessionDelta is the set of session mutations an agent requests for the
// current turn. Zero values leave the corresponding field untouched.
type SessionDelta struct {
	SetStage         statex.Stage
	BindPatient      *statex.PatientRecord
	BumpNameRetries  bool
	ResetNameRetries bool
}

// TurnResult is what an agent hands back to the orchestrator.
type TurnResult struct {
	Reply string
	Delta SessionDelta
	Route RouteSignal
	// Evidence ids backing the reply, recorded in the interaction log.
	EvidenceIDs []string
	Provenance  Provenance
}

// ClassifyRequest carries the turn plus the context the classifier may use.
type ClassifyRequest struct {
	Text      string
	Stage     statex.Stage
	Diagnosis string
}

// ComposeRequest enumerates everything the composer folds into the prompt.
type ComposeRequest struct {
	Question       string
	Passages       []Passage
	Snippets       []WebSnippet
	PatientContext string
	Notes          []string
}

// TurnRecord is one append-only interaction-log entry.
type TurnRecord struct {
	TurnID      string
	SessionID   string
	StageBefore statex.Stage
	StageAfter  statex.Stage
	Agent       AgentType
	EvidenceIDs []string
	Provenance  Provenance
	Latency     time.Duration
	Error       string
	At          time.Time
}
