package contract

import (
	"context"

	statex "github.com/pchaya/aftercare/agent/state"
)

// Agent is the closed set of conversational agents behind one polymorphic
// interface. The session is a read-only snapshot; mutations travel back in
// the TurnResult delta.
type Agent interface {
	Handle(ctx context.Context, text string, sess *statex.Session) (TurnResult, error)
}

// Registry exposes the agents the orchestrator dispatches to.
type Registry interface {
	Receptionist() Agent
	Clinical() Agent
}

// Classifier decides what kind of turn a message is. Implementations must
// prefer the clinical path when uncertain.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (TurnKind, error)
}

// PatientDirectory wraps the external patient-record lookup.
type PatientDirectory interface {
	Lookup(ctx context.Context, name string) (*statex.PatientRecord, error)
}

// Retriever wraps the external vector index. Deterministic for a fixed
// index and query; passages below the score floor are excluded.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Passage, error)
}

// WebSearcher wraps the external web-search provider.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]WebSnippet, error)
}

// Composer builds a grounded prompt over the gathered evidence and returns
// a cited Answer. Completion failures degrade to an ungrounded fallback
// Answer rather than an error.
type Composer interface {
	Compose(ctx context.Context, req ComposeRequest) (Answer, error)
}

// InteractionLog is the append-only per-turn record consumed by analytics.
type InteractionLog interface {
	Append(ctx context.Context, rec TurnRecord) error
}
