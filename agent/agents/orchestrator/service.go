package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	contractx "github.com/pchaya/aftercare/agent/contract"
	nodex "github.com/pchaya/aftercare/agent/nodes/orchestrator"
	statex "github.com/pchaya/aftercare/agent/state"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

// Request is one inbound user turn. An empty SessionID starts a new
// conversation; Restart wipes an existing one.
type Request struct {
	SessionID string
	Message   string
	Restart   bool
}

type Result struct {
	SessionID string
	Reply     string
	Stage     statex.Stage
}

// Orchestrator runs the per-turn pipeline: acquire the session, route the
// text to the owning agent, publish the mutated session, record the turn.
type Orchestrator struct {
	sessions *statex.Manager
	registry contractx.Registry
	audit    contractx.InteractionLog
	log      zerolog.Logger

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now       func() time.Time
	newTurnID func() string
}

func New(sessions *statex.Manager, registry contractx.Registry, audit contractx.InteractionLog, log zerolog.Logger) (*Orchestrator, error) {
	if sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if registry == nil {
		return nil, errors.New("agent registry is required")
	}
	if audit == nil {
		return nil, errors.New("interaction log is required")
	}

	o := &Orchestrator{
		sessions:  sessions,
		registry:  registry,
		audit:     audit,
		log:       log,
		now:       time.Now,
		newTurnID: uuid.NewString,
	}

	graphRunner, err := o.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleTurn processes one user turn end to end. The working session is a
// clone; a failed turn leaves the stored session exactly as it was.
func (o *Orchestrator) HandleTurn(ctx context.Context, req Request) (Result, error) {
	start := o.now()
	turnID := o.newTurnID()

	sess, release, err := o.sessions.Begin(ctx, req.SessionID)
	if err != nil {
		return Result{}, err
	}
	defer release()
	stageBefore := sess.Stage

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		Session: sess,
		Text:    req.Message,
		Restart: req.Restart,
	})
	if err != nil {
		o.record(ctx, turnID, sess.ID, stageBefore, sess.Stage, nodex.GraphOutput{}, err, start)
		return Result{}, err
	}

	if err := o.sessions.Commit(ctx, sess); err != nil {
		o.record(ctx, turnID, sess.ID, stageBefore, sess.Stage, out, err, start)
		return Result{}, err
	}

	o.record(ctx, turnID, sess.ID, stageBefore, sess.Stage, out, nil, start)
	return Result{
		SessionID: out.SessionID,
		Reply:     out.Reply,
		Stage:     out.Stage,
	}, nil
}

func (o *Orchestrator) record(ctx context.Context, turnID, sessionID string, stageBefore, stageAfter statex.Stage, out nodex.GraphOutput, turnErr error, start time.Time) {
	latency := o.now().Sub(start)

	event := o.log.Info()
	if turnErr != nil {
		event = o.log.Error().Err(turnErr)
	}
	event.
		Str("turn_id", turnID).
		Str("session_id", sessionID).
		Str("stage_before", string(stageBefore)).
		Str("stage_after", string(stageAfter)).
		Str("agent", string(out.Agent)).
		Str("provenance", string(out.Provenance)).
		Dur("latency", latency).
		Msg("turn handled")

	rec := contractx.TurnRecord{
		TurnID:      turnID,
		SessionID:   sessionID,
		StageBefore: stageBefore,
		StageAfter:  stageAfter,
		Agent:       out.Agent,
		EvidenceIDs: out.EvidenceIDs,
		Provenance:  out.Provenance,
		Latency:     latency,
		At:          start.UTC(),
	}
	if turnErr != nil {
		rec.Error = turnErr.Error()
	}
	// The log is observability, not correctness: a failed append never
	// fails the turn.
	if err := o.audit.Append(ctx, rec); err != nil {
		o.log.Warn().Err(err).Str("turn_id", turnID).Msg("interaction log append failed")
	}
}
