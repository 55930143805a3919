package auditlog

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/pchaya/aftercare/agent/contract"
)

type turnRow struct {
	bun.BaseModel `bun:"table:turn_records"`

	TurnID      string    `bun:"turn_id,pk"`
	SessionID   string    `bun:"session_id,notnull"`
	StageBefore string    `bun:"stage_before,notnull"`
	StageAfter  string    `bun:"stage_after,notnull"`
	Agent       string    `bun:"agent,notnull"`
	EvidenceIDs []string  `bun:"evidence_ids,array"`
	Provenance  string    `bun:"provenance"`
	LatencyMS   int64     `bun:"latency_ms,notnull"`
	Error       string    `bun:"error"`
	At          time.Time `bun:"at,notnull"`
}

// BunLog appends turn records to the interaction-log table. Append-only:
// nothing in this package reads the table back.
type BunLog struct {
	db *bun.DB
}

var _ contractx.InteractionLog = (*BunLog)(nil)

func New(db *bun.DB) (*BunLog, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: db handle is required", contractx.ErrValidation)
	}
	return &BunLog{db: db}, nil
}

func (l *BunLog) Append(ctx context.Context, rec contractx.TurnRecord) error {
	row := turnRow{
		TurnID:      rec.TurnID,
		SessionID:   rec.SessionID,
		StageBefore: string(rec.StageBefore),
		StageAfter:  string(rec.StageAfter),
		Agent:       string(rec.Agent),
		EvidenceIDs: rec.EvidenceIDs,
		Provenance:  string(rec.Provenance),
		LatencyMS:   rec.Latency.Milliseconds(),
		Error:       rec.Error,
		At:          rec.At,
	}
	if _, err := l.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("append turn record %s: %w", rec.TurnID, err)
	}
	return nil
}

// Noop discards records, for setups without an interaction-log database.
type Noop struct{}

var _ contractx.InteractionLog = Noop{}

func (Noop) Append(context.Context, contractx.TurnRecord) error { return nil }
