package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	contractx "github.com/pchaya/aftercare/agent/contract"
	statex "github.com/pchaya/aftercare/agent/state"
)

type patientRow struct {
	bun.BaseModel `bun:"table:patients"`

	ID                  int64    `bun:"id,pk,autoincrement"`
	Name                string   `bun:"name,notnull"`
	PrimaryDiagnosis    string   `bun:"primary_diagnosis,notnull"`
	SecondaryDiagnoses  []string `bun:"secondary_diagnoses,array"`
	Medications         []string `bun:"medications,array"`
	DietaryRestrictions string   `bun:"dietary_restrictions"`
	FollowUp            string   `bun:"follow_up"`
	WarningSigns        string   `bun:"warning_signs"`
	DischargeDate       string   `bun:"discharge_date"`
	AttendingPhysician  string   `bun:"attending_physician"`
}

// BunDirectory looks patients up in the discharge registry table. Name
// matching is case-insensitive; the registry owns canonical casing.
type BunDirectory struct {
	db *bun.DB
}

var _ contractx.PatientDirectory = (*BunDirectory)(nil)

func New(db *bun.DB) (*BunDirectory, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: db handle is required", contractx.ErrValidation)
	}
	return &BunDirectory{db: db}, nil
}

func (d *BunDirectory) Lookup(ctx context.Context, name string) (*statex.PatientRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: patient name is required", contractx.ErrValidation)
	}

	var row patientRow
	err := d.db.NewSelect().
		Model(&row).
		Where("lower(name) = lower(?)", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", contractx.ErrPatientNotFound, name)
		}
		return nil, fmt.Errorf("patient lookup %q: %w", name, err)
	}

	return &statex.PatientRecord{
		Name:                row.Name,
		PrimaryDiagnosis:    row.PrimaryDiagnosis,
		SecondaryDiagnoses:  row.SecondaryDiagnoses,
		Medications:         row.Medications,
		DietaryRestrictions: row.DietaryRestrictions,
		FollowUp:            row.FollowUp,
		WarningSigns:        row.WarningSigns,
		DischargeDate:       row.DischargeDate,
		AttendingPhysician:  row.AttendingPhysician,
	}, nil
}

// StaticDirectory serves a fixed roster, for local development without a
// registry database.
type StaticDirectory struct {
	records map[string]statex.PatientRecord
}

var _ contractx.PatientDirectory = (*StaticDirectory)(nil)

func NewStatic(records []statex.PatientRecord) *StaticDirectory {
	byName := make(map[string]statex.PatientRecord, len(records))
	for _, r := range records {
		byName[strings.ToLower(strings.TrimSpace(r.Name))] = r
	}
	return &StaticDirectory{records: byName}
}

func (d *StaticDirectory) Lookup(_ context.Context, name string) (*statex.PatientRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: patient name is required", contractx.ErrValidation)
	}
	rec, ok := d.records[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", contractx.ErrPatientNotFound, name)
	}
	out := rec
	return &out, nil
}
