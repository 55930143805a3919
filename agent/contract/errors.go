package contract

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrModelInvoke         = errors.New("model invoke failed")
	ErrSchemaViolation     = errors.New("model response violates schema")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrEvidenceUnavailable = errors.New("evidence source unavailable")
	ErrGenerationFailed    = errors.New("answer generation failed")
)
