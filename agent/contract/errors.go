package contract

import "errors"

var (
	ErrModelInvoke         = errors.New("model invoke failed")
	ErrSchemaViolation     = errors.New("model response violates schema")
	ErrPromptMissing       = errors.New("required prompt is missing")
	ErrValidation          = errors.New("validation failed")
	ErrRoundBudgetExceeded = errors.New("decision round budget exceeded")
	ErrSessionNotFound     = errors.New("session not found")
	ErrNoAnswer            = errors.New("agent did not produce a valid response")
)
