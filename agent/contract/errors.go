package contract

import "errors"

var (
	ErrProviderUnavailable       = errors.New("provider unavailable")
	ErrProviderContractViolation = errors.New("provider response violates contract")
	ErrToolExecutionFailed       = errors.New("tool execution failed")
	ErrIntentAmbiguous           = errors.New("intent is ambiguous")
	ErrToolLoopExceeded          = errors.New("tool loop exceeded iteration cap")
	ErrPromptMissing             = errors.New("required prompt is missing")
	ErrValidation                = errors.New("validation failed")
)

