package engine

import "errors"

var (
	// ErrInvalidArgument is returned when Generate is called without prompts.
	ErrInvalidArgument = errors.New("engine: prompts must be provided")

	// ErrConfigurationMismatch is returned when a per-prompt sampling-params
	// list does not line up with the prompt list. Reported before any
	// generation occurs.
	ErrConfigurationMismatch = errors.New("engine: prompts and sampling params length mismatch")

	// ErrEngineConstruction wraps backend construction failures. It is fatal
	// to the current test case only.
	ErrEngineConstruction = errors.New("engine: construction failed")
)
