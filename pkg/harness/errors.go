package harness

import (
	"errors"
	"fmt"
)

var (
	// ErrEqualityViolation marks a token-sequence mismatch between baseline
	// and test engines. This is the primary correctness signal the harness
	// exists to detect; it is never downgraded.
	ErrEqualityViolation = errors.New("harness: baseline and test token sequences diverged")

	// ErrAcceptanceRateViolation marks a measured acceptance rate below the
	// required threshold, or not exactly 1.0 when that is required.
	ErrAcceptanceRateViolation = errors.New("harness: acceptance rate requirement not met")
)

// EqualityError reports the first prompt index whose sequences diverged.
type EqualityError struct {
	Index    int
	Prompt   string
	Baseline []int
	Test     []int
}

func (e *EqualityError) Error() string {
	return fmt.Sprintf("harness: prompt %d (%q): baseline %v != test %v",
		e.Index, e.Prompt, e.Baseline, e.Test)
}

func (e *EqualityError) Unwrap() error { return ErrEqualityViolation }

// AcceptanceRateError reports a failed acceptance-rate check.
type AcceptanceRateError struct {
	Measured float64
	Required float64

	// ExactlyOne is set when the check demanded rate == 1.0 (identical
	// draft and target model).
	ExactlyOne bool
}

func (e *AcceptanceRateError) Error() string {
	if e.ExactlyOne {
		return fmt.Sprintf("harness: acceptance rate %v, want exactly 1.0", e.Measured)
	}
	return fmt.Sprintf("harness: acceptance rate %v, want >= %v - 0.01", e.Measured, e.Required)
}

func (e *AcceptanceRateError) Unwrap() error { return ErrAcceptanceRateViolation }
