package domain

import "fmt"

// OutcomeKind enumerates the results of a generation pass
type OutcomeKind int

const (
	OutcomeFinal OutcomeKind = iota
	OutcomeSuppressed
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFinal:
		return "final"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// GenerationOutcome is the result of one resolution run
type GenerationOutcome struct {
	Kind OutcomeKind
	Text string // Set for OutcomeFinal
	Err  error  // Set for OutcomeFailed
}

// Final builds a final-text outcome
func Final(text string) GenerationOutcome {
	return GenerationOutcome{Kind: OutcomeFinal, Text: text}
}

// Suppressed builds a no-reply outcome
func Suppressed() GenerationOutcome {
	return GenerationOutcome{Kind: OutcomeSuppressed}
}

// Failed builds a failure outcome
func Failed(err error) GenerationOutcome {
	return GenerationOutcome{Kind: OutcomeFailed, Err: err}
}

// Suppress converts a final outcome carrying the no-reply sentinel into Suppressed.
// Other outcomes are returned unchanged.
func (o GenerationOutcome) Suppress() GenerationOutcome {
	if o.Kind == OutcomeFinal && o.Text == NoReplyToken {
		return Suppressed()
	}
	return o
}
