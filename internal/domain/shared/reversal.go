package shared

// ReversalOutcome summarizes a best-effort reversal
type ReversalOutcome string

const (
	// ReversalComplete means every item was reversed
	ReversalComplete ReversalOutcome = "COMPLETE"
	// ReversalPartial means some items are still pending reversal
	ReversalPartial ReversalOutcome = "PARTIAL"
)

// OutcomeOf derives the outcome from the number of failed items
func OutcomeOf(failures int) ReversalOutcome {
	if failures > 0 {
		return ReversalPartial
	}
	return ReversalComplete
}
