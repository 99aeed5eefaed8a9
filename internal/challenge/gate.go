package challenge

// Outcome is the state of the scoring gate
type Outcome int

const (
	NoDecision Outcome = iota
	Success
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "no_decision"
	}
}

// DefaultPassThreshold is the score a submission must exceed
const DefaultPassThreshold = 90

// Gate turns the current score into a pass/fail outcome. A score passes
// only when it is strictly greater than the threshold.
type Gate struct {
	threshold int
	outcome   Outcome
}

// NewGate creates a gate in the NoDecision state
func NewGate(threshold int) Gate {
	return Gate{threshold: threshold}
}

// Threshold returns the pass threshold
func (g Gate) Threshold() int {
	return g.threshold
}

// Outcome returns the current state
func (g Gate) Outcome() Outcome {
	return g.outcome
}

// Decided reports whether an outcome is showing
func (g Gate) Decided() bool {
	return g.outcome != NoDecision
}

// Evaluate moves the gate to Success or Failure for score
func (g *Gate) Evaluate(score int) Outcome {
	if score > g.threshold {
		g.outcome = Success
	} else {
		g.outcome = Failure
	}
	return g.outcome
}

// Close dismisses the outcome and returns to NoDecision
func (g *Gate) Close() {
	g.outcome = NoDecision
}
