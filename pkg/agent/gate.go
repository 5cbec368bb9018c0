package agent

import (
	"fmt"

	"github.com/codeready-toolchain/responder/pkg/models"
)

// DefaultMinConfidence is the lowest confidence allowed to remediate.
const DefaultMinConfidence = 0.3

// Gate decides whether a diagnosis is trustworthy enough to write to the
// repository. Risk level is reported to reviewers and does not gate.
type Gate struct {
	MinConfidence float64
}

// NewGate returns a Gate with the given threshold.
func NewGate(minConfidence float64) Gate {
	return Gate{MinConfidence: minConfidence}
}

// Decision is the outcome of a gate evaluation.
type Decision struct {
	Remediate bool
	Reason    string
}

// ShouldRemediate is true iff confidence >= MinConfidence and at least one
// change was proposed.
func (g Gate) ShouldRemediate(d *models.DiagnosisResult) bool {
	return g.Evaluate(d).Remediate
}

// Evaluate returns the decision together with a human readable reason.
func (g Gate) Evaluate(d *models.DiagnosisResult) Decision {
	switch {
	case d == nil:
		return Decision{Reason: "no diagnosis"}
	case len(d.ProposedChanges) == 0:
		return Decision{Reason: "no proposed changes"}
	case d.Confidence < g.MinConfidence:
		return Decision{Reason: fmt.Sprintf("confidence %.2f below threshold %.2f", d.Confidence, g.MinConfidence)}
	default:
		return Decision{Remediate: true, Reason: fmt.Sprintf("%d proposed change(s) at confidence %.2f", len(d.ProposedChanges), d.Confidence)}
	}
}
