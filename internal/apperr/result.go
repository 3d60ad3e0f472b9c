package apperr

import "encoding/json"

// Outcome classifies a multi-step write.
type Outcome int

const (
	Succeeded Outcome = iota
	// Partial means at least one step mutated the store before a later step failed.
	Partial
	// FailedBeforeMutation means nothing was written.
	FailedBeforeMutation
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Partial:
		return "partial"
	case FailedBeforeMutation:
		return "failed"
	}
	return "unknown"
}

// WriteResult reports how far a multi-step write got.
type WriteResult struct {
	Outcome    Outcome
	FailedStep string
	Err        error
}

// Success is the result of a write whose every step went through.
func Success() WriteResult {
	return WriteResult{Outcome: Succeeded}
}

// FailedBefore reports a failure at step with nothing written yet.
func FailedBefore(step string, err error) WriteResult {
	return WriteResult{Outcome: FailedBeforeMutation, FailedStep: step, Err: wrapStep(step, err)}
}

// PartialFailure reports a failure at step after earlier steps already mutated the store.
func PartialFailure(step string, err error) WriteResult {
	return WriteResult{Outcome: Partial, FailedStep: step, Err: wrapStep(step, err)}
}

func wrapStep(step string, err error) error {
	if _, ok := err.(*ValidationError); ok {
		return err
	}
	return Write(step, err)
}

// OK reports whether every step succeeded.
func (r WriteResult) OK() bool {
	return r.Outcome == Succeeded
}

func (r WriteResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Outcome    string `json:"outcome"`
		FailedStep string `json:"failed_step,omitempty"`
		Error      string `json:"error,omitempty"`
	}{Outcome: r.Outcome.String(), FailedStep: r.FailedStep}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}
