package flow

// Outcome is the result of processing one item or record. Value is always
// usable for rendering, even when Success is false.
type Outcome[D any] struct {
	Value        D
	Success      bool
	ErrorMessage string
}

// Succeeded wraps a successfully processed value.
func Succeeded[D any](value D) Outcome[D] {
	return Outcome[D]{Value: value, Success: true}
}

// Failed wraps a value whose processing failed with err.
func Failed[D any](value D, err error) Outcome[D] {
	return Outcome[D]{Value: value, ErrorMessage: Message(err)}
}

// FailedOnly returns the failed outcomes in their original order.
func FailedOnly[D any](outcomes []Outcome[D]) []Outcome[D] {
	var failed []Outcome[D]
	for _, o := range outcomes {
		if !o.Success {
			failed = append(failed, o)
		}
	}
	return failed
}

// CountFailed returns how many outcomes failed.
func CountFailed[D any](outcomes []Outcome[D]) int {
	n := 0
	for _, o := range outcomes {
		if !o.Success {
			n++
		}
	}
	return n
}
