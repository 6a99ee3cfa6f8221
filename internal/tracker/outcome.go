package tracker

import (
	"encoding/json"
	"fmt"

	"github.com/studiowebux/trackload/internal/types"
)

// Failure describes why a call did not produce a usable value
type Failure struct {
	Status    int
	ErrorCode int
	Body      string
	Err       string
}

func (f *Failure) Error() string {
	if f.Err != "" {
		return fmt.Sprintf("status %d (code %d): %s", f.Status, f.ErrorCode, f.Err)
	}
	return fmt.Sprintf("status %d (code %d)", f.Status, f.ErrorCode)
}

// Outcome is the typed result of one tracker call: either a decoded value or
// a Failure. Result keeps the raw call for checks and error reports.
type Outcome[T any] struct {
	Value   T
	Failure *Failure
	Result  *types.RequestResult
}

// Get returns the decoded value and whether the call succeeded
func (o Outcome[T]) Get() (T, bool) {
	return o.Value, o.Failure == nil
}

// OK reports whether the call succeeded
func (o Outcome[T]) OK() bool {
	return o.Failure == nil
}

// decode turns a raw result into an Outcome. A call succeeds when it
// returned 2xx, the body decodes into T, and valid (if given) accepts it.
func decode[T any](res *types.RequestResult, valid func(T) bool) Outcome[T] {
	out := Outcome[T]{Result: res}
	if !res.OK() {
		out.Failure = failureOf(res, res.Error)
		return out
	}

	if _, ack := any(out.Value).(Ack); !ack && res.Body != "" {
		if err := json.Unmarshal([]byte(res.Body), &out.Value); err != nil {
			out.Failure = failureOf(res, fmt.Sprintf("decoding response: %v", err))
			return out
		}
	}
	if valid != nil && !valid(out.Value) {
		out.Failure = failureOf(res, "required field missing")
	}
	return out
}

func failureOf(res *types.RequestResult, msg string) *Failure {
	return &Failure{
		Status:    res.Status,
		ErrorCode: res.ErrorCode,
		Body:      res.Body,
		Err:       msg,
	}
}
