package relay

import (
	"encoding/json"

	"github.com/kursun12/gardorop-relay/internal/domain"
)

const elixirField = "elixir"

// Result is the outcome of validating one inbound payload.
// Reason is empty when the update was accepted.
type Result struct {
	Value  float64
	Reason domain.RejectReason
}

// Accepted reports whether the payload passed validation.
func (r Result) Accepted() bool {
	return r.Reason == ""
}

func rejected(reason domain.RejectReason) Result {
	return Result{Reason: reason}
}

// Validate checks raw against the inbound schema. last is the value most
// recently accepted from the same sender, or nil if there is none; a payload
// repeating it is redundant. Validate does not modify anything.
func Validate(raw []byte, last *float64) Result {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return rejected(domain.RejectMalformed)
	}

	rawValue, ok := fields[elixirField]
	if !ok || string(rawValue) == "null" {
		return rejected(domain.RejectMissingField)
	}

	// Strings, booleans, objects and numbers that overflow float64 all fail here.
	var value float64
	if err := json.Unmarshal(rawValue, &value); err != nil {
		return rejected(domain.RejectOutOfRange)
	}
	if value < domain.MinElixir || value > domain.MaxElixir {
		return rejected(domain.RejectOutOfRange)
	}

	if last != nil && *last == value {
		return rejected(domain.RejectRedundant)
	}

	return Result{Value: value}
}
