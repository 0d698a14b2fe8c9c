package relay

import (
	"testing"

	"github.com/kursun12/gardorop-relay/internal/domain"
	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		last    *float64
		want    domain.RejectReason
		value   float64
	}{
		{"integer in range", `{"elixir":3}`, nil, "", 3},
		{"fraction in range", `{"elixir":7.25}`, nil, "", 7.25},
		{"lower bound", `{"elixir":0}`, nil, "", 0},
		{"upper bound", `{"elixir":10}`, nil, "", 10},
		{"extra fields ignored", `{"elixir":4,"player":"x"}`, nil, "", 4},
		{"not json", `elixir=3`, nil, domain.RejectMalformed, 0},
		{"empty payload", ``, nil, domain.RejectMalformed, 0},
		{"json array", `[3]`, nil, domain.RejectMalformed, 0},
		{"json number", `3`, nil, domain.RejectMalformed, 0},
		{"json null", `null`, nil, domain.RejectMalformed, 0},
		{"field missing", `{"mana":3}`, nil, domain.RejectMissingField, 0},
		{"field null", `{"elixir":null}`, nil, domain.RejectMissingField, 0},
		{"string value", `{"elixir":"3"}`, nil, domain.RejectOutOfRange, 0},
		{"bool value", `{"elixir":true}`, nil, domain.RejectOutOfRange, 0},
		{"below range", `{"elixir":-0.5}`, nil, domain.RejectOutOfRange, 0},
		{"above range", `{"elixir":10.01}`, nil, domain.RejectOutOfRange, 0},
		{"overflow", `{"elixir":1e400}`, nil, domain.RejectOutOfRange, 0},
		{"repeat of own last value", `{"elixir":5}`, floatPtr(5), domain.RejectRedundant, 0},
		{"differs from own last value", `{"elixir":6}`, floatPtr(5), "", 6},
		{"out of range wins over redundant", `{"elixir":11}`, floatPtr(11), domain.RejectOutOfRange, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate([]byte(tt.payload), tt.last)
			assert.Equal(t, tt.want, result.Reason)
			assert.Equal(t, tt.want == "", result.Accepted())
			if result.Accepted() {
				assert.Equal(t, tt.value, result.Value)
			}
		})
	}
}

func TestValidate_DoesNotTouchHistory(t *testing.T) {
	last := floatPtr(2)
	Validate([]byte(`{"elixir":9}`), last)
	assert.Equal(t, 2.0, *last)
}
