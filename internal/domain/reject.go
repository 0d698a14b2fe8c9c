package domain

// RejectReason explains why an inbound payload was dropped.
// Values are stable and used as metric labels.
type RejectReason string

const (
	RejectMalformed    RejectReason = "malformed"
	RejectMissingField RejectReason = "missing_field"
	RejectOutOfRange   RejectReason = "out_of_range"
	RejectRedundant    RejectReason = "redundant"
)

// AllRejectReasons lists every reason, in a fixed order.
var AllRejectReasons = []RejectReason{
	RejectMalformed,
	RejectMissingField,
	RejectOutOfRange,
	RejectRedundant,
}
