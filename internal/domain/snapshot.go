package domain

import "time"

// Closed range an elixir reading must fall into.
const (
	MinElixir = 0.0
	MaxElixir = 10.0
)

// UpdateType is the "type" discriminator on every outbound frame.
const UpdateType = "elixir_update"

// Snapshot is the most recently accepted state. It is a value type and is
// replaced wholesale, never mutated in place.
type Snapshot struct {
	Value     float64
	Timestamp time.Time
	Origin    string
}

// Update is the JSON frame sent to peers on broadcast and replay.
type Update struct {
	Type      string  `json:"type"`
	Elixir    float64 `json:"elixir"`
	Timestamp int64   `json:"timestamp"`
	From      string  `json:"from"`
}

// ToUpdate converts the snapshot into its wire form.
func (s Snapshot) ToUpdate() Update {
	return Update{
		Type:      UpdateType,
		Elixir:    s.Value,
		Timestamp: s.Timestamp.UnixMilli(),
		From:      s.Origin,
	}
}

// SnapshotFromUpdate is the inverse of ToUpdate. Timestamps keep millisecond precision.
func SnapshotFromUpdate(u Update) Snapshot {
	return Snapshot{
		Value:     u.Elixir,
		Timestamp: time.UnixMilli(u.Timestamp),
		Origin:    u.From,
	}
}
