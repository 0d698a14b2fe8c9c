package relay

import "github.com/kursun12/gardorop-relay/internal/domain"

// stateCache holds the latest accepted snapshot. Last write wins.
type stateCache struct {
	snapshot domain.Snapshot
	ok       bool
}

func (c *stateCache) get() (domain.Snapshot, bool) {
	return c.snapshot, c.ok
}

func (c *stateCache) set(s domain.Snapshot) {
	c.snapshot = s
	c.ok = true
}
