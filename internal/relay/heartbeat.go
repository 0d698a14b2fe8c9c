package relay

// probe advances the liveness flag of p for one heartbeat tick.
// It returns false when p never answered the previous probe and must be evicted;
// otherwise p is marked as awaiting a pong and the caller sends the next ping.
func probe(p *peer) bool {
	if !p.alive {
		return false
	}
	p.alive = false
	return true
}

// markResponsive records a pong from p.
func markResponsive(p *peer) {
	p.alive = true
}
