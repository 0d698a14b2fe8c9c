package httpserver

import (
	"sync"
)

type capReason string

const (
	capReasonGlobal capReason = "global_limit"
	capReasonPerIP  capReason = "per_ip_limit"
)

// connectionCaps bounds how many peers may be connected at once, in total
// and per client IP. A slot is held for the lifetime of a connection.
type connectionCaps struct {
	mu       sync.Mutex
	total    int
	maxTotal int
	perIP    map[string]int
	maxPerIP int
}

func newConnectionCaps(maxTotal, maxPerIP int) *connectionCaps {
	return &connectionCaps{
		maxTotal: maxTotal,
		perIP:    make(map[string]int),
		maxPerIP: maxPerIP,
	}
}

// acquire reserves a slot for ip. On failure it reports which cap was hit
// and nothing is reserved.
func (c *connectionCaps) acquire(ip string) (bool, capReason) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.total >= c.maxTotal {
		return false, capReasonGlobal
	}
	if c.perIP[ip] >= c.maxPerIP {
		return false, capReasonPerIP
	}
	c.total++
	c.perIP[ip]++
	return true, ""
}

func (c *connectionCaps) release(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count, ok := c.perIP[ip]
	if !ok {
		return
	}
	if count <= 1 {
		delete(c.perIP, ip)
	} else {
		c.perIP[ip] = count - 1
	}
	c.total--
}

func (c *connectionCaps) counts(ip string) (total, forIP int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total, c.perIP[ip]
}
