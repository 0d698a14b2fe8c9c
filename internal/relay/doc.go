// Package relay implements the elixir fan-out hub using the actor pattern.
//
// A single goroutine owns the peer registry, the cached snapshot and every peer's
// redundancy history. Connections, inbound frames, pongs, disconnects and heartbeat
// ticks all arrive as commands on one channel and run to completion in order.
// Per-peer writer goroutines do the socket writes so a slow peer never stalls the hub.
package relay
