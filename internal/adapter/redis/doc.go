// Package redis shares accepted snapshots between relay instances over
// Redis pub/sub. Each instance publishes what its own peers send and applies
// what the others publish; nothing is stored in Redis.
package redis
