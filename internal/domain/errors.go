package domain

import "errors"

var (
	ErrHubStopped     = errors.New("hub stopped")
	ErrCommandTimeout = errors.New("hub command timed out")
)
