package queue

import "errors"

var (
	ErrPoolRequired     = errors.New("queue: pool is required")
	ErrRegistryRequired = errors.New("queue: registry is required")
	ErrInvalidPayload   = errors.New("queue: invalid payload")
	ErrAlreadyStarted   = errors.New("queue: already started")
	ErrNotStarted       = errors.New("queue: not started")
)
