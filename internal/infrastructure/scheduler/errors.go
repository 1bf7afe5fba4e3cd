package scheduler

import "errors"

var (
	ErrInvalidConfig  = errors.New("scheduler: invalid sync trigger configuration")
	ErrAlreadyRunning = errors.New("scheduler: sync trigger already started")
)
