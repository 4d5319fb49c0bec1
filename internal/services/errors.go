// Package services implements the business logic of the bot: the token
// lifecycle and the mention-processing pipeline. This file centralizes
// service-level error values so they can be consistently returned by service
// methods and checked by callers.
package services

import "errors"

var (
	// ErrNotLinked indicates that no usable Spotify credential exists for the
	// (workspace, user) pair. The user must run the connect flow; callers must
	// not retry.
	ErrNotLinked = errors.New("user not linked to spotify")

	// ErrQueueFull is returned when a mention cannot be enqueued for
	// background processing because the worker queue is saturated.
	ErrQueueFull = errors.New("pipeline queue full")
)
