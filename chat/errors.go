package chat

import "errors"

// Sentinel errors for session operations, checked with errors.Is().
var (
	// ErrSessionBusy indicates a turn is already in flight on the session.
	ErrSessionBusy = errors.New("session busy")

	// ErrBackend indicates the model backend failed to produce a response.
	ErrBackend = errors.New("backend failure")

	// ErrTimeout indicates the turn's deadline elapsed before completion.
	ErrTimeout = errors.New("turn timed out")

	// ErrCancelled indicates the caller cancelled the turn.
	ErrCancelled = errors.New("turn cancelled")
)
