package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyMessage = errors.New("empty message")
	ErrBackpressure = errors.New("backpressure")
	ErrNoSession    = errors.New("no active session")
)

// ConnectionError is a recoverable connect/engine failure. The session
// moves to the error status; a retry requires a fresh explicit Connect.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("connection %s: %v", e.Op, e.Err) }
func (e *ConnectionError) Unwrap() error { return e.Err }

// DeviceError reports a missing capture device at publish time. It is
// resolved by falling back to the available media type, not by aborting.
type DeviceError struct {
	Kind string
	Err  error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("device %s: %v", e.Kind, e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// RateLimitError is raised synchronously from Send when the per-window
// message budget is exhausted. Nothing is queued.
type RateLimitError struct {
	Limit  int
	Window time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d messages per %s", e.Limit, e.Window)
}

// SizeExceededError is raised only when chunking is disabled and the
// content does not fit the signal payload ceiling.
type SizeExceededError struct {
	Size  int
	Limit int
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("message size %d exceeds limit %d", e.Size, e.Limit)
}

// ParseError marks a malformed inbound signal payload. Logged and
// dropped; never allowed to crash the receive path.
type ParseError struct {
	Signal string
	Err    error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s signal: %v", e.Signal, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }
