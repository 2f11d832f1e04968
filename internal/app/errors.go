package app

import "errors"

var (
	ErrNotReachable          = errors.New("callee unreachable")
	ErrInvalidSignalingState = errors.New("no matching call session")
	ErrBusy                  = errors.New("participant already in a call")
	ErrInvalidTarget         = errors.New("invalid call target")
	ErrStaleConnection       = errors.New("connection was replaced")
)
