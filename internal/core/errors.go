package core

import "errors"

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrMeetingInvalid  = errors.New("meeting is not usable")
	ErrMeetingNotFound = errors.New("meeting not found")
	ErrMalformed       = errors.New("malformed message")
	ErrBackpressure    = errors.New("backpressure")
	ErrClosed          = errors.New("connection closed")
)

// Close codes sent to clients. 4xxx are application codes.
const (
	CloseNormal         = 1000
	CloseInternal       = 1011
	CloseUnauthorized   = 4401
	CloseMeetingInvalid = 4403
	CloseReplaced       = 4409
	CloseTooSlow        = 4429
)
