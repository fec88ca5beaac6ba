package domain

import "errors"

var (
	ErrInvalidSettings = errors.New("invalid settings")
	ErrSessionNotFound = errors.New("session not found")
	ErrMalformedLine   = errors.New("malformed log line")
)
