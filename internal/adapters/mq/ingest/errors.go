package ingest

import "errors"

// Sentinel kinds for ingest errors.
var (
	ErrMalformed = errors.New("malformed message")
	ErrRunning   = errors.New("consumer already running")
)
