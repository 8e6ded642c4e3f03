package model

import "errors"

// ErrInvalidInput marks user-supplied values that failed validation.
var ErrInvalidInput = errors.New("invalid input")
