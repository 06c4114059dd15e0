package service

import "errors"

// Common service errors
var (
	// ErrValidation wraps rejections of caller-supplied input so handlers
	// can map them to a 400 with errors.Is
	ErrValidation = errors.New("validation failed")
)
