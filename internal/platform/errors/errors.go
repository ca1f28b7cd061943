package apperrors

import "errors"

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrQuotaExceeded  = errors.New("storage quota exceeded")
	ErrNotDurable     = errors.New("progress is not durable")
	ErrCycleCompleted = errors.New("training cycle already completed")
)
