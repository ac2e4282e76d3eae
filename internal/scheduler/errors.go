package scheduler

import "errors"

// Sentinel error kinds, checked with errors.Is/errors.As over a
// fmt.Errorf("...: %w") wrap, consistent with how the rest of the stack
// layers typed errors over wrapped context.
var (
	ErrInvalidInput    = errors.New("scheduler: invalid input")
	ErrQuotaExceeded   = errors.New("scheduler: tenant job quota exceeded")
	ErrNotFound        = errors.New("scheduler: job not found")
	ErrScheduleInvalid = errors.New("scheduler: schedule invalid")
	ErrRunFailed       = errors.New("scheduler: run failed")
	ErrRunTimeout      = errors.New("scheduler: run timed out")
	ErrStoreIO         = errors.New("scheduler: store io error")
	ErrCorruption      = errors.New("scheduler: store corrupt")
)
