package scheduler

import "errors"

// ErrInvalidConfig is returned when the trigger configuration is unusable
var ErrInvalidConfig = errors.New("invalid scheduler configuration")
