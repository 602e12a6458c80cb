package scheduler

import "errors"

var (
	// ErrScanInProgress is returned when a scan is requested while another is running
	ErrScanInProgress = errors.New("overdue scan already in progress")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
