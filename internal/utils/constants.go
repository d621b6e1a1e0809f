package utils

import "time"

// Application Constants
const (
	AppName    = "SafeLink"
	AppVersion = "1.0.0"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Cursor page size bounds for alert listing
	DefaultListLimit = 50

	// Escalation
	DefaultStage1Delay = 60 * time.Second
	DefaultStage2Delay = 300 * time.Second

	// Per-recipient send budget; a hung provider call must not stall
	// sibling sends past this.
	DefaultSendTimeout   = 10 * time.Second
	DefaultFanoutWorkers = 8

	PendingAlertCacheTTL  = 5 * time.Minute
	SchedulerPollInterval = time.Second
	SchedulerClaimBatch   = 32
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInvalidInput     = "invalid input"
	ErrInternalServer   = "internal server error"
	ErrNotFound         = "not found"
	ErrConflict         = "conflict"
	ErrValidationFailed = "validation failed"
)

// Cache Keys
const (
	CacheAlertPrefix = "alert:"
)

// Scheduler task names
const (
	TaskExecuteStage1 = "escalation.stage1"
	TaskExecuteStage2 = "escalation.stage2"
)
