package logger

// Standard field names for structured logging. Use these instead of raw
// strings so log queries work across packages.
const (
	FieldComponent = "component"
	FieldOperation = "operation"

	// Domain identifiers
	FieldSession = "session"
	FieldVoteID  = "vote_id"
	FieldCaseID  = "case_id"
	FieldParty   = "party"
	FieldRunID   = "run_id"

	// Transport
	FieldURL        = "url"
	FieldStatus     = "status"
	FieldAttempt    = "attempt"
	FieldDurationMS = "duration_ms"

	// Counts
	FieldCount   = "count"
	FieldSkipped = "skipped"
	FieldTotal   = "total"

	FieldPath  = "path"
	FieldError = "error"
)
