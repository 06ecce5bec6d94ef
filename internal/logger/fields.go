package logger

// Standard field keys for structured logging. Use these consistently across
// all log statements so job lifecycles can be queried end to end.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Job lifecycle
	KeyJobID      = "job_id"
	KeySessionID  = "session_id"
	KeyOwnerID    = "owner_id"
	KeyMode       = "mode"        // resolved analysis mode
	KeyPass       = "pass"        // quick or deep
	KeyStage      = "stage"       // human stage label
	KeyStatus     = "status"      // current job status
	KeyPrevStatus = "prev_status" // status before a transition
	KeyProgress   = "progress_pct"

	// Storage and queue
	KeyS3Key     = "s3_key"
	KeyBucket    = "bucket"
	KeyMessageID = "message_id"
	KeyReceipts  = "receive_count"

	// Artifacts
	KeyFindingsLen = "findings_len"
	KeyReportLen   = "report_len"

	// Generic
	KeyError      = "error"
	KeyDurationMs = "duration_ms"
)
