package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for pipeline operations. HTTP attributes follow OpenTelemetry
// semantic conventions; pipeline-specific keys use their own prefixes.
const (
	// Job and session attributes
	AttrJobID     = "job.id"
	AttrSessionID = "session.id"
	AttrOwnerID   = "owner.id"
	AttrMode      = "analysis.mode"
	AttrPass      = "analysis.pass"
	AttrSampleFPS = "analysis.sample_fps"

	// Queue attributes
	AttrReceiveCount = "queue.receive_count"

	// Blob storage attributes
	AttrKey = "storage.key"
)

// Span names.
// Format: <component>.<operation>
const (
	SpanUploadInitiate = "upload.initiate"
	SpanUploadComplete = "upload.complete"

	SpanWorkerMessage = "worker.message"

	SpanAnalysisExtract = "analysis.extract"
	SpanAnalysisQuick   = "analysis.quick_pass"
	SpanAnalysisDeep    = "analysis.deep_pass"

	SpanExportPDF = "export.pdf"

	SpanBlobHead     = "blob.head"
	SpanBlobDownload = "blob.download"
	SpanBlobPut      = "blob.put"
)

// JobID returns an attribute for the job identifier
func JobID(id string) attribute.KeyValue {
	return attribute.String(AttrJobID, id)
}

// SessionID returns an attribute for the session identifier
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// OwnerID returns an attribute for the owning coach
func OwnerID(id string) attribute.KeyValue {
	return attribute.String(AttrOwnerID, id)
}

// Mode returns an attribute for the analysis mode
func Mode(mode string) attribute.KeyValue {
	return attribute.String(AttrMode, mode)
}

// Pass returns an attribute for the analysis pass (quick or deep)
func Pass(pass string) attribute.KeyValue {
	return attribute.String(AttrPass, pass)
}

// SampleFPS returns an attribute for the frame sampling rate
func SampleFPS(fps int) attribute.KeyValue {
	return attribute.Int(AttrSampleFPS, fps)
}

// ReceiveCount returns an attribute for the message delivery count
func ReceiveCount(count int) attribute.KeyValue {
	return attribute.Int(AttrReceiveCount, count)
}

// StorageKey returns an attribute for the blob object key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// StartJobSpan starts a span for a job-scoped operation, tagging the job and
// session identifiers.
func StartJobSpan(ctx context.Context, name, jobID, sessionID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		JobID(jobID),
		SessionID(sessionID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartPassSpan starts a span for one analysis pass of a job.
func StartPassSpan(ctx context.Context, jobID, mode, pass string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	name := SpanAnalysisQuick
	if pass == "deep" {
		name = SpanAnalysisDeep
	}
	allAttrs := []attribute.KeyValue{
		JobID(jobID),
		Mode(mode),
		Pass(pass),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartBlobSpan starts a span for a blob store operation.
func StartBlobSpan(ctx context.Context, name, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		StorageKey(key),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}
