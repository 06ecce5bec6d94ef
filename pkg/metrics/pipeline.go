// Package metrics exposes Prometheus instrumentation for the analysis
// pipeline. All record methods are nil-receiver safe so instrumented code
// never branches on whether metrics are enabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label constants for pipeline metrics.
const (
	LabelMode   = "mode"
	LabelPass   = "pass"
	LabelStatus = "status"
	LabelReason = "reason"
)

// Status constants.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Pipeline tracks the video-analysis pipeline end to end: uploads, dispatch,
// worker passes, and exports.
type Pipeline struct {
	uploadsInitiated prometheus.Counter
	uploadsCompleted *prometheus.CounterVec
	jobsEnqueued     *prometheus.CounterVec

	claimsTotal      *prometheus.CounterVec
	activeJobs       prometheus.Gauge
	passesTotal      *prometheus.CounterVec
	passDuration     *prometheus.HistogramVec
	jobsFailed       *prometheus.CounterVec
	redeliveries     prometheus.Counter
	resultsOffloaded prometheus.Counter
	rescanRequeues   prometheus.Counter

	exportsTotal *prometheus.CounterVec
}

// NewPipeline creates and registers the pipeline metrics. A nil registry
// returns a nil Pipeline, which records nothing.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	if reg == nil {
		return nil
	}

	return &Pipeline{
		uploadsInitiated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "pitchsight",
			Subsystem: "upload",
			Name:      "initiated_total",
			Help:      "Total number of presigned upload URLs issued",
		}),
		uploadsCompleted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitchsight",
			Subsystem: "upload",
			Name:      "completed_total",
			Help:      "Total number of upload completions by outcome",
		}, []string{LabelStatus}),
		jobsEnqueued: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitchsight",
			Subsystem: "queue",
			Name:      "jobs_enqueued_total",
			Help:      "Total number of jobs dispatched to the queue by reason",
		}, []string{LabelReason}),
		claimsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitchsight",
			Subsystem: "worker",
			Name:      "claims_total",
			Help:      "Total number of job claim attempts by outcome",
		}, []string{LabelStatus}),
		activeJobs: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "pitchsight",
			Subsystem: "worker",
			Name:      "active_jobs",
			Help:      "Number of jobs currently being processed",
		}),
		passesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitchsight",
			Subsystem: "analysis",
			Name:      "passes_total",
			Help:      "Total number of completed analysis passes by mode, pass and outcome",
		}, []string{LabelMode, LabelPass, LabelStatus}),
		passDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pitchsight",
			Subsystem: "analysis",
			Name:      "pass_duration_seconds",
			Help:      "Duration of analysis passes in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{LabelMode, LabelPass}),
		jobsFailed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitchsight",
			Subsystem: "worker",
			Name:      "jobs_failed_total",
			Help:      "Total number of job failures by reason",
		}, []string{LabelReason}),
		redeliveries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "pitchsight",
			Subsystem: "queue",
			Name:      "redeliveries_total",
			Help:      "Total number of queue messages seen more than once",
		}),
		resultsOffloaded: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "pitchsight",
			Subsystem: "analysis",
			Name:      "results_offloaded_total",
			Help:      "Total number of result envelopes offloaded to the blob store",
		}),
		rescanRequeues: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "pitchsight",
			Subsystem: "queue",
			Name:      "rescan_requeues_total",
			Help:      "Total number of stale queued jobs re-dispatched by the rescan loop",
		}),
		exportsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitchsight",
			Subsystem: "export",
			Name:      "pdf_total",
			Help:      "Total number of PDF export attempts by outcome",
		}, []string{LabelStatus}),
	}
}

func statusLabel(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// RecordUploadInitiated counts an issued presigned URL.
func (p *Pipeline) RecordUploadInitiated() {
	if p == nil {
		return
	}
	p.uploadsInitiated.Inc()
}

// RecordUploadCompleted counts a CompleteUpload call by outcome.
func (p *Pipeline) RecordUploadCompleted(err error) {
	if p == nil {
		return
	}
	p.uploadsCompleted.WithLabelValues(statusLabel(err)).Inc()
}

// RecordEnqueued counts a dispatched job. Reason is "upload" for the normal
// path and "rescan" for the safety-net requeue.
func (p *Pipeline) RecordEnqueued(reason string) {
	if p == nil {
		return
	}
	p.jobsEnqueued.WithLabelValues(reason).Inc()
	if reason == "rescan" {
		p.rescanRequeues.Inc()
	}
}

// RecordClaim counts a claim attempt.
func (p *Pipeline) RecordClaim(err error) {
	if p == nil {
		return
	}
	p.claimsTotal.WithLabelValues(statusLabel(err)).Inc()
}

// JobStarted and JobFinished bracket active-job tracking.
func (p *Pipeline) JobStarted() {
	if p == nil {
		return
	}
	p.activeJobs.Inc()
}

func (p *Pipeline) JobFinished() {
	if p == nil {
		return
	}
	p.activeJobs.Dec()
}

// RecordPass records one analysis pass with its duration and outcome.
func (p *Pipeline) RecordPass(mode, pass string, duration time.Duration, err error) {
	if p == nil {
		return
	}
	p.passesTotal.WithLabelValues(mode, pass, statusLabel(err)).Inc()
	p.passDuration.WithLabelValues(mode, pass).Observe(duration.Seconds())
}

// RecordJobFailed counts a terminal job failure by reason.
func (p *Pipeline) RecordJobFailed(reason string) {
	if p == nil {
		return
	}
	p.jobsFailed.WithLabelValues(reason).Inc()
}

// RecordRedelivery counts a message delivered more than once.
func (p *Pipeline) RecordRedelivery() {
	if p == nil {
		return
	}
	p.redeliveries.Inc()
}

// RecordResultsOffloaded counts an envelope pushed to the blob store.
func (p *Pipeline) RecordResultsOffloaded() {
	if p == nil {
		return
	}
	p.resultsOffloaded.Inc()
}

// RecordExport counts a PDF export attempt.
func (p *Pipeline) RecordExport(err error) {
	if p == nil {
		return
	}
	p.exportsTotal.WithLabelValues(statusLabel(err)).Inc()
}
