package analysis

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"os"
	"sort"
)

// Frame is one sampled pose observation.
type Frame struct {
	Index        int                `json:"index"`
	TimestampSec float64            `json:"timestamp_sec"`
	Confidence   float64            `json:"confidence"`
	Angles       map[string]float64 `json:"angles"`
}

// BallSample is one ball-tracking observation; bowling analysis consumes
// these when present.
type BallSample struct {
	FrameIndex int     `json:"frame_index"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Detected   bool    `json:"detected"`
}

// PoseSequence is the output of pose extraction over one video.
type PoseSequence struct {
	SampleFPS int          `json:"sample_fps"`
	Frames    []Frame      `json:"frames"`
	Ball      []BallSample `json:"ball,omitempty"`
}

// PoseAnalyzer extracts a pose sequence from a video file at the given sample
// rate. Implementations must respect ctx cancellation; extraction may run for
// minutes on long videos.
type PoseAnalyzer func(ctx context.Context, videoPath string, sampleFPS int) (*PoseSequence, error)

// MetricsComputer reduces a pose sequence to biomechanical metrics.
type MetricsComputer func(seq *PoseSequence) (*Metrics, error)

// Metrics carries the per-mode biomechanical measurements the finding
// generators consume. Fields irrelevant to the resolved mode are simply
// ignored by its generator.
type Metrics struct {
	FrameCount      int       `json:"frame_count"`
	AvgConfidence   float64   `json:"avg_confidence"`
	WorstFrames     []int     `json:"worst_frames"`
	WorstTimestamps []float64 `json:"worst_timestamps"`

	// Batting
	HeadDriftDeg     float64 `json:"head_drift_deg"`
	BackliftAngleDeg float64 `json:"backlift_angle_deg"`
	BalanceScore     float64 `json:"balance_score"` // 0..1, higher is steadier
	TriggerDelayMs   float64 `json:"trigger_delay_ms"`

	// Bowling
	BallDetectionRatio  float64 `json:"ball_detection_ratio"`
	ReleasePointStdDeg  float64 `json:"release_point_std_deg"`
	SwingDeviationDeg   float64 `json:"swing_deviation_deg"`
	FrontArmCollapseDeg float64 `json:"front_arm_collapse_deg"`
	ActionAlignmentDeg  float64 `json:"action_alignment_deg"`

	// Wicketkeeping
	GloveRiseDelayMs float64 `json:"glove_rise_delay_ms"`
	StanceWidthRatio float64 `json:"stance_width_ratio"`
	HeadLevelVarDeg  float64 `json:"head_level_var_deg"`
	RecoveryStepMs   float64 `json:"recovery_step_ms"`

	// Fielding
	ApproachSpeedScore float64 `json:"approach_speed_score"` // 0..1
	ThrowAlignmentDeg  float64 `json:"throw_alignment_deg"`
	PickupCleanliness  float64 `json:"pickup_cleanliness"` // 0..1
	ReactionDelayMs    float64 `json:"reaction_delay_ms"`
}

// Flatten returns the metrics as a flat map for embedding in the opaque
// results envelope.
func (m *Metrics) Flatten() map[string]float64 {
	return map[string]float64{
		"frame_count":            float64(m.FrameCount),
		"avg_confidence":         m.AvgConfidence,
		"head_drift_deg":         m.HeadDriftDeg,
		"backlift_angle_deg":     m.BackliftAngleDeg,
		"balance_score":          m.BalanceScore,
		"trigger_delay_ms":       m.TriggerDelayMs,
		"ball_detection_ratio":   m.BallDetectionRatio,
		"release_point_std_deg":  m.ReleasePointStdDeg,
		"swing_deviation_deg":    m.SwingDeviationDeg,
		"front_arm_collapse_deg": m.FrontArmCollapseDeg,
		"action_alignment_deg":   m.ActionAlignmentDeg,
		"glove_rise_delay_ms":    m.GloveRiseDelayMs,
		"stance_width_ratio":     m.StanceWidthRatio,
		"head_level_var_deg":     m.HeadLevelVarDeg,
		"recovery_step_ms":       m.RecoveryStepMs,
		"approach_speed_score":   m.ApproachSpeedScore,
		"throw_alignment_deg":    m.ThrowAlignmentDeg,
		"pickup_cleanliness":     m.PickupCleanliness,
		"reaction_delay_ms":      m.ReactionDelayMs,
	}
}

// clipDurationSec is the synthetic clip length assumed by the default
// analyzer. The production deployment wires the real pose-extraction service
// in its place.
const clipDurationSec = 6

// DefaultPoseAnalyzer is a deterministic development stand-in for the external
// pose-extraction library. The sequence is derived from the video bytes, so
// the same upload always yields the same analysis.
func DefaultPoseAnalyzer(ctx context.Context, videoPath string, sampleFPS int) (*PoseSequence, error) {
	if sampleFPS <= 0 {
		return nil, fmt.Errorf("sample fps must be positive, got %d", sampleFPS)
	}

	f, err := os.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	h := fnv.New64a()
	if _, err := io.CopyN(h, f, 1<<20); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read video: %w", err)
	}
	seed := h.Sum64()

	frameCount := sampleFPS * clipDurationSec
	seq := &PoseSequence{
		SampleFPS: sampleFPS,
		Frames:    make([]Frame, 0, frameCount),
		Ball:      make([]BallSample, 0, frameCount),
	}

	base := 0.70 + float64(seed%21)/100.0 // 0.70..0.90 confidence baseline
	for i := 0; i < frameCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		phase := float64(i) / float64(sampleFPS)
		wobble := math.Sin(phase*2.1+float64(seed%7)) * 0.08
		seq.Frames = append(seq.Frames, Frame{
			Index:        i,
			TimestampSec: phase,
			Confidence:   clamp01(base + wobble),
			Angles: map[string]float64{
				"head_lateral": 3.0 + 2.5*math.Sin(phase*1.7+float64(seed%5)),
				"backlift":     28.0 + 8.0*math.Sin(phase*0.9),
				"hip_shoulder": 12.0 + 4.0*math.Cos(phase*1.3),
				"front_arm":    55.0 + 10.0*math.Sin(phase*1.1+float64(seed%3)),
			},
		})
		seq.Ball = append(seq.Ball, BallSample{
			FrameIndex: i,
			X:          0.5 + 0.3*math.Sin(phase*2.4),
			Y:          0.4 + 0.2*phase/clipDurationSec,
			Detected:   (seed+uint64(i))%10 < 8,
		})
	}

	return seq, nil
}

// DefaultMetricsComputer reduces a pose sequence to metrics with plain
// descriptive statistics. Deterministic companion to DefaultPoseAnalyzer.
func DefaultMetricsComputer(seq *PoseSequence) (*Metrics, error) {
	if seq == nil || len(seq.Frames) == 0 {
		return nil, fmt.Errorf("pose sequence is empty")
	}

	m := &Metrics{FrameCount: len(seq.Frames)}

	var confSum float64
	headVals := make([]float64, 0, len(seq.Frames))
	backliftVals := make([]float64, 0, len(seq.Frames))
	frontArmVals := make([]float64, 0, len(seq.Frames))
	for _, fr := range seq.Frames {
		confSum += fr.Confidence
		headVals = append(headVals, fr.Angles["head_lateral"])
		backliftVals = append(backliftVals, fr.Angles["backlift"])
		frontArmVals = append(frontArmVals, fr.Angles["front_arm"])
	}
	m.AvgConfidence = confSum / float64(len(seq.Frames))

	m.WorstFrames, m.WorstTimestamps = worstFrames(seq.Frames, 3)

	m.HeadDriftDeg = spread(headVals)
	m.BackliftAngleDeg = mean(backliftVals)
	m.BalanceScore = clamp01(1.0 - spread(headVals)/20.0)
	m.TriggerDelayMs = 120 + 40*spread(backliftVals)/10.0

	if len(seq.Ball) > 0 {
		detected := 0
		for _, b := range seq.Ball {
			if b.Detected {
				detected++
			}
		}
		m.BallDetectionRatio = float64(detected) / float64(len(seq.Ball))
	}
	m.ReleasePointStdDeg = stddev(frontArmVals) / 4.0
	m.SwingDeviationDeg = spread(headVals) / 2.0
	m.FrontArmCollapseDeg = 90 - mean(frontArmVals)
	m.ActionAlignmentDeg = stddev(headVals)

	m.GloveRiseDelayMs = 90 + 30*stddev(frontArmVals)/5.0
	m.StanceWidthRatio = 1.05 + spread(backliftVals)/100.0
	m.HeadLevelVarDeg = stddev(headVals)
	m.RecoveryStepMs = 250 + 50*stddev(backliftVals)/8.0

	m.ApproachSpeedScore = clamp01(0.6 + m.AvgConfidence/4.0)
	m.ThrowAlignmentDeg = stddev(frontArmVals) / 2.0
	m.PickupCleanliness = clamp01(m.AvgConfidence)
	m.ReactionDelayMs = 180 + 60*(1.0-m.AvgConfidence)

	return m, nil
}

// worstFrames returns the n lowest-confidence frame indices with their
// timestamps, in ascending confidence order.
func worstFrames(frames []Frame, n int) ([]int, []float64) {
	sorted := make([]Frame, len(frames))
	copy(sorted, frames)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Confidence < sorted[j].Confidence })

	if n > len(sorted) {
		n = len(sorted)
	}
	idx := make([]int, 0, n)
	ts := make([]float64, 0, n)
	for _, fr := range sorted[:n] {
		idx = append(idx, fr.Index)
		ts = append(ts, fr.TimestampSec)
	}
	return idx, ts
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func stddev(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	mu := mean(vals)
	var sq float64
	for _, v := range vals {
		d := v - mu
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)-1))
}

// spread is max-min, a cheap proxy for range of motion drift.
func spread(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
