// Package calibration keeps the bucketed record of predicted confidence
// against settled outcomes that feeds back into the external win model.
package calibration

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Bucket labels, lowest to highest confidence.
const (
	BucketSub60 = "<0.60"
	Bucket60    = "0.60-0.65"
	Bucket65    = "0.65-0.70"
	Bucket70    = "0.70-0.75"
	Bucket75    = "0.75-0.80"
	Bucket80    = ">=0.80"
)

var bucketOrder = []string{BucketSub60, Bucket60, Bucket65, Bucket70, Bucket75, Bucket80}

// Bucket discretizes a confidence score into its reporting bucket.
func Bucket(confidence float64) string {
	switch {
	case confidence < 0.60:
		return BucketSub60
	case confidence < 0.65:
		return Bucket60
	case confidence < 0.70:
		return Bucket65
	case confidence < 0.75:
		return Bucket70
	case confidence < 0.80:
		return Bucket75
	default:
		return Bucket80
	}
}

// Record is one settled prediction.
type Record struct {
	MatchID             string    `json:"match_id"`
	PredictedConfidence float64   `json:"predicted_confidence"`
	PredictedOutcome    string    `json:"predicted_outcome"`
	ActualOutcome       string    `json:"actual_outcome"`
	Correct             bool      `json:"correct"`
	CalibrationError    float64   `json:"calibration_error"`
	ConfidenceBucket    string    `json:"confidence_bucket"`
	RecordedAt          time.Time `json:"recorded_at"`
}

// Store persists calibration records; implementations live in pkg/store.
type Store interface {
	SaveCalibration(ctx context.Context, rec *Record) error
}

// Recorder accumulates records in arrival order. Writes go through the
// store before the in-memory append so a crash cannot lose an
// acknowledged record.
type Recorder struct {
	mu      sync.Mutex
	records []Record
	store   Store
	log     zerolog.Logger
}

// NewRecorder creates a recorder. store may be nil for purely in-memory
// operation.
func NewRecorder(store Store, log zerolog.Logger) *Recorder {
	return &Recorder{store: store, log: log}
}

// Record appends one settled prediction and returns the stored record.
func (r *Recorder) Record(ctx context.Context, matchID string, confidence float64, predicted, actual string) (*Record, error) {
	correct := predicted != "" && predicted == actual
	target := 0.0
	if correct {
		target = 1.0
	}
	rec := Record{
		MatchID:             matchID,
		PredictedConfidence: confidence,
		PredictedOutcome:    predicted,
		ActualOutcome:       actual,
		Correct:             correct,
		CalibrationError:    math.Abs(confidence - target),
		ConfidenceBucket:    Bucket(confidence),
		RecordedAt:          time.Now().UTC(),
	}

	if r.store != nil {
		if err := r.store.SaveCalibration(ctx, &rec); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	r.log.Debug().
		Str("match_id", matchID).
		Str("bucket", rec.ConfidenceBucket).
		Bool("correct", correct).
		Float64("error", rec.CalibrationError).
		Msg("calibration record added")
	return &rec, nil
}

// Data returns the most recent records, newest last. limit <= 0 returns
// everything.
func (r *Recorder) Data(limit int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, n)
	copy(out, r.records[len(r.records)-n:])
	return out
}

// BucketSummary aggregates one confidence bucket.
type BucketSummary struct {
	Bucket         string  `json:"bucket"`
	Count          int     `json:"count"`
	Accuracy       float64 `json:"accuracy"`
	MeanConfidence float64 `json:"mean_confidence"`
	MeanError      float64 `json:"mean_error"`
}

// Summary returns per-bucket observed accuracy against mean predicted
// confidence, lowest bucket first. Empty buckets are omitted.
func (r *Recorder) Summary() []BucketSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	agg := make(map[string]*BucketSummary)
	for _, rec := range r.records {
		s := agg[rec.ConfidenceBucket]
		if s == nil {
			s = &BucketSummary{Bucket: rec.ConfidenceBucket}
			agg[rec.ConfidenceBucket] = s
		}
		s.Count++
		if rec.Correct {
			s.Accuracy++
		}
		s.MeanConfidence += rec.PredictedConfidence
		s.MeanError += rec.CalibrationError
	}

	out := make([]BucketSummary, 0, len(agg))
	for _, s := range agg {
		n := float64(s.Count)
		s.Accuracy /= n
		s.MeanConfidence /= n
		s.MeanError /= n
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return bucketRank(out[i].Bucket) < bucketRank(out[j].Bucket)
	})
	return out
}

func bucketRank(b string) int {
	for i, name := range bucketOrder {
		if name == b {
			return i
		}
	}
	return len(bucketOrder)
}
