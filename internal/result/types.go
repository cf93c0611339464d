package result

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/signalnine/extmetrics/internal/options"
)

// EvalMeta records one compress/decompress/evaluate cycle.
type EvalMeta struct {
	ID                string         `json:"id"`
	Input             string         `json:"input"`
	Path              string         `json:"path"`
	DType             string         `json:"dtype"`
	Dims              []uint64       `json:"dims"`
	Compressor        string         `json:"compressor"`
	Metrics           []string       `json:"metrics"`
	StartedAt         time.Time      `json:"started_at"`
	DurationMS        int64          `json:"duration_ms"`
	UncompressedBytes int            `json:"uncompressed_bytes"`
	CompressedBytes   int            `json:"compressed_bytes"`
	CompressionRatio  float64        `json:"compression_ratio"`
	Outcome           string         `json:"outcome"`
	Error             string         `json:"error,omitempty"`
	Results           map[string]any `json:"results"`
}

// Outcome values.
const (
	OutcomeOK          = "ok"
	OutcomeMetricError = "metric_error"
	OutcomeFailed      = "failed"
)

func NewEvalMeta(input string) *EvalMeta {
	return &EvalMeta{
		ID:        uuid.NewString(),
		Input:     input,
		StartedAt: time.Now().UTC(),
		Results:   map[string]any{},
	}
}

// ResultsFromOptions flattens set options into JSON-safe values. JSON has no
// infinities or NaN, so those become the strings "+Inf", "-Inf" and "NaN".
func ResultsFromOptions(o *options.Options) map[string]any {
	out := o.Map()
	for k, v := range out {
		f, ok := v.(float64)
		if !ok {
			continue
		}
		switch {
		case math.IsNaN(f):
			out[k] = "NaN"
		case math.IsInf(f, 1):
			out[k] = "+Inf"
		case math.IsInf(f, -1):
			out[k] = "-Inf"
		}
	}
	return out
}

// Number returns v as a float64 if it is a JSON number or one of the
// non-finite markers written by ResultsFromOptions.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		switch n {
		case "NaN":
			return math.NaN(), true
		case "+Inf":
			return math.Inf(1), true
		case "-Inf":
			return math.Inf(-1), true
		}
	}
	return 0, false
}
