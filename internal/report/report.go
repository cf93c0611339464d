package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/signalnine/extmetrics/internal/result"
)

// skipKeys are status codes rather than measurements.
var skipKeys = map[string]bool{
	"external:error_code":  true,
	"external:return_code": true,
}

type MetricSummary struct {
	Key       string  `json:"key"`
	Count     int     `json:"count"`
	NonFinite int     `json:"non_finite"`
	Mean      float64 `json:"mean"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
}

type CompressorSummary struct {
	Compressor  string          `json:"compressor"`
	Evaluations int             `json:"evaluations"`
	OKRate      float64         `json:"ok_rate"`
	MeanRatio   float64         `json:"mean_ratio"`
	Metrics     []MetricSummary `json:"metrics"`
}

// Generate reads every meta.json under runDir and writes a summary per
// compressor in the requested format.
func Generate(runDir, format string, w io.Writer) error {
	metas, _, err := result.LoadEvalMetas(runDir)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		return fmt.Errorf("no evaluations found under %s", runDir)
	}
	summaries := aggregate(metas)

	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	default:
		return writeTable(summaries, w)
	}
}

// aggregate computes mean, min and max over finite values only; infinities
// and NaN are counted separately.
func aggregate(metas []*result.EvalMeta) []CompressorSummary {
	type accum struct {
		count   int
		ok      int
		ratios  []float64
		values  map[string][]float64
		nonFini map[string]int
	}
	byComp := map[string]*accum{}

	for _, m := range metas {
		a, ok := byComp[m.Compressor]
		if !ok {
			a = &accum{values: map[string][]float64{}, nonFini: map[string]int{}}
			byComp[m.Compressor] = a
		}
		a.count++
		if m.Outcome == result.OutcomeOK {
			a.ok++
		}
		if m.CompressionRatio > 0 {
			a.ratios = append(a.ratios, m.CompressionRatio)
		}
		for key, v := range m.Results {
			if skipKeys[key] {
				continue
			}
			f, ok := result.Number(v)
			if !ok {
				continue
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				a.nonFini[key]++
				continue
			}
			a.values[key] = append(a.values[key], f)
		}
	}

	var summaries []CompressorSummary
	for name, a := range byComp {
		s := CompressorSummary{
			Compressor:  name,
			Evaluations: a.count,
			OKRate:      float64(a.ok) / float64(a.count),
		}
		if len(a.ratios) > 0 {
			s.MeanRatio = stat.Mean(a.ratios, nil)
		}
		keys := map[string]bool{}
		for k := range a.values {
			keys[k] = true
		}
		for k := range a.nonFini {
			keys[k] = true
		}
		for key := range keys {
			ms := MetricSummary{Key: key, NonFinite: a.nonFini[key]}
			if vals := a.values[key]; len(vals) > 0 {
				ms.Count = len(vals)
				ms.Mean = stat.Mean(vals, nil)
				ms.Min = floats.Min(vals)
				ms.Max = floats.Max(vals)
			}
			s.Metrics = append(s.Metrics, ms)
		}
		sort.Slice(s.Metrics, func(i, j int) bool {
			return s.Metrics[i].Key < s.Metrics[j].Key
		})
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Compressor < summaries[j].Compressor
	})
	return summaries
}

func writeTable(summaries []CompressorSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPRESSOR\tEVALS\tOK RATE\tMEAN RATIO\tMETRIC\tMEAN\tMIN\tMAX\tNON-FINITE")
	fmt.Fprintln(tw, strings.Repeat("-", 100))
	for _, s := range summaries {
		if len(s.Metrics) == 0 {
			fmt.Fprintf(tw, "%s\t%d\t%.0f%%\t%.2f\t-\t\t\t\t\n", s.Compressor, s.Evaluations, s.OKRate*100, s.MeanRatio)
			continue
		}
		for i, m := range s.Metrics {
			if i == 0 {
				fmt.Fprintf(tw, "%s\t%d\t%.0f%%\t%.2f\t", s.Compressor, s.Evaluations, s.OKRate*100, s.MeanRatio)
			} else {
				fmt.Fprint(tw, "\t\t\t\t")
			}
			fmt.Fprintf(tw, "%s\t%.6g\t%.6g\t%.6g\t%d\n", m.Key, m.Mean, m.Min, m.Max, m.NonFinite)
		}
	}
	return tw.Flush()
}

func writeMarkdown(summaries []CompressorSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Compressor | Evals | OK Rate | Mean Ratio | Metric | Mean | Min | Max | Non-finite |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|---|---|")
	for _, s := range summaries {
		if len(s.Metrics) == 0 {
			fmt.Fprintf(w, "| %s | %d | %.0f%% | %.2f | - | | | | |\n", s.Compressor, s.Evaluations, s.OKRate*100, s.MeanRatio)
			continue
		}
		for _, m := range s.Metrics {
			fmt.Fprintf(w, "| %s | %d | %.0f%% | %.2f | %s | %.6g | %.6g | %.6g | %d |\n",
				s.Compressor, s.Evaluations, s.OKRate*100, s.MeanRatio, m.Key, m.Mean, m.Min, m.Max, m.NonFinite)
		}
	}
	return nil
}

func writeJSON(summaries []CompressorSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
