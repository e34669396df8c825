package anomaly

import (
	"errors"
	"math"

	"kimchi-signal/internal/domain"

	goiforest "github.com/narumiruna/go-iforest/pkg/iforest"
)

// MinSamples is the shortest feature history a detector is trained on.
const MinSamples = 30

var ErrInsufficientHistory = errors.New("insufficient premium history")

// FeatureNames labels the columns produced by Features.
var FeatureNames = []string{"premium", "change", "ma5_gap", "band_position"}

type Options struct {
	NumTrees   int     `json:"num_trees"`
	SampleSize int     `json:"sample_size"`
	Threshold  float64 `json:"threshold"`
}

func DefaultOptions() Options {
	return Options{
		NumTrees:   200,
		SampleSize: 256,
		Threshold:  0.6,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.NumTrees <= 0 {
		o.NumTrees = def.NumTrees
	}
	if o.SampleSize <= 0 {
		o.SampleSize = def.SampleSize
	}
	if o.Threshold <= 0 || o.Threshold >= 1 {
		o.Threshold = def.Threshold
	}
	return o
}

// Sample is one day's feature vector.
type Sample struct {
	Date     string
	Premium  float64
	Features []float64
}

// Features builds one sample per premium date that has a previous day. Dates
// without a threshold record get a zero gap and a mid-band position.
func Features(premium domain.TimeSeries, thresholds domain.ThresholdSeries) []Sample {
	dates := premium.Dates()
	out := make([]Sample, 0, len(dates))
	for i := 1; i < len(dates); i++ {
		d := dates[i]
		p := premium[d]
		prev := premium[dates[i-1]]
		if !finite(p) || !finite(prev) {
			continue
		}
		gap, position := 0.0, 0.5
		if rec, ok := thresholds[d]; ok {
			gap = p - rec.MovingAverage5
			if width := rec.SellThreshold - rec.BuyThreshold; width > 0 {
				position = (p - rec.BuyThreshold) / width
			}
		}
		out = append(out, Sample{
			Date:     d,
			Premium:  p,
			Features: []float64{p, p - prev, gap, position},
		})
	}
	return out
}

// Detector scores premium days with an isolation forest fitted on history.
type Detector struct {
	opts   Options
	means  []float64
	stds   []float64
	forest *goiforest.IsolationForest
}

func Train(samples []Sample, opts Options) (*Detector, error) {
	if len(samples) < MinSamples {
		return nil, ErrInsufficientHistory
	}
	opts = opts.withDefaults()

	vectors := make([][]float64, len(samples))
	for i, s := range samples {
		vectors[i] = s.Features
	}
	if len(vectors[0]) == 0 {
		return nil, errors.New("empty feature vectors")
	}

	means, stds := fitNormalizer(vectors)
	sampleSize := opts.SampleSize
	if sampleSize > len(vectors) {
		sampleSize = len(vectors)
	}
	forest := goiforest.NewWithOptions(goiforest.Options{
		DetectionType: goiforest.DetectionTypeThreshold,
		Threshold:     opts.Threshold,
		NumTrees:      opts.NumTrees,
		SampleSize:    sampleSize,
	})
	forest.Fit(normalizeBatch(vectors, means, stds))

	return &Detector{opts: opts, means: means, stds: stds, forest: forest}, nil
}

// Score returns the anomaly score in [0, 1]; higher is more unusual.
func (d *Detector) Score(features []float64) float64 {
	if d == nil || d.forest == nil || len(features) != len(d.means) {
		return 0
	}
	scores := d.forest.Score([][]float64{normalize(features, d.means, d.stds)})
	if len(scores) == 0 {
		return 0
	}
	score := scores[0]
	if !finite(score) || score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func (d *Detector) Threshold() float64 { return d.opts.Threshold }

func (d *Detector) IsAnomalous(score float64) bool { return score >= d.opts.Threshold }

func fitNormalizer(samples [][]float64) ([]float64, []float64) {
	featureCount := len(samples[0])
	means := make([]float64, featureCount)
	stds := make([]float64, featureCount)
	for j := 0; j < featureCount; j++ {
		for i := range samples {
			means[j] += samples[i][j]
		}
		means[j] /= float64(len(samples))
		for i := range samples {
			dev := samples[i][j] - means[j]
			stds[j] += dev * dev
		}
		stds[j] = math.Sqrt(stds[j] / float64(len(samples)))
		if stds[j] == 0 {
			stds[j] = 1
		}
	}
	return means, stds
}

func normalizeBatch(samples [][]float64, means, stds []float64) [][]float64 {
	out := make([][]float64, len(samples))
	for i := range samples {
		out[i] = normalize(samples[i], means, stds)
	}
	return out
}

func normalize(in, means, stds []float64) []float64 {
	out := make([]float64, len(in))
	for i := range in {
		out[i] = (in[i] - means[i]) / stds[i]
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
