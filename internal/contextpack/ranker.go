package contextpack

import (
	"math"
	"strings"
)

// Weights are the ranking coefficients.
type Weights struct {
	Recency   float64 `json:"recency" yaml:"recency"`
	Frequency float64 `json:"frequency" yaml:"frequency"`
	Signal    float64 `json:"signal" yaml:"signal"`
}

// DefaultWeights favour recency over frequency.
var DefaultWeights = Weights{Recency: 0.7, Frequency: 0.3, Signal: 0.2}

// DefaultSignalKeywords mark unresolved hooks, conflicts and continuity
// breaks.
var DefaultSignalKeywords = []string{
	"?", "？", "悬念", "钩子", "反转", "冲突", "矛盾",
	"critical", "break", "违规", "断裂",
}

// frequencyCap is the occurrence count that saturates the frequency term.
const frequencyCap = 10

// Ranker scores fragments.
type Ranker struct {
	weights  Weights
	decay    DecayFunc
	keywords []string
}

// NewRanker returns a ranker. A nil decay is exponential with the default
// half-life; nil keywords are DefaultSignalKeywords.
func NewRanker(w Weights, decay DecayFunc, keywords []string) *Ranker {
	if decay == nil {
		decay = Exponential(DefaultHalfLife)
	}
	if keywords == nil {
		keywords = DefaultSignalKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Ranker{weights: w, decay: decay, keywords: lowered}
}

// Score computes w_r*decay(distance) + w_f*normFreq + w_h*signal, where
// normFreq = min(1, ln(1+n)/ln(11)).
func (r *Ranker) Score(f Fragment) float64 {
	freq := math.Min(1, math.Log1p(float64(max(f.Frequency, 0)))/math.Log(frequencyCap+1))
	return r.weights.Recency*r.decay(f.Distance) +
		r.weights.Frequency*freq +
		r.weights.Signal*r.signal(f)
}

func (r *Ranker) signal(f Fragment) float64 {
	if f.Severity.Elevated() {
		return 1
	}
	text := strings.ToLower(f.Text)
	for _, k := range r.keywords {
		if strings.Contains(text, k) {
			return 1
		}
	}
	return 0
}
