package learning

import "math"

// Dimension is one weighted axis of an agent's score.
type Dimension struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"` // relative importance (1-10)
	Score  int    `json:"score"`  // 0-100
}

// Default weights for agent scoring.
const (
	weightSuccess = 5
	weightQuality = 3
	weightSpeed   = 2
)

// WeightedScore computes the weighted average of the dimension scores (0-100).
func WeightedScore(dimensions []Dimension) int {
	totalWeight := 0
	weightedSum := 0

	for _, d := range dimensions {
		totalWeight += d.Weight
		weightedSum += d.Score * d.Weight
	}

	if totalWeight == 0 {
		return 0
	}

	return weightedSum / totalWeight
}

// agentDimensions scores one agent's aggregated history. fastestMs is the
// lowest average execution time among the competing agents.
func agentDimensions(s AgentStats, fastestMs float64) []Dimension {
	dims := []Dimension{
		{Name: "success_rate", Weight: weightSuccess, Score: percent(s.SuccessRate)},
	}
	if s.AvgQuality != nil {
		dims = append(dims, Dimension{Name: "quality", Weight: weightQuality, Score: percent(*s.AvgQuality)})
	}
	speed := 1.0
	if s.AvgExecutionMs > 0 && fastestMs > 0 {
		speed = fastestMs / s.AvgExecutionMs
	}
	dims = append(dims, Dimension{Name: "speed", Weight: weightSpeed, Score: percent(speed)})
	return dims
}

// sampleFactor discounts confidence for agents with little history.
func sampleFactor(executions, minSamples int) float64 {
	if minSamples <= 0 || executions >= minSamples {
		return 1
	}
	return float64(executions) / float64(minSamples)
}

func percent(f float64) int {
	return int(math.Round(clamp01(f) * 100))
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
