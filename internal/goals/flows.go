package goals

import (
	"fmt"
	"strings"
)

// FlowRegistry defines the phase sequence for each (GoalType, Complexity)
// pair. Every flow that changes code ends with a test or review phase.
var FlowRegistry = map[GoalType]map[Complexity][]Phase{
	TypeFeature: {
		ComplexitySimple:   {PhaseImplement, PhaseTest},
		ComplexityModerate: {PhaseDesign, PhaseImplement, PhaseTest, PhaseDocument},
		ComplexityComplex:  {PhaseResearch, PhaseDesign, PhaseImplement, PhaseTest, PhaseDocument, PhaseReview},
	},
	TypeFix: {
		ComplexitySimple:   {PhaseAnalyze, PhaseImplement, PhaseTest},
		ComplexityModerate: {PhaseAnalyze, PhaseImplement, PhaseTest, PhaseReview},
		ComplexityComplex:  {PhaseAnalyze, PhaseResearch, PhaseDesign, PhaseImplement, PhaseTest, PhaseReview},
	},
	TypeRefactor: {
		ComplexitySimple:   {PhaseImplement, PhaseTest},
		ComplexityModerate: {PhaseAnalyze, PhaseDesign, PhaseImplement, PhaseTest},
		ComplexityComplex:  {PhaseAnalyze, PhaseDesign, PhaseImplement, PhaseTest, PhaseReview},
	},
	TypeOptimization: {
		ComplexitySimple:   {PhaseMeasure, PhaseImplement, PhaseMeasure},
		ComplexityModerate: {PhaseMeasure, PhaseAnalyze, PhaseImplement, PhaseTest, PhaseMeasure},
		ComplexityComplex:  {PhaseMeasure, PhaseAnalyze, PhaseDesign, PhaseImplement, PhaseTest, PhaseMeasure, PhaseReview},
	},
	TypeResearch: {
		ComplexitySimple:   {PhaseResearch, PhaseDocument},
		ComplexityModerate: {PhaseResearch, PhaseAnalyze, PhaseDocument},
		ComplexityComplex:  {PhaseResearch, PhaseAnalyze, PhaseDesign, PhaseDocument, PhaseReview},
	},
	TypeDocumentation: {
		ComplexitySimple:   {PhaseDocument},
		ComplexityModerate: {PhaseResearch, PhaseDocument, PhaseReview},
		ComplexityComplex:  {PhaseResearch, PhaseDesign, PhaseDocument, PhaseReview},
	},
}

// phaseHours is the base estimate per phase for a simple goal.
var phaseHours = map[Phase]float64{
	PhaseResearch:  2,
	PhaseAnalyze:   1,
	PhaseDesign:    2,
	PhaseImplement: 4,
	PhaseMeasure:   1,
	PhaseTest:      2,
	PhaseDocument:  1,
	PhaseReview:    1,
}

var complexityFactor = map[Complexity]float64{
	ComplexitySimple:   1,
	ComplexityModerate: 1.5,
	ComplexityComplex:  2.5,
}

var phaseVerbs = map[Phase]string{
	PhaseResearch:  "Research",
	PhaseAnalyze:   "Analyze",
	PhaseDesign:    "Design",
	PhaseImplement: "Implement",
	PhaseMeasure:   "Measure",
	PhaseTest:      "Test",
	PhaseDocument:  "Document",
	PhaseReview:    "Review",
}

// PhaseFlow returns the ordered phases for the given type and complexity.
func PhaseFlow(t GoalType, c Complexity) ([]Phase, error) {
	if err := ValidateType(t); err != nil {
		return nil, err
	}
	if err := ValidateComplexity(c); err != nil {
		return nil, err
	}

	flow, ok := FlowRegistry[t][c]
	if !ok {
		return nil, fmt.Errorf("no flow defined for %s/%s", t, c)
	}

	// Return a copy to prevent mutation of the registry.
	result := make([]Phase, len(flow))
	copy(result, flow)
	return result, nil
}

// Estimate returns the hour estimate of a phase at a complexity.
func Estimate(p Phase, c Complexity) float64 {
	return phaseHours[p] * complexityFactor[c]
}

// typeKeywords maps words in a goal description to a goal type. Order
// matters: the first type with a match wins.
var typeKeywords = []struct {
	t     GoalType
	words []string
}{
	{TypeFix, []string{"fix", "bug", "crash", "broken", "error", "repair", "resolve"}},
	{TypeOptimization, []string{"optimize", "optimise", "faster", "speed", "performance", "latency", "memory"}},
	{TypeRefactor, []string{"refactor", "restructure", "clean", "simplify", "extract", "rename"}},
	{TypeDocumentation, []string{"document", "docs", "readme", "tutorial", "guide"}},
	{TypeResearch, []string{"research", "investigate", "evaluate", "compare", "explore", "study"}},
}

// Classify infers the goal type from its description. Goals with no
// recognizable keyword are features.
func Classify(description string) GoalType {
	words := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	for _, tk := range typeKeywords {
		for _, w := range words {
			for _, k := range tk.words {
				if strings.HasPrefix(w, k) {
					return tk.t
				}
			}
		}
	}
	return TypeFeature
}

// complexityMarkers push a goal towards complex when present.
var complexityMarkers = []string{"system", "architecture", "migrate", "integration", "distributed", "multiple", "end-to-end", "across"}

// AssessComplexity grades a goal by length, the number of joined clauses
// and scope words. A "complexity" hint in the goal context overrides it.
func AssessComplexity(description string, goalCtx map[string]any) Complexity {
	if hint, ok := goalCtx["complexity"].(string); ok {
		if c := Complexity(strings.ToLower(hint)); validComplexities[c] {
			return c
		}
	}

	lower := strings.ToLower(description)
	score := 0
	words := len(strings.Fields(lower))
	switch {
	case words > 25:
		score += 2
	case words > 10:
		score++
	}
	score += strings.Count(lower, " and ") + strings.Count(lower, ",")
	for _, m := range complexityMarkers {
		if strings.Contains(lower, m) {
			score += 2
		}
	}

	switch {
	case score >= 4:
		return ComplexityComplex
	case score >= 2:
		return ComplexityModerate
	default:
		return ComplexitySimple
	}
}
