package service

// Dimension names one axis of test coverage. Generation walks dimensions
// in the declared order so output stays deterministic per coverage level.
type Dimension string

const (
	DimensionCore        Dimension = "core"
	DimensionValidation  Dimension = "validation"
	DimensionNegative    Dimension = "negative"
	DimensionBoundary    Dimension = "boundary"
	DimensionState       Dimension = "state"
	DimensionSecurity    Dimension = "security"
	DimensionDestructive Dimension = "destructive"
)

// CoverageLevel selects how many dimensions a feature is generated across.
type CoverageLevel string

const (
	CoverageLow           CoverageLevel = "low"
	CoverageMedium        CoverageLevel = "medium"
	CoverageHigh          CoverageLevel = "high"
	CoverageComprehensive CoverageLevel = "comprehensive"
)

// DimensionPlan is one generation unit: a dimension plus the number of
// scenarios the model is asked to produce for it.
type DimensionPlan struct {
	Dimension   Dimension
	TargetCount int
}

var dimensionTargets = map[Dimension]int{
	DimensionCore:        5,
	DimensionValidation:  6,
	DimensionNegative:    6,
	DimensionBoundary:    8,
	DimensionState:       6,
	DimensionSecurity:    6,
	DimensionDestructive: 6,
}

// Coverage levels are cumulative: each level includes every dimension of
// the level below it.
var levelDimensions = map[CoverageLevel][]Dimension{
	CoverageLow:    {DimensionCore},
	CoverageMedium: {DimensionCore, DimensionValidation, DimensionNegative},
	CoverageHigh: {DimensionCore, DimensionValidation, DimensionNegative,
		DimensionBoundary, DimensionState},
	CoverageComprehensive: {DimensionCore, DimensionValidation, DimensionNegative,
		DimensionBoundary, DimensionState, DimensionSecurity, DimensionDestructive},
}

// PlanFor returns the ordered generation plan for a coverage level.
// Unknown levels fall back to medium.
func PlanFor(level CoverageLevel) []DimensionPlan {
	dims, ok := levelDimensions[level]
	if !ok {
		dims = levelDimensions[CoverageMedium]
	}
	plan := make([]DimensionPlan, len(dims))
	for i, d := range dims {
		plan[i] = DimensionPlan{Dimension: d, TargetCount: dimensionTargets[d]}
	}
	return plan
}

// ValidDimension reports whether the model returned a dimension label we
// recognize.
func ValidDimension(d Dimension) bool {
	_, ok := dimensionTargets[d]
	return ok
}
