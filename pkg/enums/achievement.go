package enums

// CriteriaKind discriminates achievement criteria.
type CriteriaKind string

const (
	CriteriaLevelReached    CriteriaKind = "LEVEL_REACHED"
	CriteriaOrdersCompleted CriteriaKind = "ORDERS_COMPLETED"
	CriteriaXPEarned        CriteriaKind = "XP_EARNED"
)

var knownCriteriaKinds = []CriteriaKind{
	CriteriaLevelReached,
	CriteriaOrdersCompleted,
	CriteriaXPEarned,
}

// IsKnown reports whether the evaluator understands this kind.
func (k CriteriaKind) IsKnown() bool {
	for _, candidate := range knownCriteriaKinds {
		if candidate == k {
			return true
		}
	}
	return false
}
