package model

// Category represents a spending category.
type Category struct {
	ID            int64
	Name          string
	MonthlyBudget *float64
	Icon          *string
	Color         *string
}

// MatchType is the keyword-matching mode of a classification rule.
type MatchType string

const (
	// MatchExact requires full-string equality with the description.
	MatchExact MatchType = "exact"
	// MatchStartsWith requires the description to start with the keyword.
	MatchStartsWith MatchType = "starts_with"
	// MatchContains requires the keyword as a substring of the description.
	MatchContains MatchType = "contains"
)

// Priority returns the total order used to sort rules before matching.
// Lower values match first; unknown match types sort last.
func (m MatchType) Priority() int {
	switch m {
	case MatchExact:
		return 0
	case MatchStartsWith:
		return 1
	case MatchContains:
		return 2
	default:
		return 99
	}
}

// ClassificationRule maps a description keyword to a category.
type ClassificationRule struct {
	ID         int64
	CategoryID int64
	Keyword    string
	MatchType  MatchType
}
