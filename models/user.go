package models

// UserIdentity is a consumer account. ID never changes; Phone may.
type UserIdentity struct {
	ID                 string   `json:"id"`
	Phone              string   `json:"phone,omitempty"`
	DisplayName        string   `json:"displayName,omitempty"`
	Email              string   `json:"email,omitempty"`
	VisitedBusinessIDs []string `json:"visitedBusinessIds,omitempty"`
	MonthlySavingsGoal float64  `json:"monthlySavingsGoal,omitempty"`
}
