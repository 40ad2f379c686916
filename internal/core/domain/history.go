package domain

// DefaultReason is recorded when a mutation is made without a reason.
const DefaultReason = "unknown"

type HistoryEntry struct {
	ID           int64  `json:"id"`
	Owner        string `json:"owner"`
	ItemCode     string `json:"item_code"`
	Change       int64  `json:"change"`
	RunningTotal int64  `json:"running_total"`
	Reason       string `json:"reason"`
	OccurredAt   int64  `json:"occurred_at_seconds"`
}

// HistoryFilter narrows a history listing. Empty fields match everything.
type HistoryFilter struct {
	Owner    string
	ItemCode string
	Limit    int
}
