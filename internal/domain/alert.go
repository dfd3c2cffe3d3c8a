package domain

import "time"

// AlertPriority orders alerts for display and delivery.
type AlertPriority string

const (
	PriorityLow    AlertPriority = "low"
	PriorityMedium AlertPriority = "medium"
	PriorityHigh   AlertPriority = "high"
	PriorityUrgent AlertPriority = "urgent"
)

// AlertType distinguishes alert origins. Only opportunity alerts exist
// today; system alerts are reserved for operational notices.
type AlertType string

const (
	AlertOpportunity AlertType = "opportunity"
	AlertSystem      AlertType = "system"
)

// Alert is one per-user notification row.
type Alert struct {
	ID            string
	UserID        string
	OpportunityID string
	Type          AlertType
	Priority      AlertPriority
	Message       string
	Meta          AlertMeta
	IsRead        bool
	CreatedAt     time.Time
}

// AlertMeta carries the opportunity summary embedded in the alert so the
// dashboard can render it without a join.
type AlertMeta struct {
	TokenSymbol  Symbol   `json:"tokenSymbol"`
	ChainFrom    Chain    `json:"chainFrom"`
	ChainTo      Chain    `json:"chainTo"`
	NetProfitUSD float64  `json:"netProfitUsd"`
	ROIPercent   *float64 `json:"roiPercent,omitempty"`
	Score        float64  `json:"score"`
}
