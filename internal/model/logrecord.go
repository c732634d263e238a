package model

import "time"

// Action is the kind of inventory change a log record describes.
// The set is closed on the backend but the client carries unknown values
// verbatim so that a new action never breaks a refresh.
type Action string

const (
	ActionTransfer    Action = "TRANSFER"
	ActionOrder       Action = "ORDER"
	ActionReceipt     Action = "RECEIPT"
	ActionRefusal     Action = "REFUSAL"
	ActionMaintenance Action = "MAINTENANCE"
)

// ItemStatus is the physical state of a tool as reported by the backend.
type ItemStatus string

const (
	ItemStatusFree        ItemStatus = "FREE"
	ItemStatusInUse       ItemStatus = "IN_USE"
	ItemStatusInTransit   ItemStatus = "IN_TRANSIT"
	ItemStatusMaintenance ItemStatus = "MAINTENANCE"
)

// BranchID identifies a physical site. The zero value stands for the
// central/system location.
type BranchID string

// AllBranches is the administrator-only sentinel for observing every branch.
const AllBranches BranchID = "all"

// IsCentral reports whether the id denotes the central/system location.
func (b BranchID) IsCentral() bool {
	return b == ""
}

// ItemRef is the tool a log record refers to, as joined at query time.
type ItemRef struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Status         ItemStatus `json:"status"`
	BranchID       BranchID   `json:"branch_id"`
	TargetBranchID BranchID   `json:"target_branch_id"`
}

// LogRecord is one immutable entry of the inventory change log.
type LogRecord struct {
	ID             string    `json:"id"`
	Action         Action    `json:"action"`
	FromBranch     BranchID  `json:"from_branch"`
	ToBranch       BranchID  `json:"to_branch"`
	FromBranchName string    `json:"from_branch_name"`
	ToBranchName   string    `json:"to_branch_name"`
	Item           ItemRef   `json:"item"`
	Notes          string    `json:"notes"`
	OperatorID     string    `json:"operator_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewLogRecord is the payload for appending a record to the change log.
type NewLogRecord struct {
	Action     Action
	FromBranch BranchID
	ToBranch   BranchID
	ItemID     string
	Notes      string
	OperatorID string
}
