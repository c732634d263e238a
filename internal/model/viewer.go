package model

import "time"

// Role is the viewer's organisational role.
type Role string

const (
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// ViewerContext describes who is looking at the notification feed.
// It is rebuilt for every refresh from the session state.
type ViewerContext struct {
	UserID     string
	HomeBranch BranchID
	Role       Role

	// SimulatedBranch is an administrator's chosen branch; it may be
	// AllBranches. Ignored for non-admin viewers.
	SimulatedBranch BranchID

	// ReadWatermark marks everything created at or before it as read.
	ReadWatermark time.Time
}

// IsAdmin reports whether the viewer is an administrator.
func (v ViewerContext) IsAdmin() bool {
	return v.Role == RoleAdmin
}

// EffectiveBranch returns the branch the viewer is currently scoped to.
func (v ViewerContext) EffectiveBranch() BranchID {
	if v.IsAdmin() && v.SimulatedBranch != "" {
		return v.SimulatedBranch
	}
	return v.HomeBranch
}
