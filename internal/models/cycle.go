package models

import (
	"time"

	"gorm.io/datatypes"
)

// CycleStatus is the administrator-driven state of an evaluation cycle.
type CycleStatus string

const (
	CycleDraft  CycleStatus = "DRAFT"
	CycleOpen   CycleStatus = "OPEN"
	CycleClosed CycleStatus = "CLOSED"
)

// Cycle is one evaluation period. An empty BranchIDs list means every branch.
type Cycle struct {
	ID           string                      `gorm:"primaryKey;size:64" json:"id"`
	Year         int                         `gorm:"not null;index" json:"year"`
	Status       CycleStatus                 `gorm:"size:8;default:DRAFT;index" json:"status"`
	BranchIDs    datatypes.JSONSlice[string] `gorm:"type:json" json:"branch_ids"`
	StartAt      *time.Time                  `json:"start_at"`
	EndAt        *time.Time                  `json:"end_at"`
	DurationDays int                         `json:"duration_days"`
	ThresholdY   float64                     `json:"threshold_y"`
	ThresholdP   float64                     `json:"threshold_p"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// InScope reports whether branchID is covered by the cycle's branch scope.
func (c Cycle) InScope(branchID string) bool {
	if len(c.BranchIDs) == 0 {
		return true
	}
	if branchID == "" {
		return false
	}
	for _, id := range c.BranchIDs {
		if id == branchID {
			return true
		}
	}
	return false
}

// AcceptsAt reports whether submissions are accepted at the given time.
func (c Cycle) AcceptsAt(now time.Time) bool {
	if c.Status != CycleOpen {
		return false
	}
	if c.StartAt != nil && now.Before(*c.StartAt) {
		return false
	}
	if c.EndAt != nil && now.After(*c.EndAt) {
		return false
	}
	return true
}
