package models

import (
	"time"

	"github.com/zulandar/tally/internal/policy"
	"gorm.io/datatypes"
)

// Role is a user's role within the organization.
type Role string

const (
	RoleStudent     Role = "student"
	RoleTeacher     Role = "teacher"
	RoleManager     Role = "manager"
	RoleModerator   Role = "moderator"
	RoleBranchAdmin Role = "branch_admin"
	RoleSuperadmin  Role = "superadmin"
)

// Branch is one site of the organization.
type Branch struct {
	ID   string `gorm:"primaryKey;size:64" json:"id"`
	Name string `gorm:"size:128;not null" json:"name"`
	Code string `gorm:"size:32" json:"code"`
}

// User is a login identity. Raters are always users.
type User struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Role        Role      `gorm:"size:16;not null;index" json:"role"`
	BranchID    *string   `gorm:"size:64;index" json:"branch_id"`
	DisplayName string    `gorm:"size:128" json:"display_name"`
	Login       string    `gorm:"size:64" json:"login"`
	Email       string    `gorm:"size:128" json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

// Teacher is a rating target. A teacher belongs to a primary branch and
// may also be a member of other branches through BranchIDs.
type Teacher struct {
	ID        string                      `gorm:"primaryKey;size:64" json:"id"`
	Name      string                      `gorm:"size:128;not null" json:"name"`
	BranchID  *string                     `gorm:"size:64;index" json:"branch_id"`
	BranchIDs datatypes.JSONSlice[string] `gorm:"type:json" json:"branch_ids"`
	UID       *string                     `gorm:"size:64;index" json:"uid"`
	Category  policy.Category             `gorm:"size:16;default:standard" json:"category"`
	CreatedAt time.Time                   `json:"created_at"`
}

// InBranch reports whether the teacher belongs to branchID, either as the
// primary branch or through a membership.
func (t Teacher) InBranch(branchID string) bool {
	if t.BranchID != nil && *t.BranchID == branchID {
		return true
	}
	for _, id := range t.BranchIDs {
		if id == branchID {
			return true
		}
	}
	return false
}

// Student links a student user to the group they study in.
type Student struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	Name       string    `gorm:"size:128;not null" json:"name"`
	BranchID   string    `gorm:"size:64;index" json:"branch_id"`
	GroupID    string    `gorm:"size:64;index" json:"group_id"`
	ClassLevel string    `gorm:"size:16" json:"class_level"`
	UID        *string   `gorm:"size:64;index" json:"uid"`
	CreatedAt  time.Time `json:"created_at"`
}

// Group is a class of students within a branch.
type Group struct {
	ID         string `gorm:"primaryKey;size:64" json:"id"`
	Name       string `gorm:"size:128;not null" json:"name"`
	BranchID   string `gorm:"size:64;index" json:"branch_id"`
	ClassLevel string `gorm:"size:16" json:"class_level"`
}

// Subject is a taught subject, shared across branches.
type Subject struct {
	ID   string `gorm:"primaryKey;size:64" json:"id"`
	Name string `gorm:"size:128;not null" json:"name"`
	Code string `gorm:"size:32" json:"code"`
}

// TeachingAssignment records that a teacher teaches a group a subject in a
// given year. It is not scoped to a cycle.
type TeachingAssignment struct {
	ID        string `gorm:"primaryKey;size:64" json:"id"`
	TeacherID string `gorm:"size:64;not null;index" json:"teacher_id"`
	GroupID   string `gorm:"size:64;not null;index" json:"group_id"`
	SubjectID string `gorm:"size:64;not null" json:"subject_id"`
	BranchID  string `gorm:"size:64;not null;index" json:"branch_id"`
	Year      int    `gorm:"not null;index" json:"year"`
}

// ManagementAssignment records that a manager oversees a branch in a year.
type ManagementAssignment struct {
	ID        string `gorm:"primaryKey;size:64" json:"id"`
	ManagerID string `gorm:"size:64;not null;index" json:"manager_id"`
	BranchID  string `gorm:"size:64;not null;index" json:"branch_id"`
	Year      int    `gorm:"not null;index" json:"year"`
}
