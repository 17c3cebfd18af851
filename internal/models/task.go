package models

import (
	"time"

	"gorm.io/datatypes"
)

// TargetType is the kind of person a task rates.
type TargetType string

const (
	TargetTeacher TargetType = "teacher"
	TargetManager TargetType = "manager"
)

// TaskStatus tracks whether a rater has answered a task.
type TaskStatus string

const (
	TaskOpen TaskStatus = "OPEN"
	TaskDone TaskStatus = "DONE"
)

// Flow is a rater-role/target-type pairing.
type Flow string

const (
	FlowStudentTeacher    Flow = "student_teacher"
	FlowTeacherManagement Flow = "teacher_management"
	FlowManagementTeacher Flow = "management_teacher"
	FlowTeacherSelf       Flow = "teacher_self"
)

// Valid reports whether f is one of the four rating flows.
func (f Flow) Valid() bool {
	switch f {
	case FlowStudentTeacher, FlowTeacherManagement, FlowManagementTeacher, FlowTeacherSelf:
		return true
	}
	return false
}

// Task is one rating obligation of a rater toward a target within a cycle.
// Its ID is derived from the logical tuple, never generated.
type Task struct {
	ID          string     `gorm:"primaryKey;size:512" json:"id"`
	CycleID     string     `gorm:"size:64;not null;index" json:"cycle_id"`
	RaterID     string     `gorm:"size:64;not null;index" json:"rater_id"`
	RaterRole   Role       `gorm:"size:16;not null" json:"rater_role"`
	TargetType  TargetType `gorm:"size:16;not null" json:"target_type"`
	TargetID    string     `gorm:"size:64;not null;index" json:"target_id"`
	TargetName  string     `gorm:"size:128" json:"target_name"`
	BranchID    string     `gorm:"size:64;index" json:"branch_id"`
	GroupID     *string    `gorm:"size:64" json:"group_id"`
	SubjectID   *string    `gorm:"size:64" json:"subject_id"`
	Status      TaskStatus `gorm:"size:8;default:OPEN;index" json:"status"`
	SubmittedAt *time.Time `json:"submitted_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Flow returns the rating flow the task belongs to.
func (t Task) Flow() Flow {
	switch {
	case t.RaterRole == RoleStudent && t.TargetType == TargetTeacher:
		return FlowStudentTeacher
	case t.RaterRole == RoleTeacher && t.TargetType == TargetManager:
		return FlowTeacherManagement
	case t.RaterRole == RoleManager && t.TargetType == TargetTeacher:
		return FlowManagementTeacher
	case t.RaterRole == RoleTeacher && t.TargetType == TargetTeacher:
		return FlowTeacherSelf
	}
	return ""
}

// QuestionType is the answer format of a survey question.
type QuestionType string

const (
	QuestionScale  QuestionType = "scale"
	QuestionChoice QuestionType = "choice"
	QuestionText   QuestionType = "text"
)

// Question is a survey question asked in one flow.
type Question struct {
	ID       string                      `gorm:"primaryKey;size:64" json:"id"`
	Text     string                      `gorm:"type:text;not null" json:"text"`
	Type     QuestionType                `gorm:"size:16;not null" json:"type"`
	Flow     Flow                        `gorm:"size:32;index" json:"flow"`
	Required bool                        `gorm:"default:false" json:"required"`
	Options  datatypes.JSONSlice[string] `gorm:"type:json" json:"options"`
	ScaleMin *float64                    `json:"scale_min"`
	ScaleMax *float64                    `json:"scale_max"`
	Category string                      `gorm:"size:64" json:"category"`
}

// QuestionSet pins the ordered questions one flow asks within one cycle.
// Flows without a set ask every question of the flow.
type QuestionSet struct {
	CycleID     string                      `gorm:"primaryKey;size:64" json:"cycle_id"`
	Flow        Flow                        `gorm:"primaryKey;size:32" json:"flow"`
	QuestionIDs datatypes.JSONSlice[string] `gorm:"type:json" json:"question_ids"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// Submission is a rater's completed response set for a task.
type Submission struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TaskID    string    `gorm:"size:512;not null;uniqueIndex" json:"task_id"`
	CycleID   string    `gorm:"size:64;not null;index" json:"cycle_id"`
	RaterID   string    `gorm:"size:64;not null" json:"rater_id"`
	TargetID  string    `gorm:"size:64;not null;index" json:"target_id"`
	BranchID  string    `gorm:"size:64" json:"branch_id"`
	GroupID   *string   `gorm:"size:64" json:"group_id"`
	SubjectID *string   `gorm:"size:64" json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`

	Answers []Answer `gorm:"foreignKey:SubmissionID" json:"answers,omitempty"`
}

// Answer is one question's response within a submission.
type Answer struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	SubmissionID string    `gorm:"size:36;not null;uniqueIndex:idx_answer_submission_question" json:"submission_id"`
	QuestionID   string    `gorm:"size:64;not null;uniqueIndex:idx_answer_submission_question" json:"question_id"`
	Value        string    `gorm:"type:text" json:"value"`
	CreatedAt    time.Time `json:"created_at"`
}
