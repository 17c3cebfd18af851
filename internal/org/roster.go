// Package org loads the organization roster (branches, people, groups,
// assignments and survey questions) from YAML and upserts it into the store.
package org

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/zulandar/tally/internal/models"
	"github.com/zulandar/tally/internal/policy"
	"gopkg.in/yaml.v3"
)

// assignmentNamespace derives stable ids for assignments listed without one,
// so re-importing the same roster does not duplicate them.
var assignmentNamespace = uuid.MustParse("6f1c2b1e-3c1a-4e0e-9a47-2f9e8c1d5b7a")

// Roster is the YAML import document.
type Roster struct {
	Branches   []BranchEntry     `yaml:"branches"`
	Users      []UserEntry       `yaml:"users"`
	Teachers   []TeacherEntry    `yaml:"teachers"`
	Students   []StudentEntry    `yaml:"students"`
	Groups     []GroupEntry      `yaml:"groups"`
	Subjects   []SubjectEntry    `yaml:"subjects"`
	Teaching   []TeachingEntry   `yaml:"teaching_assignments"`
	Management []ManagementEntry `yaml:"management_assignments"`
	Questions  []QuestionEntry   `yaml:"questions"`
}

type BranchEntry struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Code string `yaml:"code"`
}

type UserEntry struct {
	ID          string `yaml:"id"`
	Role        string `yaml:"role"`
	BranchID    string `yaml:"branch_id"`
	DisplayName string `yaml:"display_name"`
	Login       string `yaml:"login"`
	Email       string `yaml:"email"`
}

type TeacherEntry struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	BranchID  string   `yaml:"branch_id"`
	BranchIDs []string `yaml:"branch_ids"`
	UID       string   `yaml:"uid"`
	Category  string   `yaml:"category"`
}

type StudentEntry struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	BranchID   string `yaml:"branch_id"`
	GroupID    string `yaml:"group_id"`
	ClassLevel string `yaml:"class_level"`
	UID        string `yaml:"uid"`
}

type GroupEntry struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	BranchID   string `yaml:"branch_id"`
	ClassLevel string `yaml:"class_level"`
}

type SubjectEntry struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Code string `yaml:"code"`
}

type TeachingEntry struct {
	ID        string `yaml:"id"`
	TeacherID string `yaml:"teacher_id"`
	GroupID   string `yaml:"group_id"`
	SubjectID string `yaml:"subject_id"`
	BranchID  string `yaml:"branch_id"`
	Year      int    `yaml:"year"`
}

type ManagementEntry struct {
	ID        string `yaml:"id"`
	ManagerID string `yaml:"manager_id"`
	BranchID  string `yaml:"branch_id"`
	Year      int    `yaml:"year"`
}

type QuestionEntry struct {
	ID       string   `yaml:"id"`
	Text     string   `yaml:"text"`
	Type     string   `yaml:"type"`
	Flow     string   `yaml:"flow"`
	Required bool     `yaml:"required"`
	Options  []string `yaml:"options"`
	ScaleMin *float64 `yaml:"scale_min"`
	ScaleMax *float64 `yaml:"scale_max"`
	Category string   `yaml:"category"`
}

var validRoles = map[models.Role]bool{
	models.RoleStudent: true, models.RoleTeacher: true, models.RoleManager: true,
	models.RoleModerator: true, models.RoleBranchAdmin: true, models.RoleSuperadmin: true,
}

var validQuestionTypes = map[models.QuestionType]bool{
	models.QuestionScale: true, models.QuestionChoice: true, models.QuestionText: true,
}

// LoadRoster reads and validates a roster file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("org: read %s: %w", path, err)
	}
	return ParseRoster(data)
}

// ParseRoster unmarshals and validates roster YAML.
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("org: parse: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Roster) validate() error {
	var errs []string
	need := func(section string, i int, field, v string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Sprintf("%s[%d].%s is required", section, i, field))
		}
	}

	for i, b := range r.Branches {
		need("branches", i, "id", b.ID)
		need("branches", i, "name", b.Name)
	}
	for i, u := range r.Users {
		need("users", i, "id", u.ID)
		if !validRoles[models.Role(u.Role)] {
			errs = append(errs, fmt.Sprintf("users[%d].role %q is not valid", i, u.Role))
		}
	}
	for i, t := range r.Teachers {
		need("teachers", i, "id", t.ID)
		need("teachers", i, "name", t.Name)
		if _, err := policy.ParseCategory(t.Category); err != nil {
			errs = append(errs, fmt.Sprintf("teachers[%d]: %v", i, err))
		}
	}
	for i, s := range r.Students {
		need("students", i, "id", s.ID)
		need("students", i, "name", s.Name)
		need("students", i, "group_id", s.GroupID)
	}
	for i, g := range r.Groups {
		need("groups", i, "id", g.ID)
		need("groups", i, "name", g.Name)
	}
	for i, s := range r.Subjects {
		need("subjects", i, "id", s.ID)
		need("subjects", i, "name", s.Name)
	}
	for i, a := range r.Teaching {
		need("teaching_assignments", i, "teacher_id", a.TeacherID)
		need("teaching_assignments", i, "group_id", a.GroupID)
		need("teaching_assignments", i, "subject_id", a.SubjectID)
		need("teaching_assignments", i, "branch_id", a.BranchID)
		if a.Year == 0 {
			errs = append(errs, fmt.Sprintf("teaching_assignments[%d].year is required", i))
		}
	}
	for i, a := range r.Management {
		need("management_assignments", i, "manager_id", a.ManagerID)
		need("management_assignments", i, "branch_id", a.BranchID)
		if a.Year == 0 {
			errs = append(errs, fmt.Sprintf("management_assignments[%d].year is required", i))
		}
	}
	for i, q := range r.Questions {
		need("questions", i, "id", q.ID)
		need("questions", i, "text", q.Text)
		if !validQuestionTypes[models.QuestionType(q.Type)] {
			errs = append(errs, fmt.Sprintf("questions[%d].type %q is not valid", i, q.Type))
		}
		if !models.Flow(q.Flow).Valid() {
			errs = append(errs, fmt.Sprintf("questions[%d].flow %q is not valid", i, q.Flow))
		}
		if q.ScaleMin != nil && q.ScaleMax != nil && *q.ScaleMax <= *q.ScaleMin {
			errs = append(errs, fmt.Sprintf("questions[%d]: scale_max must be greater than scale_min", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("org: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func teachingID(a TeachingEntry) string {
	if a.ID != "" {
		return a.ID
	}
	key := strings.Join([]string{"teaching", a.TeacherID, a.GroupID, a.SubjectID, a.BranchID, strconv.Itoa(a.Year)}, "|")
	return uuid.NewSHA1(assignmentNamespace, []byte(key)).String()
}

func managementID(a ManagementEntry) string {
	if a.ID != "" {
		return a.ID
	}
	key := strings.Join([]string{"management", a.ManagerID, a.BranchID, strconv.Itoa(a.Year)}, "|")
	return uuid.NewSHA1(assignmentNamespace, []byte(key)).String()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
