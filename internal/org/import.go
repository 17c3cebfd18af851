package org

import (
	"fmt"

	"github.com/zulandar/tally/internal/models"
	"github.com/zulandar/tally/internal/policy"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Summary counts the rows written per table.
type Summary struct {
	Branches   int
	Users      int
	Teachers   int
	Students   int
	Groups     int
	Subjects   int
	Teaching   int
	Management int
	Questions  int
}

// Import upserts every roster row by id in one transaction. Rows missing
// from the roster are left in place.
func Import(db *gorm.DB, r *Roster) (*Summary, error) {
	s := &Summary{}
	err := db.Transaction(func(tx *gorm.DB) error {
		upsert := func(table string, rows interface{}, n int, count *int) error {
			if n == 0 {
				return nil
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(rows).Error; err != nil {
				return fmt.Errorf("org: import %s: %w", table, err)
			}
			*count = n
			return nil
		}

		branches := make([]models.Branch, len(r.Branches))
		for i, b := range r.Branches {
			branches[i] = models.Branch{ID: b.ID, Name: b.Name, Code: b.Code}
		}
		if err := upsert("branches", &branches, len(branches), &s.Branches); err != nil {
			return err
		}

		users := make([]models.User, len(r.Users))
		for i, u := range r.Users {
			users[i] = models.User{
				ID:          u.ID,
				Role:        models.Role(u.Role),
				BranchID:    optional(u.BranchID),
				DisplayName: u.DisplayName,
				Login:       u.Login,
				Email:       u.Email,
			}
		}
		if err := upsert("users", &users, len(users), &s.Users); err != nil {
			return err
		}

		teachers := make([]models.Teacher, len(r.Teachers))
		for i, t := range r.Teachers {
			cat, _ := policy.ParseCategory(t.Category)
			memberships := t.BranchIDs
			if memberships == nil {
				memberships = []string{}
			}
			teachers[i] = models.Teacher{
				ID:        t.ID,
				Name:      t.Name,
				BranchID:  optional(t.BranchID),
				BranchIDs: datatypes.JSONSlice[string](memberships),
				UID:       optional(t.UID),
				Category:  cat,
			}
		}
		if err := upsert("teachers", &teachers, len(teachers), &s.Teachers); err != nil {
			return err
		}

		students := make([]models.Student, len(r.Students))
		for i, st := range r.Students {
			students[i] = models.Student{
				ID:         st.ID,
				Name:       st.Name,
				BranchID:   st.BranchID,
				GroupID:    st.GroupID,
				ClassLevel: st.ClassLevel,
				UID:        optional(st.UID),
			}
		}
		if err := upsert("students", &students, len(students), &s.Students); err != nil {
			return err
		}

		groups := make([]models.Group, len(r.Groups))
		for i, g := range r.Groups {
			groups[i] = models.Group{ID: g.ID, Name: g.Name, BranchID: g.BranchID, ClassLevel: g.ClassLevel}
		}
		if err := upsert("groups", &groups, len(groups), &s.Groups); err != nil {
			return err
		}

		subjects := make([]models.Subject, len(r.Subjects))
		for i, sub := range r.Subjects {
			subjects[i] = models.Subject{ID: sub.ID, Name: sub.Name, Code: sub.Code}
		}
		if err := upsert("subjects", &subjects, len(subjects), &s.Subjects); err != nil {
			return err
		}

		teaching := make([]models.TeachingAssignment, len(r.Teaching))
		for i, a := range r.Teaching {
			teaching[i] = models.TeachingAssignment{
				ID:        teachingID(a),
				TeacherID: a.TeacherID,
				GroupID:   a.GroupID,
				SubjectID: a.SubjectID,
				BranchID:  a.BranchID,
				Year:      a.Year,
			}
		}
		if err := upsert("teaching assignments", &teaching, len(teaching), &s.Teaching); err != nil {
			return err
		}

		management := make([]models.ManagementAssignment, len(r.Management))
		for i, a := range r.Management {
			management[i] = models.ManagementAssignment{
				ID:        managementID(a),
				ManagerID: a.ManagerID,
				BranchID:  a.BranchID,
				Year:      a.Year,
			}
		}
		if err := upsert("management assignments", &management, len(management), &s.Management); err != nil {
			return err
		}

		questions := make([]models.Question, len(r.Questions))
		for i, q := range r.Questions {
			options := q.Options
			if options == nil {
				options = []string{}
			}
			questions[i] = models.Question{
				ID:       q.ID,
				Text:     q.Text,
				Type:     models.QuestionType(q.Type),
				Flow:     models.Flow(q.Flow),
				Required: q.Required,
				Options:  datatypes.JSONSlice[string](options),
				ScaleMin: q.ScaleMin,
				ScaleMax: q.ScaleMax,
				Category: q.Category,
			}
		}
		return upsert("questions", &questions, len(questions), &s.Questions)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
