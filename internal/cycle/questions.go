package cycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/tally/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SetQuestions pins the questions flow asks in cycle id, in the given
// order. Every id must name a question of that flow. An empty list removes
// the set so the flow asks all of its questions again.
func SetQuestions(db *gorm.DB, id string, flow models.Flow, questionIDs []string, now time.Time) (*models.QuestionSet, error) {
	if _, err := Get(db, id); err != nil {
		return nil, err
	}
	if !flow.Valid() {
		return nil, fmt.Errorf("%w: unknown flow %q", ErrInvalid, flow)
	}

	ids := uniqueIDs(questionIDs)
	if len(ids) == 0 {
		if err := db.Where("cycle_id = ? AND flow = ?", id, flow).Delete(&models.QuestionSet{}).Error; err != nil {
			return nil, fmt.Errorf("cycle: clear question set %s/%s: %w", id, flow, err)
		}
		return &models.QuestionSet{CycleID: id, Flow: flow, QuestionIDs: []string{}}, nil
	}

	var questions []models.Question
	if err := db.Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("cycle: load questions: %w", err)
	}
	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	for _, qid := range ids {
		q, ok := byID[qid]
		if !ok {
			return nil, fmt.Errorf("%w: question %s does not exist", ErrInvalid, qid)
		}
		if q.Flow != flow {
			return nil, fmt.Errorf("%w: question %s belongs to flow %s, not %s", ErrInvalid, qid, q.Flow, flow)
		}
	}

	set := models.QuestionSet{CycleID: id, Flow: flow, QuestionIDs: datatypes.JSONSlice[string](ids), UpdatedAt: now}
	if err := upsertSets(db, []models.QuestionSet{set}); err != nil {
		return nil, err
	}
	return &set, nil
}

// QuestionSets returns the cycle's question sets ordered by flow.
func QuestionSets(db *gorm.DB, id string) ([]models.QuestionSet, error) {
	if _, err := Get(db, id); err != nil {
		return nil, err
	}
	var sets []models.QuestionSet
	if err := db.Where("cycle_id = ?", id).Order("flow ASC").Find(&sets).Error; err != nil {
		return nil, fmt.Errorf("cycle: list question sets %s: %w", id, err)
	}
	return sets, nil
}

// CopyQuestions copies every question set of cycle from into cycle id,
// replacing sets for the same flows. When from is empty the latest cycle
// with an earlier year is used. It returns the source cycle and the copied
// sets.
func CopyQuestions(db *gorm.DB, id, from string, now time.Time) (string, []models.QuestionSet, error) {
	target, err := Get(db, id)
	if err != nil {
		return "", nil, err
	}
	if from == "" {
		var prev models.Cycle
		err := db.Where("year < ?", target.Year).Order("year DESC, created_at DESC").First(&prev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, fmt.Errorf("%w: no cycle before year %d", ErrNotFound, target.Year)
		}
		if err != nil {
			return "", nil, fmt.Errorf("cycle: find previous cycle: %w", err)
		}
		from = prev.ID
	} else if from == id {
		return "", nil, fmt.Errorf("%w: cannot copy question sets from %s onto itself", ErrInvalid, id)
	}

	sets, err := QuestionSets(db, from)
	if err != nil {
		return "", nil, err
	}
	if len(sets) == 0 {
		return "", nil, fmt.Errorf("%w: cycle %s has no question sets", ErrNotFound, from)
	}
	copied := make([]models.QuestionSet, len(sets))
	for i, s := range sets {
		copied[i] = models.QuestionSet{CycleID: id, Flow: s.Flow, QuestionIDs: s.QuestionIDs, UpdatedAt: now}
	}
	if err := upsertSets(db, copied); err != nil {
		return "", nil, err
	}
	return from, copied, nil
}

func upsertSets(db *gorm.DB, sets []models.QuestionSet) error {
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cycle_id"}, {Name: "flow"}},
		DoUpdates: clause.AssignmentColumns([]string{"question_ids", "updated_at"}),
	}).Create(&sets).Error
	if err != nil {
		return fmt.Errorf("cycle: save question sets: %w", err)
	}
	return nil
}

// uniqueIDs trims and deduplicates ids, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := []string{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
