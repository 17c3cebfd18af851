// Package policy holds the fixed weighting tables used to score teachers.
package policy

import (
	"fmt"
	"sort"
	"strings"
)

// Category selects the weighting policy and portfolio caps for a teacher.
type Category string

const (
	CategoryStandard Category = "standard"
	CategoryDramaGym Category = "drama_gym"
	CategoryChess    Category = "chess"
)

// Weights are the maximum contribution of each score component. They sum
// to 100 for every category.
type Weights struct {
	Student   float64
	Manager   float64
	Self      float64
	Biq       float64
	Exam      float64
	Portfolio float64
}

// Sum returns the total of all component weights.
func (w Weights) Sum() float64 {
	return w.Student + w.Manager + w.Self + w.Biq + w.Exam + w.Portfolio
}

// Caps are the per-sub-score portfolio limits.
type Caps struct {
	Education  float64
	Attendance float64
	Training   float64
	Olympiad   float64
	Events     float64
}

// Total returns the highest reachable portfolio score.
func (c Caps) Total() float64 {
	return c.Education + c.Attendance + c.Training + c.Olympiad + c.Events
}

// Policy is the scoring record for one category.
type Policy struct {
	Category Category
	Label    string
	Weights  Weights
	Caps     Caps
}

// UsesBiq reports whether class-level BIQ results count for the category.
func (p Policy) UsesBiq() bool { return p.Weights.Biq > 0 }

// UsesExam reports whether the exam score counts for the category.
func (p Policy) UsesExam() bool { return p.Weights.Exam > 0 }

// BonusCap is the ceiling on the summed achievement bonus.
const BonusCap = 10.0

var specialistWeights = Weights{Student: 20, Manager: 10, Self: 10, Biq: 0, Exam: 0, Portfolio: 60}

var policies = map[Category]Policy{
	CategoryStandard: {
		Category: CategoryStandard,
		Label:    "Standard",
		Weights:  Weights{Student: 15, Manager: 10, Self: 10, Biq: 15, Exam: 30, Portfolio: 20},
		Caps:     Caps{Education: 3, Attendance: 3, Training: 5, Olympiad: 4, Events: 5},
	},
	CategoryDramaGym: {
		Category: CategoryDramaGym,
		Label:    "Drama/Gymnastics",
		Weights:  specialistWeights,
		Caps:     Caps{Education: 3, Attendance: 3, Training: 9, Olympiad: 20, Events: 25},
	},
	CategoryChess: {
		Category: CategoryChess,
		Label:    "Chess",
		Weights:  specialistWeights,
		Caps:     Caps{Education: 3, Attendance: 3, Training: 9, Olympiad: 30, Events: 15},
	},
}

// For returns the policy for a category. Empty or unknown categories fall
// back to the standard policy.
func For(c Category) Policy {
	if p, ok := policies[c]; ok {
		return p
	}
	return policies[CategoryStandard]
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := policies[c]
	return ok
}

// Categories returns all known categories in sorted order.
func Categories() []Category {
	out := make([]Category, 0, len(policies))
	for c := range policies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseCategory converts user input into a Category. An empty string is
// the standard category.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return CategoryStandard, nil
	}
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("policy: unknown category %q; valid categories: %v", s, Categories())
	}
	return c, nil
}
