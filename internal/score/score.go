// Package score turns a teacher's survey statistics and result entries into
// one weighted total and classifies it.
package score

import (
	"github.com/zulandar/tally/internal/policy"
)

// Portfolio holds optional sub-scores. Nil entries count as zero.
type Portfolio struct {
	Education  *float64
	Attendance *float64
	Training   *float64
	Olympiad   *float64
	Events     *float64
}

// Inputs is everything known about one teacher in one cycle. Nil pointers
// mean the source has no data.
type Inputs struct {
	Category   policy.Category
	StudentAvg *float64 // 0–100
	ManagerAvg *float64 // 0–100
	SelfAvg    *float64 // 0–100
	BiqAvg     *float64 // 0–100
	Exam       *float64 // 0–30
	Portfolio  *Portfolio
	BonusSum   float64
}

// Breakdown is each component's contribution and the total. Nil components
// had no data; they add nothing to the total.
type Breakdown struct {
	TeacherID string          `json:"teacher_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Category  policy.Category `json:"category"`
	Student   *float64        `json:"student"`
	Manager   *float64        `json:"manager"`
	Self      *float64        `json:"self"`
	Biq       *float64        `json:"biq"`
	Exam      *float64        `json:"exam"`
	Portfolio *float64        `json:"portfolio"`
	Bonus     float64         `json:"bonus"`
	BonusRaw  float64         `json:"bonus_raw"`
	Total     float64         `json:"total"`
	Bucket    string          `json:"bucket"`
}

// Aggregate applies the category's weights and caps to in. Survey and BIQ
// averages are weighted, the exam score passes through, portfolio
// sub-scores are capped and summed, and the bonus sum is capped at
// policy.BonusCap.
func Aggregate(in Inputs) Breakdown {
	p := policy.For(in.Category)
	b := Breakdown{Category: p.Category}

	b.Student = weighted(in.StudentAvg, p.Weights.Student)
	b.Manager = weighted(in.ManagerAvg, p.Weights.Manager)
	b.Self = weighted(in.SelfAvg, p.Weights.Self)
	if p.UsesBiq() {
		b.Biq = weighted(in.BiqAvg, p.Weights.Biq)
	}
	if p.UsesExam() && in.Exam != nil {
		exam := *in.Exam
		b.Exam = &exam
	}
	if in.Portfolio != nil {
		sum := capped(in.Portfolio.Education, p.Caps.Education) +
			capped(in.Portfolio.Attendance, p.Caps.Attendance) +
			capped(in.Portfolio.Training, p.Caps.Training) +
			capped(in.Portfolio.Olympiad, p.Caps.Olympiad) +
			capped(in.Portfolio.Events, p.Caps.Events)
		b.Portfolio = &sum
	}

	b.BonusRaw = in.BonusSum
	b.Bonus = in.BonusSum
	if b.Bonus > policy.BonusCap {
		b.Bonus = policy.BonusCap
	}

	for _, c := range []*float64{b.Student, b.Manager, b.Self, b.Biq, b.Exam, b.Portfolio} {
		if c != nil {
			b.Total += *c
		}
	}
	b.Total += b.Bonus
	b.Bucket = Bucket(b.Total)
	return b
}

func weighted(avg *float64, weight float64) *float64 {
	if avg == nil {
		return nil
	}
	v := *avg * weight / 100
	return &v
}

func capped(v *float64, limit float64) float64 {
	if v == nil {
		return 0
	}
	if *v > limit {
		return limit
	}
	return *v
}

// Bucket labels.
const (
	BucketFullyMeets   = "fully meets requirements"
	BucketMeets        = "meets requirements"
	BucketLargelyMeets = "largely meets requirements"
	BucketRequiresDev  = "requires development"
	BucketLowDev       = "low development"
	BucketVeryLowDev   = "very low development"
)

var buckets = []struct {
	min   float64
	label string
}{
	{90, BucketFullyMeets},
	{80, BucketMeets},
	{60, BucketLargelyMeets},
	{50, BucketRequiresDev},
	{30, BucketLowDev},
}

// Bucket maps a total score to its decision label.
func Bucket(total float64) string {
	for _, b := range buckets {
		if total >= b.min {
			return b.label
		}
	}
	return BucketVeryLowDev
}
