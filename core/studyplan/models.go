package studyplan

import (
	"time"
)

// CatalogScope is the backlog scope of the course catalog, shared by all students.
// Any other scope is the id of the student owning a residual backlog.
const CatalogScope = "catalog"

// ScheduleBlock is a recurring weekly commitment of a student to a course.
type ScheduleBlock struct {
	ID        string `json:"id"`
	DayOfWeek int    `json:"day_of_week"` // Monday=0 ... Sunday=6
	StartTime string `json:"start_time"`  // HH:MM
	EndTime   string `json:"end_time"`    // HH:MM
	Course    string `json:"course"`      // matched verbatim against backlog courses
}

func (b ScheduleBlock) start() int { return TimeToMinutes(b.StartTime) }
func (b ScheduleBlock) end() int   { return TimeToMinutes(b.EndTime) }

// Duration is the length of the block in minutes; <= 0 for degenerate blocks.
func (b ScheduleBlock) Duration() int { return b.end() - b.start() }

// Schedule is the weekly template of a student.
type Schedule struct {
	StudentID string          `json:"student_id"`
	Blocks    []ScheduleBlock `json:"blocks"`
	UpdatedAt time.Time       `json:"updated_at"` // UTC
}

// Topic is a unit of study work. Minutes is what remains to be studied.
type Topic struct {
	Name    string `json:"name"`
	Minutes int    `json:"minutes"`
}

// Backlogs maps a course label to its topics queue, head first.
type Backlogs map[string][]Topic

// Clone returns a deep copy of bl: the copy's queues can be consumed without touching bl.
func (bl Backlogs) Clone() Backlogs {
	out := make(Backlogs, len(bl))
	for course, topics := range bl {
		queue := make([]Topic, len(topics))
		copy(queue, topics)
		out[course] = queue
	}
	return out
}

// Total returns the minutes still required by `course`.
func (bl Backlogs) Total(course string) int {
	var total int
	for _, t := range bl[course] {
		if t.Minutes > 0 {
			total += t.Minutes
		}
	}
	return total
}

// PlanEntry is a piece of a schedule block spent on one topic.
type PlanEntry struct {
	Date      string `json:"date"`       // YYYY-MM-DD
	StartTime string `json:"start_time"` // HH:MM
	EndTime   string `json:"end_time"`   // HH:MM
	Course    string `json:"course"`
	Topic     string `json:"topic"`
	Allocated int    `json:"allocated"`
	Remaining int    `json:"remaining"` // topic minutes left after this entry
}

// Plan is the outcome of one generation run for a student.
type Plan struct {
	StudentID   string      `json:"student_id"`
	AnchorDate  string      `json:"anchor_date"` // YYYY-MM-DD, day offset 0
	HorizonDays int         `json:"horizon_days"`
	Entries     []PlanEntry `json:"entries"`
	Residual    Backlogs    `json:"residual"`     // backlogs left once the horizon is exhausted
	GeneratedAt time.Time   `json:"generated_at"` // UTC
}

// GenerateOptions tunes a generation run. Zero values fall back to the defaults:
// the Monday of the current week & the configured horizon.
type GenerateOptions struct {
	AnchorDate     time.Time
	HorizonDays    int
	ConsumeBacklog bool // persist the residual as the student's backlog
}

// RegenerateResult sums up a bulk regeneration.
type RegenerateResult struct {
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
}
