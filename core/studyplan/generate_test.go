package studyplan

import (
	"reflect"
	"testing"
	"time"
)

var monday = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name         string
		blocks       []ScheduleBlock
		backlogs     Backlogs
		horizon      int
		anchor       time.Time
		want         []PlanEntry
		wantResidual Backlogs
	}{
		{
			name:     "block split across topics",
			blocks:   []ScheduleBlock{block(0, "09:00", "10:30", "Math")},
			backlogs: Backlogs{"Math": {{Name: "Algebra", Minutes: 60}, {Name: "Geometry", Minutes: 120}}},
			horizon:  1,
			want: []PlanEntry{
				{Date: "2024-01-01", StartTime: "09:00", EndTime: "10:00", Course: "Math", Topic: "Algebra", Allocated: 60, Remaining: 0},
				{Date: "2024-01-01", StartTime: "10:00", EndTime: "10:30", Course: "Math", Topic: "Geometry", Allocated: 30, Remaining: 90},
			},
			wantResidual: Backlogs{"Math": {{Name: "Geometry", Minutes: 90}}},
		},
		{
			name:         "slot outlives backlog",
			blocks:       []ScheduleBlock{block(0, "09:00", "10:30", "Math")},
			backlogs:     Backlogs{"Math": {{Name: "Algebra", Minutes: 30}}},
			horizon:      1,
			want:         []PlanEntry{{Date: "2024-01-01", StartTime: "09:00", EndTime: "09:30", Course: "Math", Topic: "Algebra", Allocated: 30, Remaining: 0}},
			wantResidual: Backlogs{"Math": {}},
		},
		{
			name:         "course without backlog",
			blocks:       []ScheduleBlock{block(0, "09:00", "10:00", "Physics")},
			backlogs:     Backlogs{"Math": {{Name: "Algebra", Minutes: 30}}},
			horizon:      14,
			want:         []PlanEntry{},
			wantResidual: Backlogs{"Math": {{Name: "Algebra", Minutes: 30}}},
		},
		{
			name:     "exact fit pops the topic",
			blocks:   []ScheduleBlock{block(0, "09:00", "10:00", "Math")},
			backlogs: Backlogs{"Math": {{Name: "Algebra", Minutes: 60}, {Name: "Geometry", Minutes: 10}}},
			horizon:  1,
			want: []PlanEntry{
				{Date: "2024-01-01", StartTime: "09:00", EndTime: "10:00", Course: "Math", Topic: "Algebra", Allocated: 60, Remaining: 0},
			},
			wantResidual: Backlogs{"Math": {{Name: "Geometry", Minutes: 10}}},
		},
		{
			name: "degenerate blocks are skipped",
			blocks: []ScheduleBlock{
				block(0, "10:00", "10:00", "Math"),
				block(0, "11:00", "10:00", "Math"),
			},
			backlogs:     Backlogs{"Math": {{Name: "Algebra", Minutes: 60}}},
			horizon:      1,
			want:         []PlanEntry{},
			wantResidual: Backlogs{"Math": {{Name: "Algebra", Minutes: 60}}},
		},
		{
			name:     "completed topics are never reconsidered",
			blocks:   []ScheduleBlock{block(0, "09:00", "09:20", "Math")},
			backlogs: Backlogs{"Math": {{Name: "Done", Minutes: 0}, {Name: "Negative", Minutes: -5}, {Name: "Algebra", Minutes: 20}}},
			horizon:  1,
			want: []PlanEntry{
				{Date: "2024-01-01", StartTime: "09:00", EndTime: "09:20", Course: "Math", Topic: "Algebra", Allocated: 20, Remaining: 0},
			},
			wantResidual: Backlogs{"Math": {}},
		},
		{
			name: "same day blocks in start order",
			blocks: []ScheduleBlock{
				block(0, "14:00", "14:30", "Math"),
				block(0, "09:00", "09:30", "Math"),
			},
			backlogs: Backlogs{"Math": {{Name: "Algebra", Minutes: 45}}},
			horizon:  1,
			want: []PlanEntry{
				{Date: "2024-01-01", StartTime: "09:00", EndTime: "09:30", Course: "Math", Topic: "Algebra", Allocated: 30, Remaining: 15},
				{Date: "2024-01-01", StartTime: "14:00", EndTime: "14:15", Course: "Math", Topic: "Algebra", Allocated: 15, Remaining: 0},
			},
			wantResidual: Backlogs{"Math": {}},
		},
		{
			name:         "zero horizon",
			blocks:       []ScheduleBlock{block(0, "09:00", "10:00", "Math")},
			backlogs:     Backlogs{"Math": {{Name: "Algebra", Minutes: 60}}},
			want:         []PlanEntry{},
			wantResidual: Backlogs{"Math": {{Name: "Algebra", Minutes: 60}}},
		},
		{
			name:     "anchor on a wednesday",
			blocks:   []ScheduleBlock{block(0, "09:00", "10:00", "Math"), block(2, "09:00", "10:00", "Math")},
			backlogs: Backlogs{"Math": {{Name: "Algebra", Minutes: 90}}},
			horizon:  6, // wed -> mon
			anchor:   monday.AddDate(0, 0, 2),
			want: []PlanEntry{
				{Date: "2024-01-03", StartTime: "09:00", EndTime: "10:00", Course: "Math", Topic: "Algebra", Allocated: 60, Remaining: 30},
				{Date: "2024-01-08", StartTime: "09:00", EndTime: "09:30", Course: "Math", Topic: "Algebra", Allocated: 30, Remaining: 0},
			},
			wantResidual: Backlogs{"Math": {}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anchor := tt.anchor
			if anchor.IsZero() {
				anchor = monday
			}
			got, residual := Generate(tt.blocks, tt.backlogs, anchor, tt.horizon)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Generate() entries =\n%+v\nwant\n%+v", got, tt.want)
			}
			if !reflect.DeepEqual(residual, tt.wantResidual) {
				t.Errorf("Generate() residual = %+v, want %+v", residual, tt.wantResidual)
			}
		})
	}
}

func TestGenerateWeeklyCarryOver(t *testing.T) {
	blocks := []ScheduleBlock{block(0, "09:00", "10:00", "Math")}
	backlogs := Backlogs{"Math": {{Name: "Algebra", Minutes: 100}, {Name: "Geometry", Minutes: 200}}}

	entries, residual := Generate(blocks, backlogs, monday, 14)

	want := []PlanEntry{
		{Date: "2024-01-01", StartTime: "09:00", EndTime: "10:00", Course: "Math", Topic: "Algebra", Allocated: 60, Remaining: 40},
		{Date: "2024-01-08", StartTime: "09:00", EndTime: "09:40", Course: "Math", Topic: "Algebra", Allocated: 40, Remaining: 0},
		{Date: "2024-01-08", StartTime: "09:40", EndTime: "10:00", Course: "Math", Topic: "Geometry", Allocated: 20, Remaining: 180},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("Generate() entries =\n%+v\nwant\n%+v", entries, want)
	}
	for _, e := range entries {
		d, err := time.Parse(DateLayout, e.Date)
		if err != nil {
			t.Fatal(err)
		}
		if d.Weekday() != time.Monday {
			t.Errorf("entry on %s (%s), want mondays only", e.Date, d.Weekday())
		}
	}
	if got := residual.Total("Math"); got != 180 {
		t.Errorf("residual Math = %d minutes, want 180", got)
	}
}

func TestGenerateDoesNotMutateInput(t *testing.T) {
	blocks := []ScheduleBlock{
		block(0, "09:00", "12:00", "Math"),
		block(2, "09:00", "12:00", "Physics"),
	}
	backlogs := Backlogs{
		"Math":    {{Name: "Algebra", Minutes: 60}, {Name: "Geometry", Minutes: 90}},
		"Physics": {{Name: "Optics", Minutes: 30}},
	}
	backup := backlogs.Clone()
	blocksBackup := append([]ScheduleBlock{}, blocks...)

	first, _ := Generate(blocks, backlogs, monday, 14)
	if !reflect.DeepEqual(backlogs, backup) {
		t.Errorf("Generate() mutated backlogs: %+v", backlogs)
	}
	if !reflect.DeepEqual(blocks, blocksBackup) {
		t.Errorf("Generate() mutated blocks: %+v", blocks)
	}

	// same inputs, same plan
	second, _ := Generate(blocks, backlogs, monday, 14)
	if !reflect.DeepEqual(first, second) {
		t.Error("Generate() is not deterministic")
	}
}

// TestGenerateProperties checks the invariants of the output on a busy week.
func TestGenerateProperties(t *testing.T) {
	blocks := []ScheduleBlock{
		block(0, "08:00", "09:15", "Math"),
		block(0, "13:00", "13:45", "Physics"),
		block(0, "09:15", "10:00", "Math"),
		block(1, "16:00", "17:30", "Chemistry"),
		block(2, "07:30", "08:10", "Math"),
		block(3, "18:00", "19:00", "Physics"),
		block(4, "10:00", "10:25", "Chemistry"),
		block(5, "09:00", "12:00", "History"),
		block(6, "20:00", "20:50", "Math"),
	}
	backlogs := Backlogs{
		"Math":      {{Name: "Algebra", Minutes: 95}, {Name: "Geometry", Minutes: 200}, {Name: "Calculus", Minutes: 17}},
		"Physics":   {{Name: "Optics", Minutes: 50}, {Name: "Waves", Minutes: 10}},
		"Chemistry": {{Name: "Bonds", Minutes: 400}},
		"Biology":   {{Name: "Cells", Minutes: 60}},
	}

	for _, horizon := range []int{1, 7, 14, 60} {
		entries, residual := Generate(blocks, backlogs, monday, horizon)

		allocated := make(map[string]int)
		lastRemaining := make(map[string]int)
		for i, e := range entries {
			key := e.Course + "/" + e.Topic
			if e.Allocated <= 0 {
				t.Errorf("horizon %d: entry %d allocates %d minutes", horizon, i, e.Allocated)
			}
			if TimeToMinutes(e.EndTime)-TimeToMinutes(e.StartTime) != e.Allocated {
				t.Errorf("horizon %d: entry %d spans %s-%s for %d minutes", horizon, i, e.StartTime, e.EndTime, e.Allocated)
			}
			if prev, ok := lastRemaining[key]; ok && e.Remaining >= prev {
				t.Errorf("horizon %d: %s remaining %d after %d", horizon, key, e.Remaining, prev)
			}
			if prev, ok := lastRemaining[key]; ok && prev == 0 {
				t.Errorf("horizon %d: %s allocated after completion", horizon, key)
			}
			lastRemaining[key] = e.Remaining
			allocated[key] += e.Allocated

			if i > 0 {
				p := entries[i-1]
				if p.Date > e.Date || (p.Date == e.Date && TimeToMinutes(p.StartTime) > TimeToMinutes(e.StartTime)) {
					t.Errorf("horizon %d: entry %d (%s %s) before entry %d (%s %s)", horizon, i, e.Date, e.StartTime, i-1, p.Date, p.StartTime)
				}
				if p.Date == e.Date && TimeToMinutes(e.StartTime) < TimeToMinutes(p.EndTime) {
					t.Errorf("horizon %d: entries %d and %d overlap on %s", horizon, i-1, i, e.Date)
				}
			}
		}

		for course, topics := range backlogs {
			left := make(map[string]int)
			for _, rt := range residual[course] {
				left[rt.Name] = rt.Minutes
			}
			for _, topic := range topics {
				key := course + "/" + topic.Name
				if allocated[key] > topic.Minutes {
					t.Errorf("horizon %d: %s allocated %d > %d", horizon, key, allocated[key], topic.Minutes)
				}
				if allocated[key]+left[topic.Name] != topic.Minutes {
					t.Errorf("horizon %d: %s allocated %d + residual %d != %d", horizon, key, allocated[key], left[topic.Name], topic.Minutes)
				}
				if _, inResidual := left[topic.Name]; !inResidual && lastRemaining[key] != 0 {
					t.Errorf("horizon %d: %s left the residual before completion", horizon, key)
				}
			}
		}
		if got := residual.Total("Biology"); got != 60 {
			t.Errorf("horizon %d: unscheduled Biology residual = %d, want 60", horizon, got)
		}
	}

	// a long enough horizon exhausts every scheduled course
	_, residual := Generate(blocks, backlogs, monday, 60)
	for _, course := range []string{"Math", "Physics", "Chemistry"} {
		if got := residual.Total(course); got != 0 {
			t.Errorf("60 days: %s residual = %d, want 0", course, got)
		}
	}
}
