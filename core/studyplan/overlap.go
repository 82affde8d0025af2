package studyplan

import "sort"

// HasOverlap reports whether two blocks of the same day have overlapping [start, end) ranges.
// Blocks that merely touch (one ends when the next starts) do not overlap.
func HasOverlap(blocks []ScheduleBlock) bool {
	return len(Overlaps(blocks)) > 0
}

// Overlaps returns the pairs of same-day blocks that overlap, each pair ordered by start time.
// Each block is paired with the latest-ending block started before it, so a block
// nested in a longer one is reported even when it does not overlap its direct predecessor.
func Overlaps(blocks []ScheduleBlock) [][2]ScheduleBlock {
	var pairs [][2]ScheduleBlock
	for _, day := range byDay(blocks) {
		if len(day) == 0 {
			continue
		}
		latest := day[0]
		for _, next := range day[1:] {
			if next.start() < latest.end() {
				pairs = append(pairs, [2]ScheduleBlock{latest, next})
			}
			if next.end() > latest.end() {
				latest = next
			}
		}
	}
	return pairs
}

// byDay groups blocks per day of week, each day sorted by start time.
// Blocks with the same start keep their input order.
func byDay(blocks []ScheduleBlock) [7][]ScheduleBlock {
	var days [7][]ScheduleBlock
	for _, b := range blocks {
		if b.DayOfWeek < 0 || b.DayOfWeek > 6 {
			continue
		}
		days[b.DayOfWeek] = append(days[b.DayOfWeek], b)
	}
	for _, day := range days {
		sort.SliceStable(day, func(i, j int) bool { return day[i].start() < day[j].start() })
	}
	return days
}
