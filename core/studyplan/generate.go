package studyplan

import "time"

// Generate projects the weekly `blocks` onto `horizonDays` calendar days starting at `anchor` and
// greedily fills each block with the topics of its course, head first, carrying partially studied
// topics over to the next block of that course.
//
// `backlogs` is never mutated: the run consumes a private copy which is returned as `residual`.
// Blocks are trusted not to overlap (see HasOverlap). Degenerate blocks, courses without backlog and
// exhausted backlogs produce no entries; time left in a block once its backlog is exhausted is not allocated.
func Generate(blocks []ScheduleBlock, backlogs Backlogs, anchor time.Time, horizonDays int) (entries []PlanEntry, residual Backlogs) {
	entries = []PlanEntry{}
	residual = pending(backlogs)
	days := byDay(blocks)
	anchor = Midnight(anchor)

	for offset := 0; offset < horizonDays; offset++ {
		date := anchor.AddDate(0, 0, offset)
		dateStr := date.Format(DateLayout)

		for _, block := range days[Weekday(date)] {
			slot := block.Duration()
			if slot <= 0 {
				continue
			}
			blockStart := block.start()
			left := slot
			queue := residual[block.Course]

			for left > 0 && len(queue) > 0 {
				topic := &queue[0]
				allocate := min(left, topic.Minutes)
				entryStart := blockStart + (slot - left)

				topic.Minutes -= allocate
				left -= allocate
				entries = append(entries, PlanEntry{
					Date:      dateStr,
					StartTime: MinutesToTime(entryStart),
					EndTime:   MinutesToTime(entryStart + allocate),
					Course:    block.Course,
					Topic:     topic.Name,
					Allocated: allocate,
					Remaining: topic.Minutes,
				})

				if topic.Minutes <= 0 {
					queue = queue[1:]
				}
			}
			if _, ok := residual[block.Course]; ok {
				residual[block.Course] = queue
			}
		}
	}
	return entries, residual
}

// pending deep copies `bl`, dropping completed topics (minutes <= 0) which are never reconsidered.
func pending(bl Backlogs) Backlogs {
	out := make(Backlogs, len(bl))
	for course, topics := range bl {
		queue := make([]Topic, 0, len(topics))
		for _, t := range topics {
			if t.Minutes > 0 {
				queue = append(queue, t)
			}
		}
		out[course] = queue
	}
	return out
}
