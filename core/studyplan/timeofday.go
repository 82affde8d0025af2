package studyplan

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format of plan entries.
const DateLayout = "2006-01-02"

// TimeToMinutes converts a "HH:MM" wall-clock time to minutes since midnight.
// The format is not checked here (see the hhmm validator): malformed fields count as 0.
func TimeToMinutes(t string) int {
	hh, mm, _ := strings.Cut(t, ":")
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	return h*60 + m
}

// MinutesToTime is the inverse of TimeToMinutes. Hours are not wrapped modulo 24.
func MinutesToTime(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Weekday returns the day index of `d` with Monday=0 ... Sunday=6.
func Weekday(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}

// Midnight drops the clock part of `d`, keeping its calendar date (as UTC).
func Midnight(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the Monday of the week `d` belongs to.
func WeekStart(d time.Time) time.Time {
	day := Midnight(d)
	return day.AddDate(0, 0, -Weekday(day))
}
