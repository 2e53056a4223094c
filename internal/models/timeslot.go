package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeSlot is a reservable interval in a trainer's weekly schedule.
// StartTime/EndTime are wall-clock "HH:MM" strings, minute granularity.
type TimeSlot struct {
	ID        string    `json:"id" yaml:"id"`
	TrainerID string    `json:"trainer_id" yaml:"trainer_id"`
	Day       string    `json:"day" yaml:"day"`
	StartTime string    `json:"start_time" yaml:"start_time"`
	EndTime   string    `json:"end_time" yaml:"end_time"`
	IsBooked  bool      `json:"is_booked" yaml:"is_booked"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Weekdays are the five bookable day labels, in schedule order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// ValidWeekday reports whether day is one of the five bookable labels.
func ValidWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// ParseClock converts an "HH:MM" wall-clock string to minutes since midnight.
// Hours may drop the leading zero, minutes are always two digits, and nothing
// may follow them.
func ParseClock(value string) (int, error) {
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || len(hh) < 1 || len(hh) > 2 || len(mm) != 2 || !digits(hh) || !digits(mm) {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", value)
	}
	return h*60 + m, nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Overlaps reports whether two windows on the same day collide: a boundary of
// one falls strictly inside the other, or one properly contains the other.
// A shared boundary is not a collision, and neither is an exactly identical
// window, so a freed window can be republished as-is.
func Overlaps(start1, end1, start2, end2 int) bool {
	if start1 == start2 && end1 == end2 {
		return false
	}
	return start1 < end2 && start2 < end1
}
