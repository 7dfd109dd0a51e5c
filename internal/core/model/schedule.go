package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var dayCodes = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// ErrInvalidSchedule indicates a schedule that violates its invariants.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Schedule restricts a blocking rule to a daily time window and/or weekdays.
// The zero value applies at all times.
type Schedule struct {
	StartTime string
	EndTime   string
	Days      []time.Weekday
}

// IsZero reports whether the schedule places no restriction.
func (schedule Schedule) IsZero() bool {
	return schedule.StartTime == "" && schedule.EndTime == "" && len(schedule.Days) == 0
}

// Validate checks the window ordering and the weekday set.
func (schedule Schedule) Validate() error {
	if (schedule.StartTime == "") != (schedule.EndTime == "") {
		return fmt.Errorf("%w: start and end time must be set together", ErrInvalidSchedule)
	}
	if schedule.StartTime != "" {
		start, err := parseClock(schedule.StartTime)
		if err != nil {
			return err
		}
		end, err := parseClock(schedule.EndTime)
		if err != nil {
			return err
		}
		if start >= end {
			return fmt.Errorf("%w: start time %s is not before end time %s", ErrInvalidSchedule, schedule.StartTime, schedule.EndTime)
		}
	}
	if len(schedule.Days) >= 7 {
		return fmt.Errorf("%w: all seven days must be expressed as no restriction", ErrInvalidSchedule)
	}
	return nil
}

// Active reports whether the schedule applies at the given instant.
func (schedule Schedule) Active(at time.Time) bool {
	if len(schedule.Days) > 0 {
		matched := false
		for _, day := range schedule.Days {
			if day == at.Weekday() {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if schedule.StartTime == "" {
		return true
	}
	start, errStart := parseClock(schedule.StartTime)
	end, errEnd := parseClock(schedule.EndTime)
	if errStart != nil || errEnd != nil {
		return false
	}
	minute := at.Hour()*60 + at.Minute()
	return minute >= start && minute < end
}

// DayCodes returns the wire codes of the restricted weekdays in week order.
func (schedule Schedule) DayCodes() []string {
	if len(schedule.Days) == 0 {
		return nil
	}
	days := append([]time.Weekday(nil), schedule.Days...)
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	codes := make([]string, 0, len(days))
	for _, day := range days {
		codes = append(codes, dayCodes[day])
	}
	return codes
}

// ParseDays converts wire weekday codes. A full week collapses to nil.
func ParseDays(codes []string) ([]time.Weekday, error) {
	seen := make(map[time.Weekday]bool, len(codes))
	days := make([]time.Weekday, 0, len(codes))
	for _, code := range codes {
		day, ok := lookupDay(code)
		if !ok {
			return nil, fmt.Errorf("%w: unknown day %q", ErrInvalidSchedule, code)
		}
		if seen[day] {
			continue
		}
		seen[day] = true
		days = append(days, day)
	}
	if len(days) == 0 || len(days) == 7 {
		return nil, nil
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days, nil
}

func lookupDay(code string) (time.Weekday, bool) {
	for index, candidate := range dayCodes {
		if strings.EqualFold(candidate, code) {
			return time.Weekday(index), true
		}
	}
	return 0, false
}

func parseClock(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidSchedule, value)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
