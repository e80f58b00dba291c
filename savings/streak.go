package savings

import (
	"sort"
	"time"
)

// dayNumber maps t to its calendar day in loc as a day count, so consecutive
// days differ by exactly one regardless of DST.
func dayNumber(t time.Time, loc *time.Location) int64 {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// Streaks returns the current and longest runs of consecutive calendar days
// among dates. The current run only counts when its latest day is today or
// yesterday.
func Streaks(dates []time.Time, today time.Time, loc *time.Location) (current, longest int) {
	if loc == nil {
		loc = time.UTC
	}

	seen := make(map[int64]struct{}, len(dates))
	days := make([]int64, 0, len(dates))
	for _, date := range dates {
		day := dayNumber(date, loc)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	if len(days) == 0 {
		return 0, 0
	}
	sort.Slice(days, func(i, j int) bool { return days[i] > days[j] })

	run := 1
	longest = 1
	for i := 1; i < len(days); i++ {
		if days[i-1]-days[i] == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	todayNum := dayNumber(today, loc)
	if gap := todayNum - days[0]; gap == 0 || gap == 1 {
		current = 1
		for i := 1; i < len(days) && days[i-1]-days[i] == 1; i++ {
			current++
		}
	}

	return current, longest
}
