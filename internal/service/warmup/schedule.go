package warmup

import "sort"

// Ceiling is the daily cap once warmup is disabled or complete.
const Ceiling = 50

const DefaultSchedule = "conservative"

// Schedules are the named ramps, one cap per warmup day.
var Schedules = map[string][]int{
	"conservative": {
		5, 5, 5,
		10, 10, 10, 10,
		15, 15, 15,
		20, 20, 20, 20,
		25, 25,
		30, 30,
		35, 35,
		40, 40,
		45, 45,
		50, 50, 50, 50,
	},
	"moderate": {
		10, 10,
		15, 15,
		20, 20,
		25, 25,
		30, 30,
		35, 35,
		40, 40,
		45, 45,
		50, 50,
	},
	"aggressive": {20, 25, 30, 35, 40, 45, 50, 50, 50, 50},
}

// ScheduleNames lists the known ramps in a stable order.
func ScheduleNames() []string {
	names := make([]string, 0, len(Schedules))
	for n := range Schedules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func schedule(name string) []int {
	if s, ok := Schedules[name]; ok {
		return s
	}
	return Schedules[DefaultSchedule]
}

// LimitForDay returns the cap on a 1-based warmup day. Days past the end of
// the ramp hold its last value.
func LimitForDay(name string, day int) int {
	s := schedule(name)
	if day < 1 {
		day = 1
	}
	return s[min(day-1, len(s)-1)]
}
