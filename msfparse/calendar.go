/*
	Copyright (c) 2019-2020 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	calendar.go: Gregorian calendar arithmetic for the MSF time decoder.
*/

package msfparse

// BASE_YEAR is the first year of the 400-year window the two-digit
// broadcast year is pinned into.
const BASE_YEAR = 1900

// Weekday names indexed by BrokenDownTime.Wday (0 = Sunday).
var Weekday = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// BrokenDownTime is the decoded civil time. Year is the full 4-digit year
// except inside CenturyOffset, where it is still the two-digit broadcast
// value. Mon is 1-12, Mday 1-31, Wday 0-6 with 0 = Sunday, Hour 0-23,
// Min 0-59. Isdst is -1 when unknown, 0 in winter and 1 in summer.
type BrokenDownTime struct {
	Year  int
	Mon   int
	Mday  int
	Wday  int
	Hour  int
	Min   int
	Isdst int
}

// Sakamoto's method, 0 = Sunday.
func dayOfWeek(year, mon, mday int) int {
	t := [12]int{0, 3, 2, 5, 0, 3, 5, 1, 4, 6, 2, 4}
	if mon < 3 {
		year--
	}
	return (year + year/4 - year/100 + year/400 + t[mon-1] + mday) % 7
}

// LastDay returns the number of days of the month of t.
func LastDay(t BrokenDownTime) int {
	switch t.Mon {
	case 2:
		if (t.Year%4 == 0 && t.Year%100 != 0) || t.Year%400 == 0 {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// CenturyOffset returns how many centuries above BASE_YEAR the full year
// lies (0-3), given the two-digit year, month, day and weekday in t. It
// returns -1 if no century yields a matching weekday, which means at least
// one of the date values is wrong.
func CenturyOffset(t BrokenDownTime) int {
	if t.Mon < 1 || t.Mon > 12 || t.Mday < 1 || t.Mday > 31 ||
		t.Wday < 0 || t.Wday > 6 {
		return -1
	}
	for c := 0; c < 4; c++ {
		if dayOfWeek(BASE_YEAR+100*c+t.Year, t.Mon, t.Mday) == t.Wday {
			return c
		}
	}
	return -1
}

// UK daylight saving time switches at 01:00 UTC on the last Sunday of
// March and October.
func isLastSunday(t BrokenDownTime) bool {
	return t.Wday == 0 && t.Mday > LastDay(t)-7
}

// AddMinute advances t by one minute, carrying through hour, day, month
// and year. If dstAnnounce is set and the wrap lands on a DST boundary the
// hour and DST flag are adjusted as well.
func AddMinute(t BrokenDownTime, dstAnnounce bool) BrokenDownTime {
	t.Min++
	if t.Min > 59 {
		t.Min = 0
		t.Hour++
		if dstAnnounce {
			if t.Isdst == 0 && t.Hour == 1 && t.Mon == 3 && isLastSunday(t) {
				t.Hour = 2
				t.Isdst = 1
			} else if t.Isdst == 1 && t.Hour == 2 && t.Mon == 10 && isLastSunday(t) {
				t.Hour = 1
				t.Isdst = 0
			}
		}
		if t.Hour > 23 {
			t.Hour = 0
			t.Wday = (t.Wday + 1) % 7
			t.Mday++
			if t.Mday > LastDay(t) {
				t.Mday = 1
				t.Mon++
				if t.Mon > 12 {
					t.Mon = 1
					t.Year++
					if t.Year == BASE_YEAR+400 {
						t.Year = BASE_YEAR
					}
				}
			}
		}
	}
	return t
}

// SubtractMinute is the inverse of AddMinute.
func SubtractMinute(t BrokenDownTime, dstAnnounce bool) BrokenDownTime {
	t.Min--
	if t.Min < 0 {
		t.Min = 59
		t.Hour--
		if dstAnnounce {
			if t.Isdst == 1 && t.Hour == 1 && t.Mon == 3 && isLastSunday(t) {
				t.Hour = 0
				t.Isdst = 0
			} else if t.Isdst == 0 && t.Hour == 0 && t.Mon == 10 && isLastSunday(t) {
				t.Hour = 1
				t.Isdst = 1
			}
		}
		if t.Hour < 0 {
			t.Hour = 23
			t.Wday = (t.Wday + 6) % 7
			t.Mday--
			if t.Mday == 0 {
				t.Mon--
				if t.Mon == 0 {
					t.Mon = 12
					t.Year--
					if t.Year < BASE_YEAR {
						t.Year = BASE_YEAR + 399
					}
				}
				t.Mday = LastDay(t)
			}
		}
	}
	return t
}
