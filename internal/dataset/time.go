package dataset

import (
	"fmt"
	"strings"
	"time"
)

// TimeCoord is a CF-convention time coordinate: numeric offsets from an
// epoch encoded in Units, interpreted under a named model calendar.
type TimeCoord struct {
	Values   []float64
	Units    string // "days since YYYY-MM-DD[ hh:mm:ss]"
	Calendar string // "noleap", "360_day", "366_day", "standard", ...
}

// Date is a calendar date in the coordinate's own calendar.
type Date struct {
	Year, Month, Day int
}

func (tc TimeCoord) clone() TimeCoord {
	out := tc
	out.Values = append([]float64(nil), tc.Values...)
	return out
}

var monthLengths = map[string][12]int{
	"365_day": {31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31},
	"366_day": {31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31},
	"360_day": {30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30},
}

// canonicalCalendar folds CF calendar aliases. Empty means the standard
// (proleptic Gregorian) calendar.
func canonicalCalendar(cal string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(cal)) {
	case "noleap", "365_day":
		return "365_day", nil
	case "all_leap", "allleap", "366_day":
		return "366_day", nil
	case "360_day":
		return "360_day", nil
	case "", "standard", "gregorian", "proleptic_gregorian":
		return "standard", nil
	default:
		return "", fmt.Errorf("unsupported calendar %q", cal)
	}
}

// parseEpoch extracts the reference date from "days since ..." units.
// Only day-based units are supported; CMIP6 daily output uses them.
func parseEpoch(units string) (Date, error) {
	fields := strings.Fields(units)
	if len(fields) < 3 || !strings.EqualFold(fields[0], "days") || !strings.EqualFold(fields[1], "since") {
		return Date{}, fmt.Errorf("unsupported time units %q, want \"days since <date>\"", units)
	}
	var d Date
	if _, err := fmt.Sscanf(fields[2], "%d-%d-%d", &d.Year, &d.Month, &d.Day); err != nil {
		return Date{}, fmt.Errorf("unparseable epoch in time units %q: %w", units, err)
	}
	if d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return Date{}, fmt.Errorf("invalid epoch date in time units %q", units)
	}
	return d, nil
}

// Date resolves the i-th coordinate value to a calendar date. Fractional
// day offsets are floored to the containing day.
func (tc TimeCoord) Date(i int) (Date, error) {
	epoch, err := parseEpoch(tc.Units)
	if err != nil {
		return Date{}, err
	}
	cal, err := canonicalCalendar(tc.Calendar)
	if err != nil {
		return Date{}, err
	}

	offset := int(tc.Values[i])
	if tc.Values[i] < 0 && tc.Values[i] != float64(offset) {
		offset--
	}

	if cal == "standard" {
		t := time.Date(epoch.Year, time.Month(epoch.Month), epoch.Day, 0, 0, 0, 0, time.UTC).
			AddDate(0, 0, offset)
		return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
	}
	return fixedCalendarDate(cal, epoch, offset), nil
}

// Dates resolves every coordinate value.
func (tc TimeCoord) Dates() ([]Date, error) {
	out := make([]Date, len(tc.Values))
	for i := range tc.Values {
		d, err := tc.Date(i)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// fixedCalendarDate advances a fixed-length calendar by offset days.
func fixedCalendarDate(cal string, epoch Date, offset int) Date {
	lengths := monthLengths[cal]
	yearLen := 0
	for _, m := range lengths {
		yearLen += m
	}

	doy := offset
	for m := 0; m < epoch.Month-1; m++ {
		doy += lengths[m]
	}
	doy += epoch.Day - 1

	year := epoch.Year
	for doy >= yearLen {
		doy -= yearLen
		year++
	}
	for doy < 0 {
		doy += yearLen
		year--
	}

	month := 0
	for doy >= lengths[month] {
		doy -= lengths[month]
		month++
	}
	return Date{Year: year, Month: month + 1, Day: doy + 1}
}

// leapDayOfYear maps a date onto the 366-day calendar's zero-based day
// index. ok is false when the date has no slot there (only day 30 of a
// 360-day February qualifies).
func leapDayOfYear(d Date) (int, bool) {
	lengths := monthLengths["366_day"]
	if d.Day > lengths[d.Month-1] {
		return 0, false
	}
	doy := d.Day - 1
	for m := 0; m < d.Month-1; m++ {
		doy += lengths[m]
	}
	return doy, true
}
