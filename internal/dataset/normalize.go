package dataset

import (
	"fmt"
	"math"
	"sort"
)

// DaysPerYear is the fixed year length every dataset is normalized to
// before per-year chunking, so leap and non-leap years occupy identical
// extents.
const DaysPerYear = 366

// Normalize366 re-indexes the array onto a 366-day-per-year time axis
// covering every year the input touches. Days absent from the source
// calendar (or from the data) hold NaN. Normalizing an already-366-day
// array is a no-op on the data values.
func Normalize366(a Array) (Array, error) {
	if len(a.Dims) == 0 || a.Dims[0] != "time" {
		return Array{}, fmt.Errorf("array %q must have time as its first dimension, got %v", a.Name, a.Dims)
	}
	if a.Time == nil {
		return Array{}, fmt.Errorf("array %q has no time coordinate", a.Name)
	}
	if len(a.Time.Values) != a.Shape[0] {
		return Array{}, fmt.Errorf("time coordinate has %d values, dim wants %d", len(a.Time.Values), a.Shape[0])
	}
	if len(a.Time.Values) == 0 {
		return Array{}, fmt.Errorf("array %q has an empty time axis", a.Name)
	}

	dates, err := a.Time.Dates()
	if err != nil {
		return Array{}, err
	}

	minYear, maxYear := dates[0].Year, dates[0].Year
	for _, d := range dates {
		if d.Year < minYear {
			minYear = d.Year
		}
		if d.Year > maxYear {
			maxYear = d.Year
		}
	}
	years := maxYear - minYear + 1
	newLen := years * DaysPerYear

	out := a.clone()
	out.Shape[0] = newLen
	delete(out.Coords, "time")

	values := make([]float64, newLen)
	for i := range values {
		values[i] = float64(i)
	}
	out.Time = &TimeCoord{
		Values:   values,
		Units:    fmt.Sprintf("days since %04d-01-01", minYear),
		Calendar: "366_day",
	}

	if a.Data != nil {
		rowSize := a.Size() / a.Shape[0]
		data := make([]float64, newLen*rowSize)
		for i := range data {
			data[i] = math.NaN()
		}
		for i, d := range dates {
			doy, ok := leapDayOfYear(d)
			if !ok {
				continue // date has no slot in the 366-day calendar
			}
			slot := (d.Year-minYear)*DaysPerYear + doy
			copy(data[slot*rowSize:(slot+1)*rowSize], a.Data[i*rowSize:(i+1)*rowSize])
		}
		out.Data = data
	}
	return out, nil
}

// Years lists the distinct calendar years on the time axis, ascending.
func Years(a Array) ([]int, error) {
	if a.Time == nil {
		return nil, fmt.Errorf("array %q has no time coordinate", a.Name)
	}
	dates, err := a.Time.Dates()
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	var years []int
	for _, d := range dates {
		if !seen[d.Year] {
			seen[d.Year] = true
			years = append(years, d.Year)
		}
	}
	sort.Ints(years)
	return years, nil
}

// YearSlice cuts one calendar year out of a normalized array and returns
// its row offset on the full time axis. The offset comes from the
// slice's own time coordinates, so region targeting needs no external
// bookkeeping.
func YearSlice(a Array, year int) (int, Array, error) {
	if a.Time == nil {
		return 0, Array{}, fmt.Errorf("array %q has no time coordinate", a.Name)
	}
	cal, err := canonicalCalendar(a.Time.Calendar)
	if err != nil {
		return 0, Array{}, err
	}
	epoch, err := parseEpoch(a.Time.Units)
	if err != nil {
		return 0, Array{}, err
	}
	if cal != "366_day" || epoch.Month != 1 || epoch.Day != 1 {
		return 0, Array{}, fmt.Errorf("array %q is not normalized to 366-day years (calendar %q, epoch %04d-%02d-%02d)",
			a.Name, a.Time.Calendar, epoch.Year, epoch.Month, epoch.Day)
	}

	offset := (year - epoch.Year) * DaysPerYear
	if offset < 0 || offset+DaysPerYear > a.Shape[0] {
		return 0, Array{}, fmt.Errorf("year %d is outside the time axis of %q", year, a.Name)
	}
	sliced, err := a.SliceDim0(offset, offset+DaysPerYear)
	if err != nil {
		return 0, Array{}, err
	}
	return offset, sliced, nil
}
