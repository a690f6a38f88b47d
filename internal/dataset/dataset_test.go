package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeCoordDateFixedCalendars(t *testing.T) {
	cases := []struct {
		calendar string
		value    float64
		want     Date
	}{
		{"noleap", 0, Date{2015, 1, 1}},
		{"noleap", 364, Date{2015, 12, 31}},
		{"noleap", 365, Date{2016, 1, 1}},
		{"noleap", 58, Date{2015, 2, 28}},
		{"noleap", 59, Date{2015, 3, 1}}, // no Feb 29 in a noleap year
		{"366_day", 59, Date{2015, 2, 29}},
		{"360_day", 359, Date{2015, 12, 30}},
		{"360_day", 360, Date{2016, 1, 1}},
		{"standard", 58, Date{2015, 2, 28}},
		{"standard", 366, Date{2016, 1, 2}}, // 2015 is not a leap year
	}
	for _, tc := range cases {
		coord := TimeCoord{Values: []float64{tc.value}, Units: "days since 2015-01-01", Calendar: tc.calendar}
		got, err := coord.Date(0)
		require.NoError(t, err, "calendar %s value %v", tc.calendar, tc.value)
		assert.Equal(t, tc.want, got, "calendar %s value %v", tc.calendar, tc.value)
	}
}

func TestTimeCoordStandardLeapYear(t *testing.T) {
	coord := TimeCoord{Values: []float64{59}, Units: "days since 2016-01-01", Calendar: "standard"}
	got, err := coord.Date(0)
	require.NoError(t, err)
	assert.Equal(t, Date{2016, 2, 29}, got)
}

func TestTimeCoordRejectsUnsupportedUnits(t *testing.T) {
	coord := TimeCoord{Values: []float64{0}, Units: "hours since 2015-01-01", Calendar: "standard"}
	_, err := coord.Date(0)
	assert.ErrorContains(t, err, "unsupported time units")
}

func noleapArray(startYear, nYears int) Array {
	n := nYears * 365
	values := make([]float64, n)
	data := make([]float64, n)
	for i := range values {
		values[i] = float64(i)
		data[i] = float64(i) + 0.5
	}
	return Array{
		Name:  "hus",
		Dims:  []string{"time"},
		Shape: []int{n},
		Time: &TimeCoord{
			Values:   values,
			Units:    "days since 2015-01-01",
			Calendar: "noleap",
		},
		Coords: map[string][]float64{},
		Data:   data,
		Attrs:  map[string]string{},
	}
}

func TestNormalize366FillsMissingDays(t *testing.T) {
	a := noleapArray(2015, 1)
	out, err := Normalize366(a)
	require.NoError(t, err)

	assert.Equal(t, []int{366}, out.Shape)
	assert.Equal(t, "366_day", out.Time.Calendar)
	assert.Equal(t, "days since 2015-01-01", out.Time.Units)

	// Feb 29 (slot 59) is synthetic and must hold the sentinel.
	assert.True(t, math.IsNaN(out.Data[59]))
	// Feb 28 and Mar 1 carry the original neighboring values.
	assert.Equal(t, 58.5, out.Data[58])
	assert.Equal(t, 59.5, out.Data[60])

	nan := 0
	for _, v := range out.Data {
		if math.IsNaN(v) {
			nan++
		}
	}
	assert.Equal(t, 1, nan)
}

func TestNormalize366Idempotent(t *testing.T) {
	once, err := Normalize366(noleapArray(2015, 2))
	require.NoError(t, err)
	twice, err := Normalize366(once)
	require.NoError(t, err)

	assert.Equal(t, once.Shape, twice.Shape)
	assert.Equal(t, once.Time.Units, twice.Time.Units)
	for i := range once.Data {
		if math.IsNaN(once.Data[i]) {
			assert.True(t, math.IsNaN(twice.Data[i]), "slot %d", i)
		} else {
			assert.Equal(t, once.Data[i], twice.Data[i], "slot %d", i)
		}
	}
}

func TestYearsAndPartition(t *testing.T) {
	a := noleapArray(2015, 3) // 2015-2017
	norm, err := Normalize366(a)
	require.NoError(t, err)

	years, err := Years(norm)
	require.NoError(t, err)
	assert.Equal(t, []int{2015, 2016, 2017}, years)

	// Per-year slices must tile the axis with no gaps or overlaps.
	covered := make([]bool, norm.Shape[0])
	for _, yr := range years {
		offset, slice, err := YearSlice(norm, yr)
		require.NoError(t, err)
		assert.Equal(t, DaysPerYear, slice.Shape[0])
		for i := 0; i < slice.Shape[0]; i++ {
			require.False(t, covered[offset+i], "row %d covered twice", offset+i)
			covered[offset+i] = true
		}
	}
	for i, c := range covered {
		assert.True(t, c, "row %d never covered", i)
	}
}

func TestYearSliceOffsetFromCoordinates(t *testing.T) {
	norm, err := Normalize366(noleapArray(2015, 3))
	require.NoError(t, err)

	offset, slice, err := YearSlice(norm, 2016)
	require.NoError(t, err)
	assert.Equal(t, 366, offset)
	assert.Equal(t, float64(366), slice.Time.Values[0])

	_, _, err = YearSlice(norm, 2020)
	assert.ErrorContains(t, err, "outside the time axis")

	_, _, err = YearSlice(noleapArray(2015, 1), 2015)
	assert.ErrorContains(t, err, "not normalized")
}

func TestTPW(t *testing.T) {
	a := Array{
		Name:  "hus",
		Dims:  []string{"time", "plev"},
		Shape: []int{2, 3},
		Coords: map[string][]float64{
			"plev": {1000, 500, 100},
		},
		Data:  []float64{2, 4, 6, 1, math.NaN(), 3},
		Attrs: map[string]string{"long_name": "specific humidity"},
	}

	out, err := TPW(a)
	require.NoError(t, err)
	assert.Equal(t, "tpw", out.Name)
	assert.Equal(t, []string{"time"}, out.Dims)
	assert.Equal(t, []int{2}, out.Shape)
	assert.Equal(t, map[string]string{"units": "mm"}, out.Attrs)

	// Row 0: trapezoid over descending plev = (500-1000)*(2+4)/2 + (100-500)*(4+6)/2 = -3500.
	assert.InDelta(t, 3500.0/Gravity, out.Data[0], 1e-9)
	// Row 1: NaN treated as zero: (500-1000)*(1+0)/2 + (100-500)*(0+3)/2 = -850.
	assert.InDelta(t, 850.0/Gravity, out.Data[1], 1e-9)
}

func TestTPWSchemaOnly(t *testing.T) {
	a := Array{
		Name:   "hus",
		Dims:   []string{"time", "plev", "lat"},
		Shape:  []int{732, 3, 2},
		Coords: map[string][]float64{"plev": {1000, 500, 100}, "lat": {-45, 45}},
	}
	out, err := TPW(a)
	require.NoError(t, err)
	assert.Nil(t, out.Data)
	assert.Equal(t, []string{"time", "lat"}, out.Dims)
	assert.Equal(t, []int{732, 2}, out.Shape)
	assert.Equal(t, "mm", out.Attrs["units"])
}

func TestLookup(t *testing.T) {
	_, err := Lookup("tpw")
	assert.NoError(t, err)
	_, err = Lookup("nope")
	assert.ErrorContains(t, err, "unknown transform")
}
