// Package dataset holds the in-memory form of a single climate variable:
// a dense labeled array plus its coordinates, with the calendar handling
// and transforms the batch pipeline applies per year.
package dataset

import (
	"fmt"
	"math"
)

// Array is a labeled n-dimensional array. Data is row-major over Shape;
// a nil Data marks a schema-only (lazy) array, which every operation
// must propagate so output shells can be created without reading the
// input payload.
type Array struct {
	Name   string
	Dims   []string
	Shape  []int
	Coords map[string][]float64
	Time   *TimeCoord
	Data   []float64
	Attrs  map[string]string
}

// Size is the element count implied by Shape.
func (a Array) Size() int {
	n := 1
	for _, s := range a.Shape {
		n *= s
	}
	return n
}

// DimIndex finds a dimension by name.
func (a Array) DimIndex(name string) (int, bool) {
	for i, d := range a.Dims {
		if d == name {
			return i, true
		}
	}
	return 0, false
}

// Validate checks internal consistency.
func (a Array) Validate() error {
	if len(a.Dims) != len(a.Shape) {
		return fmt.Errorf("array %q has %d dims but %d shape entries", a.Name, len(a.Dims), len(a.Shape))
	}
	if a.Data != nil && len(a.Data) != a.Size() {
		return fmt.Errorf("array %q has %d elements, shape %v wants %d", a.Name, len(a.Data), a.Shape, a.Size())
	}
	for _, d := range a.Dims {
		if c, ok := a.Coords[d]; ok {
			if i, _ := a.DimIndex(d); len(c) != a.Shape[i] {
				return fmt.Errorf("coordinate %q has %d values, dim wants %d", d, len(c), a.Shape[i])
			}
		}
	}
	return nil
}

func (a Array) clone() Array {
	out := a
	out.Dims = append([]string(nil), a.Dims...)
	out.Shape = append([]int(nil), a.Shape...)
	out.Coords = make(map[string][]float64, len(a.Coords))
	for k, v := range a.Coords {
		out.Coords[k] = append([]float64(nil), v...)
	}
	out.Attrs = make(map[string]string, len(a.Attrs))
	for k, v := range a.Attrs {
		out.Attrs[k] = v
	}
	if a.Data != nil {
		out.Data = append([]float64(nil), a.Data...)
	}
	if a.Time != nil {
		tc := a.Time.clone()
		out.Time = &tc
	}
	return out
}

// FillNA returns a copy with NaN elements replaced by v. Schema-only
// arrays pass through untouched.
func (a Array) FillNA(v float64) Array {
	out := a.clone()
	for i, x := range out.Data {
		if math.IsNaN(x) {
			out.Data[i] = v
		}
	}
	return out
}

// Scale returns a copy with every element multiplied by f.
func (a Array) Scale(f float64) Array {
	out := a.clone()
	for i := range out.Data {
		out.Data[i] *= f
	}
	return out
}

// Integrate reduces the named dimension by trapezoidal integration over
// its coordinate values, mirroring xarray's integrate. The dimension and
// its coordinate disappear from the result; on a schema-only array the
// reduction applies to the shape alone.
func (a Array) Integrate(dim string) (Array, error) {
	d, ok := a.DimIndex(dim)
	if !ok {
		return Array{}, fmt.Errorf("array %q has no dimension %q", a.Name, dim)
	}
	coord, ok := a.Coords[dim]
	if !ok {
		return Array{}, fmt.Errorf("dimension %q has no coordinate to integrate over", dim)
	}
	n := a.Shape[d]
	if n < 2 {
		return Array{}, fmt.Errorf("dimension %q has %d points, need at least 2", dim, n)
	}

	out := a.clone()
	out.Dims = append(out.Dims[:d], out.Dims[d+1:]...)
	out.Shape = append(out.Shape[:d], out.Shape[d+1:]...)
	delete(out.Coords, dim)

	if a.Data == nil {
		return out, nil
	}

	pre := 1
	for _, s := range a.Shape[:d] {
		pre *= s
	}
	post := 1
	for _, s := range a.Shape[d+1:] {
		post *= s
	}

	result := make([]float64, pre*post)
	for p := 0; p < pre; p++ {
		for q := 0; q < post; q++ {
			var acc float64
			for k := 0; k < n-1; k++ {
				lo := a.Data[(p*n+k)*post+q]
				hi := a.Data[(p*n+k+1)*post+q]
				acc += (coord[k+1] - coord[k]) * (lo + hi) / 2
			}
			result[p*post+q] = acc
		}
	}
	out.Data = result
	return out, nil
}

// SliceDim0 returns rows [start, end) along the first dimension.
func (a Array) SliceDim0(start, end int) (Array, error) {
	if len(a.Shape) == 0 {
		return Array{}, fmt.Errorf("array %q has no dimensions", a.Name)
	}
	if start < 0 || end > a.Shape[0] || start >= end {
		return Array{}, fmt.Errorf("slice [%d:%d) out of bounds for dim %q of length %d", start, end, a.Dims[0], a.Shape[0])
	}

	out := a.clone()
	out.Shape[0] = end - start
	if c, ok := out.Coords[a.Dims[0]]; ok {
		out.Coords[a.Dims[0]] = c[start:end]
	}
	if out.Time != nil && a.Dims[0] == "time" {
		out.Time.Values = out.Time.Values[start:end]
	}
	if a.Data != nil {
		rowSize := a.Size() / a.Shape[0]
		out.Data = out.Data[start*rowSize : end*rowSize]
	}
	return out, nil
}
