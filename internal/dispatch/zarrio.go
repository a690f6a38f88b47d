package dispatch

import (
	"context"
	"fmt"
	"math"

	"cmip6-pipeline/internal/dataset"
	"cmip6-pipeline/internal/zarr"
)

// gzipLevel is the chunk compression level for output stores.
const gzipLevel = 4

// readVariable lifts one variable out of a zarr group into a labeled
// array. Coordinates are always read eagerly (they are tiny); the
// payload is read only when lazy is false, so shell creation never
// touches the data chunks.
func readVariable(ctx context.Context, g *zarr.Group, name string, lazy bool) (dataset.Array, error) {
	arr, ok := g.Array(name)
	if !ok {
		return dataset.Array{}, fmt.Errorf("store has no variable %q (arrays: %v)", name, g.ArrayNames())
	}

	dims := arr.Attrs().DimNames()
	if len(dims) != len(arr.Meta().Shape) {
		return dataset.Array{}, fmt.Errorf("variable %q names %d dimensions for shape %v", name, len(dims), arr.Meta().Shape)
	}

	a := dataset.Array{
		Name:   name,
		Dims:   append([]string(nil), dims...),
		Shape:  append([]int(nil), arr.Meta().Shape...),
		Coords: make(map[string][]float64),
		Attrs:  make(map[string]string),
	}
	if units := arr.Attrs().StringAttr("units"); units != "" {
		a.Attrs["units"] = units
	}

	for _, dim := range dims {
		coord, ok := g.Array(dim)
		if !ok {
			continue
		}
		values, err := coord.ReadAll(ctx)
		if err != nil {
			return dataset.Array{}, fmt.Errorf("failed to read coordinate %q: %w", dim, err)
		}
		if dim == "time" {
			a.Time = &dataset.TimeCoord{
				Values:   values,
				Units:    coord.Attrs().StringAttr("units"),
				Calendar: coord.Attrs().StringAttr("calendar"),
			}
		} else {
			a.Coords[dim] = values
		}
	}

	if !lazy {
		data, err := arr.ReadAll(ctx)
		if err != nil {
			return dataset.Array{}, fmt.Errorf("failed to read variable %q: %w", name, err)
		}
		a.Data = data
	}
	if err := a.Validate(); err != nil {
		return dataset.Array{}, err
	}
	return a, nil
}

// writeShell creates the output group for a normalized, transformed
// array: coordinate arrays written in full, the data variable as
// metadata only with one chunk per year, so per-year jobs can fill
// disjoint regions without coordination.
func writeShell(ctx context.Context, store zarr.Store, a dataset.Array, attrs zarr.Attrs) error {
	if len(a.Dims) == 0 || a.Dims[0] != "time" || a.Time == nil {
		return fmt.Errorf("output array %q must lead with a time dimension", a.Name)
	}
	if a.Shape[0]%dataset.DaysPerYear != 0 {
		return fmt.Errorf("output time axis of %q has %d rows, not a multiple of %d", a.Name, a.Shape[0], dataset.DaysPerYear)
	}

	g, err := zarr.CreateGroup(ctx, store, attrs)
	if err != nil {
		return err
	}

	timeArr, err := g.Create(ctx, "time", coordMeta(a.Shape[0], dataset.DaysPerYear), zarr.Attrs{
		zarr.DimsAttr: []string{"time"},
		"units":       a.Time.Units,
		"calendar":    a.Time.Calendar,
	})
	if err != nil {
		return err
	}
	if err := timeArr.Write(ctx, a.Time.Values); err != nil {
		return fmt.Errorf("failed to write time coordinate: %w", err)
	}

	for _, dim := range a.Dims[1:] {
		values, ok := a.Coords[dim]
		if !ok {
			continue
		}
		coordArr, err := g.Create(ctx, dim, coordMeta(len(values), len(values)), zarr.Attrs{
			zarr.DimsAttr: []string{dim},
		})
		if err != nil {
			return err
		}
		if err := coordArr.Write(ctx, values); err != nil {
			return fmt.Errorf("failed to write coordinate %q: %w", dim, err)
		}
	}

	dataAttrs := zarr.Attrs{zarr.DimsAttr: a.Dims}
	for k, v := range a.Attrs {
		dataAttrs[k] = v
	}
	dataMeta := zarr.ArrayMeta{
		Shape:      append([]int(nil), a.Shape...),
		Chunks:     append([]int{dataset.DaysPerYear}, a.Shape[1:]...),
		Dtype:      "<f8",
		Compressor: &zarr.Compressor{ID: "gzip", Level: gzipLevel},
		FillValue:  math.NaN(),
		Order:      "C",
		ZarrFormat: 2,
	}
	if _, err := g.Create(ctx, a.Name, dataMeta, dataAttrs); err != nil {
		return err
	}

	return g.Consolidate(ctx)
}

func coordMeta(length, chunk int) zarr.ArrayMeta {
	return zarr.ArrayMeta{
		Shape:      []int{length},
		Chunks:     []int{chunk},
		Dtype:      "<f8",
		Compressor: &zarr.Compressor{ID: "gzip", Level: gzipLevel},
		FillValue:  math.NaN(),
		Order:      "C",
		ZarrFormat: 2,
	}
}

// dataArray finds a group's single data variable: the one array that is
// not a coordinate for its own dimension.
func dataArray(g *zarr.Group) (*zarr.Array, error) {
	var found *zarr.Array
	for _, name := range g.ArrayNames() {
		arr, _ := g.Array(name)
		dims := arr.Attrs().DimNames()
		if len(dims) == 1 && dims[0] == name {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("store holds more than one data variable (%q, %q)", found.Name(), name)
		}
		found = arr
	}
	if found == nil {
		return nil, fmt.Errorf("store holds no data variable")
	}
	return found, nil
}
