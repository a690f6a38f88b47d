package zarr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Array is a handle to one Zarr array inside a store. It holds metadata
// only; chunk data moves through Read/Write calls.
type Array struct {
	store Store
	name  string
	meta  ArrayMeta
	attrs Attrs
}

func (a *Array) Name() string    { return a.name }
func (a *Array) Meta() ArrayMeta { return a.meta }
func (a *Array) Attrs() Attrs    { return a.attrs }

// CreateArray writes .zarray and .zattrs for a new array without writing
// any chunks. An existing array at the same name is overwritten and its
// stale chunks removed.
func CreateArray(ctx context.Context, store Store, name string, meta ArrayMeta, attrs Attrs) (*Array, error) {
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metadata for %q: %w", name, err)
	}

	stale, err := store.List(ctx, name+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list existing keys under %q: %w", name, err)
	}
	for _, key := range stale {
		if err := store.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("failed to clear stale key %q: %w", key, err)
		}
	}

	metaDoc, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal .zarray for %q: %w", name, err)
	}
	if err := store.Put(ctx, name+"/.zarray", metaDoc); err != nil {
		return nil, err
	}
	if attrs == nil {
		attrs = Attrs{}
	}
	attrsDoc, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal .zattrs for %q: %w", name, err)
	}
	if err := store.Put(ctx, name+"/.zattrs", attrsDoc); err != nil {
		return nil, err
	}

	return &Array{store: store, name: name, meta: meta, attrs: attrs}, nil
}

// OpenArray reads the metadata of an existing array.
func OpenArray(ctx context.Context, store Store, name string) (*Array, error) {
	metaDoc, err := store.Get(ctx, name+"/.zarray")
	if err != nil {
		return nil, fmt.Errorf("failed to read .zarray for %q: %w", name, err)
	}
	var meta ArrayMeta
	if err := json.Unmarshal(metaDoc, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse .zarray for %q: %w", name, err)
	}
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("array %q: %w", name, err)
	}

	attrs := Attrs{}
	attrsDoc, err := store.Get(ctx, name+"/.zattrs")
	if err == nil {
		if err := json.Unmarshal(attrsDoc, &attrs); err != nil {
			return nil, fmt.Errorf("failed to parse .zattrs for %q: %w", name, err)
		}
	} else if !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}

	return &Array{store: store, name: name, meta: meta, attrs: attrs}, nil
}

// chunkKey builds "name/i.j.k" for a chunk index vector.
func (a *Array) chunkKey(ci []int) string {
	parts := make([]string, len(ci))
	for i, c := range ci {
		parts[i] = strconv.Itoa(c)
	}
	return a.name + "/" + strings.Join(parts, ".")
}

// ReadAll reads the full array into a dense row-major slice. Missing
// chunks yield the fill value.
func (a *Array) ReadAll(ctx context.Context) ([]float64, error) {
	start := make([]int, len(a.meta.Shape))
	return a.ReadRegion(ctx, start, a.meta.Shape)
}

// ReadRegion reads the dense sub-array [start, start+extent) per dim.
func (a *Array) ReadRegion(ctx context.Context, start, extent []int) ([]float64, error) {
	if err := a.checkRegion(start, extent); err != nil {
		return nil, err
	}

	size := 1
	for _, e := range extent {
		size *= e
	}
	region := make([]float64, size)
	for i := range region {
		region[i] = a.meta.FillValue
	}

	chunkElems := 1
	for _, c := range a.meta.Chunks {
		chunkElems *= c
	}

	for _, ci := range a.chunksIn(start, extent) {
		data, err := a.store.Get(ctx, a.chunkKey(ci))
		if errors.Is(err, ErrKeyNotFound) {
			continue // shell region, stays at fill value
		}
		if err != nil {
			return nil, err
		}
		values, err := decodeChunk(a.meta, data, chunkElems)
		if err != nil {
			return nil, fmt.Errorf("chunk %q: %w", a.chunkKey(ci), err)
		}
		copyRegion(a.meta, region, start, extent, values, ci, false)
	}
	return region, nil
}

// Write stores the full array.
func (a *Array) Write(ctx context.Context, data []float64) error {
	start := make([]int, len(a.meta.Shape))
	return a.WriteRegion(ctx, start, a.meta.Shape, data)
}

// WriteRegion writes the dense sub-array [start, start+extent). The
// region must cover whole chunks (or run to the array edge) along every
// dimension: concurrent writers target disjoint regions, so a partial
// chunk would require a read-modify-write racing with its neighbor.
func (a *Array) WriteRegion(ctx context.Context, start, extent []int, data []float64) error {
	if err := a.checkRegion(start, extent); err != nil {
		return err
	}
	size := 1
	for _, e := range extent {
		size *= e
	}
	if len(data) != size {
		return fmt.Errorf("region %v/%v holds %d elements, got %d", start, extent, size, len(data))
	}
	for d := range start {
		if start[d]%a.meta.Chunks[d] != 0 {
			return fmt.Errorf("region start %v is not chunk-aligned at dim %d (chunks %v)", start, d, a.meta.Chunks)
		}
		end := start[d] + extent[d]
		if end%a.meta.Chunks[d] != 0 && end != a.meta.Shape[d] {
			return fmt.Errorf("region end %v is not chunk-aligned at dim %d (chunks %v)", end, d, a.meta.Chunks)
		}
	}

	chunkElems := 1
	for _, c := range a.meta.Chunks {
		chunkElems *= c
	}

	for _, ci := range a.chunksIn(start, extent) {
		chunk := make([]float64, chunkElems)
		for i := range chunk {
			chunk[i] = a.meta.FillValue
		}
		copyRegion(a.meta, data, start, extent, chunk, ci, true)
		encoded, err := encodeChunk(a.meta, chunk)
		if err != nil {
			return fmt.Errorf("chunk %q: %w", a.chunkKey(ci), err)
		}
		if err := a.store.Put(ctx, a.chunkKey(ci), encoded); err != nil {
			return err
		}
	}
	return nil
}

// WriteRegion0 writes rows [offset, offset+n) along the first dimension,
// spanning the full extent of the remaining dimensions. This is the
// region-write primitive used by per-year jobs.
func (a *Array) WriteRegion0(ctx context.Context, offset int, data []float64) error {
	rowSize := 1
	for _, s := range a.meta.Shape[1:] {
		rowSize *= s
	}
	if rowSize == 0 || len(data)%rowSize != 0 {
		return fmt.Errorf("data length %d is not a multiple of row size %d", len(data), rowSize)
	}
	start := make([]int, len(a.meta.Shape))
	start[0] = offset
	extent := append([]int{len(data) / rowSize}, a.meta.Shape[1:]...)
	return a.WriteRegion(ctx, start, extent, data)
}

// ChunkExists0 reports whether the chunk holding row offset along the
// first dimension has been materialized.
func (a *Array) ChunkExists0(ctx context.Context, offset int) (bool, error) {
	ci := make([]int, len(a.meta.Shape))
	ci[0] = offset / a.meta.Chunks[0]
	_, err := a.store.Get(ctx, a.chunkKey(ci))
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (a *Array) checkRegion(start, extent []int) error {
	if len(start) != len(a.meta.Shape) || len(extent) != len(a.meta.Shape) {
		return fmt.Errorf("region rank %d/%d does not match array rank %d", len(start), len(extent), len(a.meta.Shape))
	}
	for d := range start {
		if start[d] < 0 || extent[d] < 0 || start[d]+extent[d] > a.meta.Shape[d] {
			return fmt.Errorf("region %v/%v out of bounds for shape %v", start, extent, a.meta.Shape)
		}
	}
	return nil
}

// chunksIn enumerates the chunk index vectors intersecting a region.
func (a *Array) chunksIn(start, extent []int) [][]int {
	r := len(a.meta.Shape)
	lo := make([]int, r)
	hi := make([]int, r)
	for d := 0; d < r; d++ {
		if extent[d] == 0 {
			return nil
		}
		lo[d] = start[d] / a.meta.Chunks[d]
		hi[d] = (start[d] + extent[d] - 1) / a.meta.Chunks[d]
	}

	var out [][]int
	ci := make([]int, r)
	copy(ci, lo)
	for {
		idx := make([]int, r)
		copy(idx, ci)
		out = append(out, idx)

		d := r - 1
		for d >= 0 {
			ci[d]++
			if ci[d] <= hi[d] {
				break
			}
			ci[d] = lo[d]
			d--
		}
		if d < 0 {
			return out
		}
	}
}

// copyRegion copies the overlap between a dense region (shape extent,
// origin start) and one padded chunk buffer. toChunk selects direction.
func copyRegion(meta ArrayMeta, region []float64, start, extent []int, chunk []float64, ci []int, toChunk bool) {
	r := len(meta.Shape)

	oStart := make([]int, r) // overlap origin, absolute coordinates
	oExt := make([]int, r)
	for d := 0; d < r; d++ {
		cLo := ci[d] * meta.Chunks[d]
		cHi := cLo + meta.Chunks[d]
		if s := start[d] + extent[d]; s < cHi {
			cHi = s
		}
		if meta.Shape[d] < cHi {
			cHi = meta.Shape[d]
		}
		if start[d] > cLo {
			cLo = start[d]
		}
		if cHi <= cLo {
			return
		}
		oStart[d] = cLo
		oExt[d] = cHi - cLo
	}

	regionStride := strides(extent)
	chunkStride := strides(meta.Chunks)

	// Walk every outer-dim position of the overlap, copying contiguous
	// rows along the innermost dimension.
	rowLen := oExt[r-1]
	pos := make([]int, r)
	for {
		regionOff := 0
		chunkOff := 0
		for d := 0; d < r; d++ {
			regionOff += (oStart[d] - start[d] + pos[d]) * regionStride[d]
			chunkOff += (oStart[d] - ci[d]*meta.Chunks[d] + pos[d]) * chunkStride[d]
		}
		if toChunk {
			copy(chunk[chunkOff:chunkOff+rowLen], region[regionOff:regionOff+rowLen])
		} else {
			copy(region[regionOff:regionOff+rowLen], chunk[chunkOff:chunkOff+rowLen])
		}

		d := r - 2
		for d >= 0 {
			pos[d]++
			if pos[d] < oExt[d] {
				break
			}
			pos[d] = 0
			d--
		}
		if d < 0 {
			return
		}
	}
}

func strides(shape []int) []int {
	out := make([]int, len(shape))
	acc := 1
	for d := len(shape) - 1; d >= 0; d-- {
		out[d] = acc
		acc *= shape[d]
	}
	return out
}
