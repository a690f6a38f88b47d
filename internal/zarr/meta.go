package zarr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

const (
	zarrFormat = 2

	// DimsAttr is the xarray convention for recording dimension names on
	// an array's attributes.
	DimsAttr = "_ARRAY_DIMENSIONS"
)

// Compressor identifies the chunk compressor in .zarray metadata. Only
// gzip (and nil for uncompressed) is supported.
type Compressor struct {
	ID    string `json:"id"`
	Level int    `json:"level,omitempty"`
}

// ArrayMeta mirrors the .zarray document.
type ArrayMeta struct {
	Shape      []int       `json:"shape"`
	Chunks     []int       `json:"chunks"`
	Dtype      string      `json:"dtype"` // "<f8" or "<f4"
	Compressor *Compressor `json:"compressor"`
	FillValue  float64     `json:"-"`
	Order      string      `json:"order"`
	ZarrFormat int         `json:"zarr_format"`
	Filters    interface{} `json:"filters"`
}

// Validate checks the metadata against what this implementation supports.
func (m ArrayMeta) Validate() error {
	if len(m.Shape) == 0 || len(m.Shape) != len(m.Chunks) {
		return fmt.Errorf("shape %v and chunks %v must be non-empty and equal rank", m.Shape, m.Chunks)
	}
	for i := range m.Shape {
		if m.Shape[i] < 0 || m.Chunks[i] <= 0 {
			return fmt.Errorf("invalid shape %v / chunks %v at dim %d", m.Shape, m.Chunks, i)
		}
	}
	if m.Dtype != "<f8" && m.Dtype != "<f4" {
		return fmt.Errorf("unsupported dtype %q", m.Dtype)
	}
	if m.Order != "C" {
		return fmt.Errorf("unsupported order %q", m.Order)
	}
	if m.Compressor != nil && m.Compressor.ID != "gzip" {
		return fmt.Errorf("unsupported compressor %q", m.Compressor.ID)
	}
	return nil
}

func (m ArrayMeta) itemSize() int {
	if m.Dtype == "<f4" {
		return 4
	}
	return 8
}

// Size is the number of elements in the full array.
func (m ArrayMeta) Size() int {
	n := 1
	for _, s := range m.Shape {
		n *= s
	}
	return n
}

// MarshalJSON handles the NaN fill value, which JSON proper cannot carry
// and the Zarr spec encodes as the string "NaN".
func (m ArrayMeta) MarshalJSON() ([]byte, error) {
	type alias ArrayMeta
	doc, err := json.Marshal(alias(m))
	if err != nil {
		return nil, err
	}
	var fill json.RawMessage
	if math.IsNaN(m.FillValue) {
		fill = json.RawMessage(`"NaN"`)
	} else {
		fill, err = json.Marshal(m.FillValue)
		if err != nil {
			return nil, err
		}
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(doc, &obj); err != nil {
		return nil, err
	}
	obj["fill_value"] = fill
	return json.Marshal(obj)
}

func (m *ArrayMeta) UnmarshalJSON(data []byte) error {
	type alias ArrayMeta
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = ArrayMeta(a)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	fill, ok := obj["fill_value"]
	if !ok || bytes.Equal(fill, []byte("null")) {
		m.FillValue = math.NaN()
		return nil
	}
	if bytes.Equal(fill, []byte(`"NaN"`)) {
		m.FillValue = math.NaN()
		return nil
	}
	return json.Unmarshal(fill, &m.FillValue)
}

// Attrs is a free-form .zattrs document.
type Attrs map[string]interface{}

// StringAttr reads a string attribute, empty if absent or not a string.
func (a Attrs) StringAttr(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// DimNames reads the xarray _ARRAY_DIMENSIONS attribute.
func (a Attrs) DimNames() []string {
	raw, ok := a[DimsAttr].([]interface{})
	if !ok {
		return nil
	}
	dims := make([]string, 0, len(raw))
	for _, d := range raw {
		if s, ok := d.(string); ok {
			dims = append(dims, s)
		}
	}
	return dims
}
