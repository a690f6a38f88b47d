package dataset

import "fmt"

// Gravity is the standard gravitational acceleration (m/s²) used when
// converting a vertically integrated humidity column to millimeters of
// precipitable water.
const Gravity = 9.807

// Transform is a pure function over one labeled array. It must accept a
// schema-only (nil data) array and return the transformed schema, so the
// dispatcher can build output shells without reading the payload.
type Transform func(Array) (Array, error)

// TPW computes total precipitable water from a specific-humidity field:
// missing values become zero, the column is integrated over the pressure
// axis, and the (negative, because pressure decreases upward) integral
// is scaled by 1/g into millimeters.
func TPW(a Array) (Array, error) {
	out := a.FillNA(0)
	out, err := out.Integrate("plev")
	if err != nil {
		return Array{}, fmt.Errorf("tpw: %w", err)
	}
	out = out.Scale(-1 / Gravity)
	out.Name = "tpw"
	out.Attrs = map[string]string{"units": "mm"}
	return out, nil
}

// transforms is the registry of named transforms the CLIs can dispatch.
var transforms = map[string]Transform{
	"tpw": TPW,
}

// Lookup resolves a transform by name.
func Lookup(name string) (Transform, error) {
	t, ok := transforms[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform %q", name)
	}
	return t, nil
}
