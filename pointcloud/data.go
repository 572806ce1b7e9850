package pointcloud

import (
	"image/color"

	"github.com/golang/geo/r3"
)

// Data carries the optional per-point attributes a PointCloud may track
// alongside position: an intensity/label value, an RGB color, and a normal
// vector. A nil Data means "no attributes attached".
type Data interface {
	HasValue() bool
	Value() int
	HasColor() bool
	Color() color.NRGBA
	HasNormal() bool
	NormalVector() r3.Vector
}

type basicData struct {
	hasValue  bool
	value     int
	hasColor  bool
	col       color.NRGBA
	hasNormal bool
	normal    r3.Vector
}

func (d *basicData) HasValue() bool          { return d != nil && d.hasValue }
func (d *basicData) Value() int              { return d.value }
func (d *basicData) HasColor() bool          { return d != nil && d.hasColor }
func (d *basicData) Color() color.NRGBA      { return d.col }
func (d *basicData) HasNormal() bool         { return d != nil && d.hasNormal }
func (d *basicData) NormalVector() r3.Vector { return d.normal }

// NewValueData returns a Data carrying only an integer value/label.
func NewValueData(v int) Data {
	return &basicData{hasValue: true, value: v}
}

// NewColoredData returns a Data carrying only a color.
func NewColoredData(c color.NRGBA) Data {
	return &basicData{hasColor: true, col: c}
}

// NewBasicData returns an empty, attribute-less Data.
func NewBasicData() Data {
	return &basicData{}
}

// NewNormalData returns a Data carrying only a normal vector.
func NewNormalData(n r3.Vector) Data {
	return withNormal(nil, n)
}

// withNormal returns a copy of d (or a fresh Data if d is nil) with its
// normal vector set to n.
func withNormal(d Data, n r3.Vector) Data {
	var bd basicData
	if existing, ok := d.(*basicData); ok && existing != nil {
		bd = *existing
	}
	bd.hasNormal = true
	bd.normal = n
	return &bd
}

// HasColor reports whether d is non-nil and carries a color, the
// nil-safe free-function form used where d may be nil.
func HasColor(d Data) bool {
	return d != nil && d.HasColor()
}

// HasNormal reports whether d is non-nil and carries a normal vector, the
// nil-safe free-function form used where d may be nil.
func HasNormal(d Data) bool {
	return d != nil && d.HasNormal()
}
