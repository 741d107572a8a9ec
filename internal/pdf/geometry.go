package pdf

import (
	"fmt"
	"math"
)

// Rotation is a page rotation normalized to a quarter turn.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// NormalizeRotation snaps an arbitrary /Rotate value to the nearest
// quarter turn in [0, 360).
func NormalizeRotation(angle float64) Rotation {
	snapped := int(math.Round(angle/90)) * 90
	snapped %= 360
	if snapped < 0 {
		snapped += 360
	}
	return Rotation(snapped)
}

// PageGeometry describes a page as the viewer presents it: the native
// MediaBox dimensions plus the declared rotation.
type PageGeometry struct {
	Width    float64
	Height   float64
	Rotation Rotation
}

// DisplaySize returns the page dimensions as seen by the viewer, with
// width and height swapped for quarter-turn rotations.
func (g PageGeometry) DisplaySize() (w, h float64) {
	if g.Rotation == Rotate90 || g.Rotation == Rotate270 {
		return g.Height, g.Width
	}
	return g.Width, g.Height
}

// Rect is an axis-aligned box with a bottom-left origin.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// ResolveRect converts percent-based field coordinates (top-left origin,
// measured against the displayed page) into a display-space Rect with a
// bottom-left origin.
func (g PageGeometry) ResolveRect(xPct, yPct, wPct, hPct float64) Rect {
	dw, dh := g.DisplaySize()
	w := dw * wPct / 100
	h := dh * hPct / 100
	x := dw * xPct / 100
	y := dh - dh*yPct/100 - h
	return Rect{X: x, Y: y, W: w, H: h}
}

// Matrix is a PDF transformation matrix [a b c d e f] applied to row
// vectors: x' = a*x + c*y + e, y' = b*x + d*y + f.
type Matrix [6]float64

// Identity is the no-op transform.
var Identity = Matrix{1, 0, 0, 1, 0, 0}

// Translate returns a translation matrix.
func Translate(tx, ty float64) Matrix {
	return Matrix{1, 0, 0, 1, tx, ty}
}

// Rotate returns a counter-clockwise rotation matrix for the given
// angle in degrees.
func Rotate(degrees float64) Matrix {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return Matrix{cos, sin, -sin, cos, 0, 0}
}

// Scale returns a scaling matrix.
func Scale(sx, sy float64) Matrix {
	return Matrix{sx, 0, 0, sy, 0, 0}
}

// Mul concatenates two transforms: the receiver is applied first, then n.
func (m Matrix) Mul(n Matrix) Matrix {
	return Matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// Apply transforms a point.
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// Inverse returns the inverse transform. It panics on a singular matrix,
// which cannot arise from composed rotations and translations.
func (m Matrix) Inverse() Matrix {
	det := m[0]*m[3] - m[1]*m[2]
	if det == 0 {
		panic("pdf: singular matrix")
	}
	return Matrix{
		m[3] / det,
		-m[1] / det,
		-m[2] / det,
		m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}
}

// String renders the matrix as content-stream operands.
func (m Matrix) String() string {
	return fmt.Sprintf("%s %s %s %s %s %s",
		fnum(m[0]), fnum(m[1]), fnum(m[2]), fnum(m[3]), fnum(m[4]), fnum(m[5]))
}

// PageMatrix returns the single affine transform mapping display-space
// coordinates onto the page's native coordinate space. Content emitted
// under this transform appears upright after the viewer applies the
// declared page rotation.
func (g PageGeometry) PageMatrix() Matrix {
	var tx, ty float64
	switch g.Rotation {
	case Rotate90:
		tx, ty = g.Width, 0
	case Rotate180:
		tx, ty = g.Width, g.Height
	case Rotate270:
		tx, ty = 0, g.Height
	default:
		return Identity
	}
	return Rotate(float64(g.Rotation)).Mul(Translate(tx, ty))
}

// NativeRect maps a display-space Rect into a normalized native-space
// rectangle [llx lly urx ury], as used by annotation /Rect entries.
func (g PageGeometry) NativeRect(r Rect) [4]float64 {
	m := g.PageMatrix()
	x1, y1 := m.Apply(r.X, r.Y)
	x2, y2 := m.Apply(r.X+r.W, r.Y+r.H)
	return [4]float64{
		math.Min(x1, x2), math.Min(y1, y2),
		math.Max(x1, x2), math.Max(y1, y2),
	}
}

func fnum(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.4f", f)
}
