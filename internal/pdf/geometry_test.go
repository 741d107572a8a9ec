package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRotation(t *testing.T) {
	cases := []struct {
		angle float64
		want  Rotation
	}{
		{0, Rotate0},
		{44, Rotate0},
		{46, Rotate90},
		{90, Rotate90},
		{180, Rotate180},
		{270, Rotate270},
		{360, Rotate0},
		{450, Rotate90},
		{-90, Rotate270},
		{-269, Rotate90},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeRotation(tc.angle), "angle %v", tc.angle)
	}
}

func TestDisplaySizeSwapsOnQuarterTurns(t *testing.T) {
	geo := PageGeometry{Width: 612, Height: 792, Rotation: Rotate90}
	w, h := geo.DisplaySize()
	assert.Equal(t, 792.0, w)
	assert.Equal(t, 612.0, h)

	geo.Rotation = Rotate180
	w, h = geo.DisplaySize()
	assert.Equal(t, 612.0, w)
	assert.Equal(t, 792.0, h)
}

func TestResolveRectInvertsYAxis(t *testing.T) {
	geo := PageGeometry{Width: 1000, Height: 500}

	// A field at the top-left corner covering 10% x 10%.
	r := geo.ResolveRect(0, 0, 10, 10)
	assert.InDelta(t, 0.0, r.X, 1e-9)
	assert.InDelta(t, 450.0, r.Y, 1e-9)
	assert.InDelta(t, 100.0, r.W, 1e-9)
	assert.InDelta(t, 50.0, r.H, 1e-9)

	// A field at the bottom-right corner.
	r = geo.ResolveRect(90, 90, 10, 10)
	assert.InDelta(t, 900.0, r.X, 1e-9)
	assert.InDelta(t, 0.0, r.Y, 1e-9)
}

func TestPageMatrixRoundTrip(t *testing.T) {
	for _, rot := range []Rotation{Rotate0, Rotate90, Rotate180, Rotate270} {
		geo := PageGeometry{Width: 612, Height: 792, Rotation: rot}
		m := geo.PageMatrix()
		inv := m.Inverse()
		for _, p := range [][2]float64{{0, 0}, {100, 250}, {612, 792}, {13.5, 7.25}} {
			x, y := m.Apply(p[0], p[1])
			bx, by := inv.Apply(x, y)
			assert.InDelta(t, p[0], bx, 1e-9, "rotation %d", rot)
			assert.InDelta(t, p[1], by, 1e-9, "rotation %d", rot)
		}
	}
}

func TestPageMatrixMapsDisplayOntoNative(t *testing.T) {
	geo := PageGeometry{Width: 612, Height: 792, Rotation: Rotate90}

	// The display origin of a 90 degree page lands on the native
	// top-left corner.
	m := geo.PageMatrix()
	x, y := m.Apply(0, 0)
	assert.InDelta(t, 612.0, x, 1e-9)
	assert.InDelta(t, 0.0, y, 1e-9)

	// The far display corner lands on the native bottom-right.
	x, y = m.Apply(792, 612)
	assert.InDelta(t, 0.0, x, 1e-9)
	assert.InDelta(t, 792.0, y, 1e-9)
}

func TestNativeRectStaysWithinPage(t *testing.T) {
	for _, rot := range []Rotation{Rotate0, Rotate90, Rotate180, Rotate270} {
		geo := PageGeometry{Width: 612, Height: 792, Rotation: rot}
		r := geo.ResolveRect(10, 20, 30, 5)
		native := geo.NativeRect(r)
		assert.LessOrEqual(t, native[0], native[2], "rotation %d", rot)
		assert.LessOrEqual(t, native[1], native[3], "rotation %d", rot)
		assert.GreaterOrEqual(t, native[0], -1e-9, "rotation %d", rot)
		assert.GreaterOrEqual(t, native[1], -1e-9, "rotation %d", rot)
		assert.LessOrEqual(t, native[2], geo.Width+1e-9, "rotation %d", rot)
		assert.LessOrEqual(t, native[3], geo.Height+1e-9, "rotation %d", rot)
	}
}

func TestMatrixComposition(t *testing.T) {
	m := Rotate(90).Mul(Translate(10, 0))
	x, y := m.Apply(1, 0)
	assert.InDelta(t, 10.0, x, 1e-9)
	assert.InDelta(t, 1.0, y, 1e-9)

	s := Scale(2, 3).Mul(Translate(1, 1))
	x, y = s.Apply(2, 2)
	assert.InDelta(t, 5.0, x, 1e-9)
	assert.InDelta(t, 7.0, y, 1e-9)
}
