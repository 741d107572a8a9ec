package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFontPackFallsBackToStandardFont(t *testing.T) {
	pack := NewFontPack("Inter", "Caveat")

	f := pack.Font("Missing")
	require.NotNil(t, f)
	assert.Equal(t, "Helvetica", f.Name)
	assert.Empty(t, f.Data)

	sig := pack.SignatureFont("")
	require.NotNil(t, sig)
	assert.Equal(t, "Helvetica-Oblique", sig.Name)
}

func TestRegisterRejectsInvalidFontData(t *testing.T) {
	pack := NewFontPack("Inter", "Caveat")
	err := pack.Register("broken", []byte("not a font"))
	assert.Error(t, err)
}

func TestColorFallsBackToBlack(t *testing.T) {
	assert.Equal(t, [3]float64{0, 0, 0}, Color("chartreuse"))
	assert.Equal(t, [3]float64{0, 0, 0}, Color(""))
	assert.Equal(t, [3]float64{1, 1, 1}, Color("White"))
}

func TestFitFontSizeShrinksLongText(t *testing.T) {
	f := NewFontPack("", "").Font("")

	short := FitFontSize(f, []string{"Jo"}, 200, 60, MinSignatureFontSize, MaxSignatureFontSize)
	assert.Equal(t, MaxSignatureFontSize, short)

	long := FitFontSize(f, []string{"A very long signature that cannot fit"}, 120, 60, MinSignatureFontSize, MaxSignatureFontSize)
	assert.Less(t, long, short)
	assert.GreaterOrEqual(t, long, MinSignatureFontSize)
}

func TestFitFontSizeNeverDropsBelowMinimum(t *testing.T) {
	f := NewFontPack("", "").Font("")
	size := FitFontSize(f, []string{"an absurdly long line of text that will never fit in a tiny box"}, 10, 4, MinTextFontSize, MaxTextFontSize)
	assert.Equal(t, MinTextFontSize, size)
}

func TestFitFontSizeAccountsForLineCount(t *testing.T) {
	f := NewFontPack("", "").Font("")
	one := FitFontSize(f, []string{"line"}, 300, 24, MinTextFontSize, MaxTextFontSize)
	many := FitFontSize(f, []string{"line", "line", "line", "line"}, 300, 24, MinTextFontSize, MaxTextFontSize)
	assert.LessOrEqual(t, many, one)
}
