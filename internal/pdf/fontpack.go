package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/digitorus/pdfsign/fonts"
)

// Font size limits applied when fitting text into a field box.
// Handwriting fonts render larger than body text, so typed signatures
// get a wider range than standard text fields.
const (
	MaxSignatureFontSize = 50.0
	MinSignatureFontSize = 12.0
	MaxTextFontSize      = 16.0
	MinTextFontSize      = 8.0
)

// namedColors is the closed set of colors a signer may pick for a typed
// signature. Anything outside the set falls back to black.
var namedColors = map[string][3]float64{
	"black": {0, 0, 0},
	"white": {1, 1, 1},
	"red":   {0.86, 0.15, 0.15},
	"green": {0.13, 0.55, 0.13},
	"blue":  {0.12, 0.25, 0.85},
}

// FontPack holds the fonts available for field rendering. Fonts are
// registered by name; lookups that miss fall back to the default font
// and ultimately to the built-in Helvetica metrics, so rendering never
// fails on a missing font file.
type FontPack struct {
	fonts         map[string]*fonts.Font
	defaultFont   string
	signatureFont string
}

func NewFontPack(defaultFont, signatureFont string) *FontPack {
	return &FontPack{
		fonts:         make(map[string]*fonts.Font),
		defaultFont:   strings.ToLower(defaultFont),
		signatureFont: strings.ToLower(signatureFont),
	}
}

// Register parses TrueType data and adds it to the pack under name.
func (p *FontPack) Register(name string, data []byte) error {
	metrics, err := fonts.ParseTTFMetrics(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", name, err)
	}
	p.fonts[strings.ToLower(name)] = &fonts.Font{
		Name:     sanitizeFontName(name),
		Data:     data,
		Embedded: true,
		Metrics:  metrics,
	}
	return nil
}

// LoadDir registers every .ttf file found in dir, keyed by file name
// without the extension. A missing directory is not an error.
func (p *FontPack) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".ttf") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if err := p.Register(name, data); err != nil {
			return err
		}
	}
	return nil
}

// Font resolves a font by name, falling back to the pack default and
// then to standard Helvetica.
func (p *FontPack) Font(name string) *fonts.Font {
	if f, ok := p.fonts[strings.ToLower(name)]; ok {
		return f
	}
	if f, ok := p.fonts[p.defaultFont]; ok {
		return f
	}
	return fonts.Standard(fonts.Helvetica)
}

// SignatureFont resolves the handwriting font used for typed signatures.
func (p *FontPack) SignatureFont(name string) *fonts.Font {
	if f, ok := p.fonts[strings.ToLower(name)]; ok {
		return f
	}
	if f, ok := p.fonts[p.signatureFont]; ok {
		return f
	}
	return fonts.Standard(fonts.HelveticaOblique)
}

// Color resolves a named color to RGB components in [0, 1].
func Color(name string) [3]float64 {
	if c, ok := namedColors[strings.ToLower(name)]; ok {
		return c
	}
	return namedColors["black"]
}

// StringWidth measures text at the given size, approximating with half
// an em per rune when the font carries no metrics.
func StringWidth(f *fonts.Font, text string, size float64) float64 {
	if f != nil && f.Metrics != nil {
		return f.Metrics.GetStringWidth(text, size)
	}
	return float64(len([]rune(text))) * size * 0.5
}

// FitFontSize finds the largest size within [min, max] at which every
// line of text fits the box, stepping down by half a point. Text that
// does not fit even at the minimum is still rendered at the minimum.
func FitFontSize(f *fonts.Font, lines []string, boxW, boxH, min, max float64) float64 {
	size := max
	lineCount := float64(len(lines))
	if lineCount == 0 {
		return size
	}
	for size > min {
		widest := 0.0
		for _, line := range lines {
			if w := StringWidth(f, line, size); w > widest {
				widest = w
			}
		}
		if widest <= boxW && size*lineHeight*lineCount <= boxH {
			break
		}
		size -= 0.5
	}
	return size
}

// lineHeight is the leading factor applied to the font size when
// stacking lines of text.
const lineHeight = 1.2

func sanitizeFontName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r > ' ' && r != '/' && r != '(' && r != ')' && r != '<' && r != '>' && r != '[' && r != ']' && r != '#' && r < 0x7f {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "Font"
	}
	return b.String()
}
