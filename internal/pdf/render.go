package pdf

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/digitorus/pdfsign/fonts"

	"github.com/Caring-data/documenso-sub000/internal/models"
)

// FieldInput is one resolved field ready for insertion: the stored
// field plus the text or image it should render with.
type FieldInput struct {
	Field     models.Field
	Value     string
	ImageData []byte
	TypedText string
	FontName  string
	ColorName string
}

// AddFont embeds a font as a PDF font object and returns its object
// number. TrueType fonts are embedded with their program and widths;
// fonts without data become standard Type1 references.
func (u *Updater) AddFont(f *fonts.Font) uint32 {
	if f == nil || len(f.Data) == 0 {
		baseFont := "Helvetica"
		if f != nil && f.Name != "" {
			baseFont = f.Name
		}
		dict := fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /%s /Encoding /WinAnsiEncoding >>", pdfName(baseFont))
		return u.AddObject([]byte(dict))
	}

	streamID := u.AddStream(fmt.Sprintf("/Length1 %d", len(f.Data)), f.Data)
	descriptor := fmt.Sprintf("<< /Type /FontDescriptor /FontName /%s /Flags 32 /FontBBox [-500 -200 1000 900] /ItalicAngle 0 /Ascent 800 /Descent -200 /CapHeight 700 /StemV 80 /FontFile2 %d 0 R >>",
		pdfName(f.Name), streamID)
	descriptorID := u.AddObject([]byte(descriptor))

	var b bytes.Buffer
	fmt.Fprintf(&b, "<< /Type /Font /Subtype /TrueType /BaseFont /%s /FontDescriptor %d 0 R /FirstChar 32 /LastChar 255 /Encoding /WinAnsiEncoding /Widths [",
		pdfName(f.Name), descriptorID)
	if f.Metrics != nil {
		for _, w := range f.Metrics.GetWidthsArray() {
			fmt.Fprintf(&b, " %d", w)
		}
	} else {
		for i := 32; i <= 255; i++ {
			b.WriteString(" 500")
		}
	}
	b.WriteString(" ] >>")
	return u.AddObject(b.Bytes())
}

// renderer draws fields into page content streams. Font objects are
// shared across pages within one update.
type renderer struct {
	u       *Updater
	pack    *FontPack
	fontIDs map[string]uint32
}

func newRenderer(u *Updater, pack *FontPack) *renderer {
	return &renderer{u: u, pack: pack, fontIDs: make(map[string]uint32)}
}

func (r *renderer) fontID(f *fonts.Font) uint32 {
	key := f.Name
	if id, ok := r.fontIDs[key]; ok {
		return id
	}
	id := r.u.AddFont(f)
	r.fontIDs[key] = id
	return id
}

// pageWriter accumulates content-stream fragments for one page. All
// drawing happens in display coordinates; the page transform is applied
// once when the stream is flushed.
type pageWriter struct {
	r      *renderer
	geo    PageGeometry
	stream bytes.Buffer
	fonts  map[string]uint32
	images map[string]uint32
	nFont  int
	nImage int
}

func (r *renderer) newPageWriter(geo PageGeometry) *pageWriter {
	return &pageWriter{
		r:      r,
		geo:    geo,
		fonts:  make(map[string]uint32),
		images: make(map[string]uint32),
	}
}

func (w *pageWriter) fontRef(f *fonts.Font) string {
	id := w.r.fontID(f)
	for name, known := range w.fonts {
		if known == id {
			return name
		}
	}
	w.nFont++
	name := fmt.Sprintf("SF%d", w.nFont)
	w.fonts[name] = id
	return name
}

// drawText lays out text inside rect, fitting the font size when no
// fixed size is given, and aligning each line horizontally.
func (w *pageWriter) drawText(rect Rect, text string, f *fonts.Font, fixedSize *float64, minSize, maxSize float64, color [3]float64, align models.TextAlign) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	lines := strings.Split(text, "\n")

	const pad = 2.0
	boxW := rect.W - 2*pad
	boxH := rect.H - 2*pad
	var size float64
	if fixedSize != nil && *fixedSize > 0 {
		size = *fixedSize
	} else {
		size = FitFontSize(f, lines, boxW, boxH, minSize, maxSize)
	}

	fontName := w.fontRef(f)
	step := size * lineHeight
	blockH := step * float64(len(lines))
	top := rect.Y + (rect.H+blockH)/2

	fmt.Fprintf(&w.stream, "BT\n/%s %s Tf\n%s %s %s rg\n",
		fontName, fnum(size), fnum(color[0]), fnum(color[1]), fnum(color[2]))
	for i, line := range lines {
		lineW := StringWidth(f, line, size)
		x := rect.X + pad
		switch align {
		case models.AlignCenter:
			x = rect.X + (rect.W-lineW)/2
		case models.AlignRight:
			x = rect.X + rect.W - pad - lineW
		}
		if x < rect.X {
			x = rect.X
		}
		y := top - step*float64(i+1) + size*0.25
		fmt.Fprintf(&w.stream, "1 0 0 1 %s %s Tm\n<%s> Tj\n", fnum(x), fnum(y), hex.EncodeToString(winAnsiBytes(line)))
	}
	w.stream.WriteString("ET\n")
}

// drawImage scales an image to fit inside rect, preserving its aspect
// ratio and centering it.
func (w *pageWriter) drawImage(rect Rect, data []byte) error {
	id, imgW, imgH, err := w.r.u.AddImage(data)
	if err != nil {
		return err
	}
	w.nImage++
	name := fmt.Sprintf("SI%d", w.nImage)
	w.images[name] = id

	scale := rect.W / float64(imgW)
	if s := rect.H / float64(imgH); s < scale {
		scale = s
	}
	drawW := float64(imgW) * scale
	drawH := float64(imgH) * scale
	x := rect.X + (rect.W-drawW)/2
	y := rect.Y + (rect.H-drawH)/2

	fmt.Fprintf(&w.stream, "q\n%s 0 0 %s %s %s cm\n/%s Do\nQ\n",
		fnum(drawW), fnum(drawH), fnum(x), fnum(y), name)
	return nil
}

// renderField draws one static field. Checkbox and radio fields become
// form widgets instead and are not handled here.
func (w *pageWriter) renderField(in FieldInput) error {
	kind, err := in.Field.Type.Kind()
	if err != nil {
		return err
	}
	rect := w.geo.ResolveRect(in.Field.PositionX, in.Field.PositionY, in.Field.Width, in.Field.Height)

	switch kind {
	case models.KindSignature:
		if len(in.ImageData) > 0 {
			return w.drawImage(rect, in.ImageData)
		}
		text := in.TypedText
		if text == "" {
			text = in.Value
		}
		f := w.r.pack.SignatureFont(in.FontName)
		w.drawText(rect, text, f, nil, MinSignatureFontSize, MaxSignatureFontSize, Color(in.ColorName), models.AlignCenter)
		return nil
	case models.KindTextLike:
		f := w.r.pack.Font(in.FontName)
		fixed := in.Field.Meta.FontSize
		align := models.AlignLeft
		if in.Field.Meta.TextAlign != "" {
			align = in.Field.Meta.TextAlign
		}
		w.drawText(rect, in.Value, f, fixed, MinTextFontSize, MaxTextFontSize, Color(in.ColorName), align)
		return nil
	default:
		return nil
	}
}

// flush wraps the accumulated fragments in the page transform, appends
// them as a new content stream, and rewrites the page object.
func (w *pageWriter) flush(page pageRef, annots string) error {
	if w.stream.Len() == 0 && annots == "" {
		return nil
	}
	content := fmt.Sprintf("q\n%s cm\n%sQ\n", w.geo.PageMatrix().String(), w.stream.String())
	contentID := w.r.u.AddStream("", []byte(content))

	adds := make(map[string]map[string]uint32)
	if len(w.fonts) > 0 {
		adds["Font"] = w.fonts
	}
	if len(w.images) > 0 {
		adds["XObject"] = w.images
	}

	replace := map[string]string{
		"Contents":  contentsWith(page.v, contentID),
		"Resources": mergeResources(page.resources, adds),
	}
	if annots != "" {
		replace["Annots"] = annots
	}
	w.r.u.UpdateObject(page.id, rewriteDict(page.v, replace, nil))
	return nil
}

// winAnsiBytes maps text to single-byte WinAnsi codes, replacing runes
// outside Latin-1 with a question mark.
func winAnsiBytes(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r <= 0xff {
			out = append(out, byte(r))
		} else {
			out = append(out, '?')
		}
	}
	return out
}
