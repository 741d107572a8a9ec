package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	pdflib "github.com/digitorus/pdf"

	"github.com/Caring-data/documenso-sub000/internal/models"
)

// InsertFields draws every static field into the page content and adds
// checkbox and radio fields as real form widgets with prebuilt
// appearance streams. Widgets carry their selected state so a later
// flatten pass bakes the correct appearance.
func InsertFields(data []byte, pack *FontPack, inputs []FieldInput, compressLevel int) ([]byte, error) {
	if len(inputs) == 0 {
		return data, nil
	}
	u, err := NewUpdater(data, compressLevel)
	if err != nil {
		return nil, err
	}
	pgs, err := pages(u.Reader())
	if err != nil {
		return nil, err
	}

	byPage := make(map[int][]FieldInput)
	for _, in := range inputs {
		if err := in.Field.ValidateMeta(); err != nil {
			return nil, err
		}
		if in.Field.Page < 1 || in.Field.Page > len(pgs) {
			return nil, fmt.Errorf("field %s targets page %d of a %d page document", in.Field.ID, in.Field.Page, len(pgs))
		}
		byPage[in.Field.Page] = append(byPage[in.Field.Page], in)
	}

	r := newRenderer(u, pack)
	ins := &inserter{u: u}

	pageNums := make([]int, 0, len(byPage))
	for n := range byPage {
		pageNums = append(pageNums, n)
	}
	sort.Ints(pageNums)

	for _, n := range pageNums {
		pg := pgs[n-1]
		w := r.newPageWriter(pg.geo)
		var widgetRefs []uint32
		for _, in := range byPage[n] {
			kind, err := in.Field.Type.Kind()
			if err != nil {
				return nil, err
			}
			switch kind {
			case models.KindCheckbox, models.KindRadio:
				refs, err := ins.insertOptionWidgets(w, pg.geo, in, kind)
				if err != nil {
					return nil, err
				}
				widgetRefs = append(widgetRefs, refs...)
			default:
				if err := w.renderField(in); err != nil {
					return nil, err
				}
			}
		}
		annots := ""
		if len(widgetRefs) > 0 {
			annots = annotsWith(pg.v, widgetRefs)
		}
		if err := w.flush(pg, annots); err != nil {
			return nil, err
		}
	}

	if len(ins.fieldRefs) > 0 {
		refs := make([]string, len(ins.fieldRefs))
		for i, id := range ins.fieldRefs {
			refs[i] = fmt.Sprintf("%d 0 R", id)
		}
		acroForm := u.AddObject([]byte(fmt.Sprintf("<< /Fields [ %s ] /DA (/Helv 0 Tf 0 g) >>", strings.Join(refs, " "))))
		root := u.Reader().Trailer().Key("Root")
		u.UpdateObject(u.RootID(), rewriteDict(root, map[string]string{"AcroForm": fmt.Sprintf("%d 0 R", acroForm)}, nil))
	}

	return u.Bytes()
}

// inserter tracks the form objects created across pages so one AcroForm
// can reference them all.
type inserter struct {
	u         *Updater
	fieldRefs []uint32
	zadbID    uint32
}

// zapfDingbats returns the shared font object used for check marks.
func (ins *inserter) zapfDingbats() uint32 {
	if ins.zadbID == 0 {
		ins.zadbID = ins.u.AddObject([]byte("<< /Type /Font /Subtype /Type1 /BaseFont /ZapfDingbats >>"))
	}
	return ins.zadbID
}

// optionSquareMax caps the drawn size of a checkbox or radio mark.
const optionSquareMax = 16.0

// insertOptionWidgets lays the field's options out as a vertical stack
// of widgets inside the field box, each with on and off appearance
// streams and its stored checked state. Option labels are drawn into
// the static content next to the widgets.
func (ins *inserter) insertOptionWidgets(w *pageWriter, geo PageGeometry, in FieldInput, kind models.FieldKind) ([]uint32, error) {
	options := in.Field.Meta.Values
	if len(options) == 0 {
		return nil, fmt.Errorf("field %s has no options", in.Field.ID)
	}
	selected := make(map[string]bool)
	for _, v := range in.Field.SelectedValues() {
		selected[v] = true
	}

	rect := geo.ResolveRect(in.Field.PositionX, in.Field.PositionY, in.Field.Width, in.Field.Height)
	rowH := rect.H / float64(len(options))
	square := rowH
	if rect.W < square {
		square = rect.W
	}
	if square > optionSquareMax {
		square = optionSquareMax
	}

	rot := Rotate(float64(geo.Rotation))
	var refs []uint32
	var radioKids []uint32
	var radioValue string
	radioParent := uint32(0)
	if kind == models.KindRadio {
		// Reserve the parent field object so kids can point at it.
		radioParent = ins.u.AddObject(nil)
		ins.fieldRefs = append(ins.fieldRefs, radioParent)
	}

	for k, opt := range options {
		box := Rect{
			X: rect.X,
			Y: rect.Y + rect.H - rowH*float64(k+1) + (rowH-square)/2,
			W: square,
			H: square,
		}
		native := geo.NativeRect(box)
		on := selected[opt.Value]
		stateName := fmt.Sprintf("Opt%d", k)

		var onID, offID uint32
		if kind == models.KindCheckbox {
			onID = ins.checkAppearance(square, rot, true)
			offID = ins.checkAppearance(square, rot, false)
		} else {
			onID = ins.radioAppearance(square, rot, true)
			offID = ins.radioAppearance(square, rot, false)
		}

		state := "/Off"
		if on {
			state = "/" + stateName
		}

		var b bytes.Buffer
		b.WriteString("<<\n  /Type /Annot /Subtype /Widget /F 4\n")
		fmt.Fprintf(&b, "  /Rect [ %s %s %s %s ]\n", fnum(native[0]), fnum(native[1]), fnum(native[2]), fnum(native[3]))
		fmt.Fprintf(&b, "  /MK << /BC [ 0 0 0 ] /BG [ 1 1 1 ] >>\n")
		fmt.Fprintf(&b, "  /AP << /N << /%s %d 0 R /Off %d 0 R >> >>\n", stateName, onID, offID)
		fmt.Fprintf(&b, "  /AS %s\n", state)
		if kind == models.KindCheckbox {
			fmt.Fprintf(&b, "  /FT /Btn /T %s /V %s\n", pdfTextString(fmt.Sprintf("%s.%d", in.Field.ID, k)), state)
		} else {
			fmt.Fprintf(&b, "  /Parent %d 0 R\n", radioParent)
		}
		b.WriteString(">>")

		id := ins.u.AddObject(b.Bytes())
		refs = append(refs, id)
		if kind == models.KindCheckbox {
			ins.fieldRefs = append(ins.fieldRefs, id)
		} else {
			radioKids = append(radioKids, id)
			if on && radioValue == "" {
				radioValue = stateName
			}
		}

		if label := opt.Label(); label != "" {
			labelRect := Rect{
				X: box.X + square + 4,
				Y: rect.Y + rect.H - rowH*float64(k+1),
				W: rect.W - square - 4,
				H: rowH,
			}
			if labelRect.W > 0 {
				f := w.r.pack.Font(in.FontName)
				w.drawText(labelRect, label, f, nil, MinTextFontSize, MaxTextFontSize, Color("black"), models.AlignLeft)
			}
		}
	}

	if kind == models.KindRadio {
		value := "/Off"
		if radioValue != "" {
			value = "/" + radioValue
		}
		kids := make([]string, len(radioKids))
		for i, id := range radioKids {
			kids[i] = fmt.Sprintf("%d 0 R", id)
		}
		body := fmt.Sprintf("<< /FT /Btn /Ff %d /T %s /V %s /Kids [ %s ] >>",
			radioFieldFlags, pdfTextString(in.Field.ID), value, strings.Join(kids, " "))
		ins.u.setObjectBody(radioParent, []byte(body))
	}

	return refs, nil
}

// Field flag bits for /FT /Btn: Radio plus NoToggleToOff.
const radioFieldFlags = (1 << 15) | (1 << 14)

// checkAppearance builds the on or off appearance for a checkbox: a
// bordered square, with a ZapfDingbats check mark when on.
func (ins *inserter) checkAppearance(size float64, rot Matrix, on bool) uint32 {
	var stream bytes.Buffer
	fmt.Fprintf(&stream, "q\n0 0 0 RG 1 w\n0.5 0.5 %s %s re S\nQ\n", fnum(size-1), fnum(size-1))
	resources := ""
	if on {
		glyphSize := size * 0.8
		fmt.Fprintf(&stream, "q\nBT\n/ZaDb %s Tf\n0 0 0 rg\n%s %s Td\n(4) Tj\nET\nQ\n",
			fnum(glyphSize), fnum(size*0.15), fnum(size*0.18))
		resources = fmt.Sprintf(" /Resources << /Font << /ZaDb %d 0 R >> >>", ins.zapfDingbats())
	}
	dict := fmt.Sprintf("/Type /XObject /Subtype /Form /FormType 1 /BBox [ 0 0 %s %s ] /Matrix [ %s ]%s",
		fnum(size), fnum(size), rot.String(), resources)
	return ins.u.AddStream(dict, stream.Bytes())
}

// radioAppearance builds the on or off appearance for a radio option: a
// circle outline, with a filled dot when on.
func (ins *inserter) radioAppearance(size float64, rot Matrix, on bool) uint32 {
	var stream bytes.Buffer
	c := size / 2
	stream.WriteString("q\n0 0 0 RG 1 w\n")
	circlePath(&stream, c, c, c-0.75)
	stream.WriteString("S\nQ\n")
	if on {
		stream.WriteString("q\n0 0 0 rg\n")
		circlePath(&stream, c, c, c*0.45)
		stream.WriteString("f\nQ\n")
	}
	dict := fmt.Sprintf("/Type /XObject /Subtype /Form /FormType 1 /BBox [ 0 0 %s %s ] /Matrix [ %s ]",
		fnum(size), fnum(size), rot.String())
	return ins.u.AddStream(dict, stream.Bytes())
}

// circlePath emits a four-arc Bezier approximation of a circle.
func circlePath(b *bytes.Buffer, cx, cy, r float64) {
	k := 0.5522847498 * r
	fmt.Fprintf(b, "%s %s m\n", fnum(cx+r), fnum(cy))
	fmt.Fprintf(b, "%s %s %s %s %s %s c\n", fnum(cx+r), fnum(cy+k), fnum(cx+k), fnum(cy+r), fnum(cx), fnum(cy+r))
	fmt.Fprintf(b, "%s %s %s %s %s %s c\n", fnum(cx-k), fnum(cy+r), fnum(cx-r), fnum(cy+k), fnum(cx-r), fnum(cy))
	fmt.Fprintf(b, "%s %s %s %s %s %s c\n", fnum(cx-r), fnum(cy-k), fnum(cx-k), fnum(cy-r), fnum(cx), fnum(cy-r))
	fmt.Fprintf(b, "%s %s %s %s %s %s c\n", fnum(cx+k), fnum(cy-r), fnum(cx+r), fnum(cy-k), fnum(cx+r), fnum(cy))
}

// annotsWith appends widget references to the page's existing /Annots.
func annotsWith(page pdflib.Value, refs []uint32) string {
	var parts []string
	annots := page.Key("Annots")
	if annots.Kind() == pdflib.Array {
		for i := 0; i < annots.Len(); i++ {
			if id := annots.Index(i).GetPtr().GetID(); id != 0 {
				parts = append(parts, fmt.Sprintf("%d 0 R", id))
			}
		}
	}
	for _, id := range refs {
		parts = append(parts, fmt.Sprintf("%d 0 R", id))
	}
	return "[ " + strings.Join(parts, " ") + " ]"
}
