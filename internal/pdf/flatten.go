package pdf

import (
	"bytes"
	"fmt"

	pdflib "github.com/digitorus/pdf"
)

// Annotation flag bits from the PDF specification.
const (
	annotFlagHidden = 1 << 1
	annotFlagNoView = 1 << 5
)

// Flatten bakes every visible annotation appearance into the page
// content and strips the interactive layer: page /Annots arrays are
// emptied and the /AcroForm entry is removed from the catalog. Filled
// form values stay visible because their normal appearance streams are
// painted in place, referenced as form XObjects at their annotation
// rectangles.
func Flatten(data []byte, compressLevel int) ([]byte, error) {
	u, err := NewUpdater(data, compressLevel)
	if err != nil {
		return nil, err
	}
	pgs, err := pages(u.Reader())
	if err != nil {
		return nil, err
	}

	for _, pg := range pgs {
		annots := pg.v.Key("Annots")
		if annots.Kind() != pdflib.Array || annots.Len() == 0 {
			continue
		}

		var stream bytes.Buffer
		xobjs := make(map[string]uint32)
		for i := 0; i < annots.Len(); i++ {
			annot := annots.Index(i)
			if flags := annot.Key("F").Int64(); flags&annotFlagHidden != 0 || flags&annotFlagNoView != 0 {
				continue
			}
			ap := annot.Key("AP").Key("N")
			if ap.Kind() == pdflib.Dict {
				// Appearance states, pick the active one.
				as := annot.Key("AS")
				if as.IsNull() {
					continue
				}
				ap = ap.Key(as.Name())
			}
			if ap.Kind() != pdflib.Stream {
				continue
			}
			apID := ap.GetPtr().GetID()
			if apID == 0 {
				continue
			}

			rect, ok := floats4(annot.Key("Rect"))
			if !ok {
				continue
			}
			bbox, ok := floats4(ap.Key("BBox"))
			if !ok {
				continue
			}
			m := appearanceMatrix(bbox, matrixFrom(ap.Key("Matrix")), rect)

			name := fmt.Sprintf("FA%d", len(xobjs)+1)
			xobjs[name] = apID
			fmt.Fprintf(&stream, "q\n%s cm\n/%s Do\nQ\n", m.String(), name)
		}

		replace := map[string]string{"Annots": "[ ]"}
		if stream.Len() > 0 {
			contentID := u.AddStream("", stream.Bytes())
			replace["Contents"] = contentsWith(pg.v, contentID)
			replace["Resources"] = mergeResources(pg.resources, map[string]map[string]uint32{"XObject": xobjs})
		}
		u.UpdateObject(pg.id, rewriteDict(pg.v, replace, nil))
	}

	root := u.Reader().Trailer().Key("Root")
	if !root.Key("AcroForm").IsNull() {
		u.UpdateObject(u.RootID(), rewriteDict(root, nil, map[string]bool{"AcroForm": true}))
	}

	return u.Bytes()
}

// appearanceMatrix maps a form XObject onto an annotation rectangle:
// the bounding box is transformed by the form matrix and the result is
// scaled and translated to coincide with the rectangle.
func appearanceMatrix(bbox [4]float64, formM Matrix, rect [4]float64) Matrix {
	xs := make([]float64, 0, 4)
	ys := make([]float64, 0, 4)
	for _, c := range [][2]float64{
		{bbox[0], bbox[1]}, {bbox[2], bbox[1]},
		{bbox[2], bbox[3]}, {bbox[0], bbox[3]},
	} {
		x, y := formM.Apply(c[0], c[1])
		xs = append(xs, x)
		ys = append(ys, y)
	}
	minX, maxX := minMax(xs)
	minY, maxY := minMax(ys)

	tw := maxX - minX
	th := maxY - minY
	if tw == 0 {
		tw = 1
	}
	if th == 0 {
		th = 1
	}
	sx := (rect[2] - rect[0]) / tw
	sy := (rect[3] - rect[1]) / th
	return Matrix{sx, 0, 0, sy, rect[0] - minX*sx, rect[1] - minY*sy}
}

func minMax(vals []float64) (min, max float64) {
	min, max = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func floats4(v pdflib.Value) ([4]float64, bool) {
	if v.Kind() != pdflib.Array || v.Len() != 4 {
		return [4]float64{}, false
	}
	var out [4]float64
	for i := 0; i < 4; i++ {
		out[i] = v.Index(i).Float64()
	}
	// Normalize so the first corner is the lower left.
	if out[0] > out[2] {
		out[0], out[2] = out[2], out[0]
	}
	if out[1] > out[3] {
		out[1], out[3] = out[3], out[1]
	}
	return out, true
}

func matrixFrom(v pdflib.Value) Matrix {
	if v.Kind() != pdflib.Array || v.Len() != 6 {
		return Identity
	}
	var m Matrix
	for i := 0; i < 6; i++ {
		m[i] = v.Index(i).Float64()
	}
	return m
}
