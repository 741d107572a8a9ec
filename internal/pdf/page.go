package pdf

import (
	"fmt"

	pdflib "github.com/digitorus/pdf"
)

// pageRef is a resolved page object together with its effective
// resources and its object number.
type pageRef struct {
	id        uint32
	v         pdflib.Value
	resources pdflib.Value
	geo       PageGeometry
}

// pages enumerates the document's pages in order.
func pages(rdr *pdflib.Reader) ([]pageRef, error) {
	n := rdr.NumPage()
	out := make([]pageRef, 0, n)
	for i := 1; i <= n; i++ {
		p := rdr.Page(i)
		if p.V.IsNull() {
			return nil, fmt.Errorf("page %d not found", i)
		}
		id := p.V.GetPtr().GetID()
		if id == 0 {
			return nil, fmt.Errorf("page %d is not an indirect object", i)
		}
		out = append(out, pageRef{
			id:        id,
			v:         p.V,
			resources: p.Resources(),
			geo:       pageGeometry(p.V),
		})
	}
	return out, nil
}
