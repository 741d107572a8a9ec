package pdf

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"sort"

	pdflib "github.com/digitorus/pdf"
)

// ErrUnsupportedXref is returned for documents whose cross-reference
// data is stored in a stream rather than a table.
var ErrUnsupportedXref = errors.New("pdf: cross-reference streams are not supported")

// Updater builds an incremental update on top of an existing document.
// The source bytes are never modified; added and rewritten objects are
// appended together with a new cross-reference table and trailer, so
// every revision of the document stays recoverable from the output.
type Updater struct {
	src      []byte
	rdr      *pdflib.Reader
	nextID   uint32
	added    []addedObject
	updated  map[uint32][]byte
	compress int
}

type addedObject struct {
	id   uint32
	body []byte
}

// NewUpdater parses data and prepares an incremental update over it.
func NewUpdater(data []byte, compressLevel int) (*Updater, error) {
	rdr, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	if rdr.XrefInformation.Type != "table" {
		return nil, ErrUnsupportedXref
	}
	return &Updater{
		src:      data,
		rdr:      rdr,
		nextID:   uint32(rdr.XrefInformation.ItemCount),
		updated:  make(map[uint32][]byte),
		compress: compressLevel,
	}, nil
}

// Reader exposes the parsed source document.
func (u *Updater) Reader() *pdflib.Reader { return u.rdr }

// RootID returns the object number of the document catalog.
func (u *Updater) RootID() uint32 {
	return u.rdr.Trailer().Key("Root").GetPtr().GetID()
}

// AddObject appends a new object body (without obj/endobj wrappers) and
// returns its object number.
func (u *Updater) AddObject(body []byte) uint32 {
	id := u.nextID
	u.nextID++
	u.added = append(u.added, addedObject{id: id, body: body})
	return id
}

// AddStream appends a new stream object. The dict argument holds the
// stream dictionary entries without the surrounding << >> and without
// /Length or /Filter, which are filled in here.
func (u *Updater) AddStream(dict string, data []byte) uint32 {
	return u.AddObject(u.streamBody(dict, data))
}

// streamBody builds a stream object body, compressing the data at the
// updater's configured level.
func (u *Updater) streamBody(dict string, data []byte) []byte {
	filter := ""
	if u.compress != zlib.NoCompression {
		var buf bytes.Buffer
		zw, _ := zlib.NewWriterLevel(&buf, u.compress)
		zw.Write(data)
		zw.Close()
		data = buf.Bytes()
		filter = " /Filter /FlateDecode"
	}
	var body bytes.Buffer
	fmt.Fprintf(&body, "<< %s%s /Length %d >>\nstream\n", dict, filter, len(data))
	body.Write(data)
	body.WriteString("\nendstream")
	return body.Bytes()
}

// setObjectBody fills in the body of an object reserved with a nil
// AddObject, used when copying object graphs that may contain cycles.
func (u *Updater) setObjectBody(id uint32, body []byte) {
	for i := range u.added {
		if u.added[i].id == id {
			u.added[i].body = body
			return
		}
	}
}

// UpdateObject replaces an existing object in the next revision.
func (u *Updater) UpdateObject(id uint32, body []byte) {
	u.updated[id] = body
}

// Bytes serializes the incremental update: the untouched source,
// followed by the appended objects, a cross-reference table with one
// subsection per rewritten object plus one for the new block, and a
// trailer chaining back to the previous revision.
func (u *Updater) Bytes() ([]byte, error) {
	if len(u.added) == 0 && len(u.updated) == 0 {
		return u.src, nil
	}

	out := bytes.NewBuffer(make([]byte, 0, len(u.src)+4096))
	out.Write(u.src)
	if len(u.src) > 0 && u.src[len(u.src)-1] != '\n' {
		out.WriteByte('\n')
	}

	updatedIDs := make([]uint32, 0, len(u.updated))
	for id := range u.updated {
		updatedIDs = append(updatedIDs, id)
	}
	sort.Slice(updatedIDs, func(i, j int) bool { return updatedIDs[i] < updatedIDs[j] })

	updatedOffsets := make(map[uint32]int64, len(updatedIDs))
	for _, id := range updatedIDs {
		updatedOffsets[id] = int64(out.Len())
		fmt.Fprintf(out, "%d 0 obj\n", id)
		out.Write(u.updated[id])
		out.WriteString("\nendobj\n")
	}

	addedOffsets := make([]int64, len(u.added))
	for i, obj := range u.added {
		addedOffsets[i] = int64(out.Len())
		fmt.Fprintf(out, "%d 0 obj\n", obj.id)
		out.Write(obj.body)
		out.WriteString("\nendobj\n")
	}

	xrefStart := int64(out.Len())
	out.WriteString("xref\n")
	for _, id := range updatedIDs {
		fmt.Fprintf(out, "%d 1\n", id)
		fmt.Fprintf(out, "%010d 00000 n\r\n", updatedOffsets[id])
	}
	if len(u.added) > 0 {
		fmt.Fprintf(out, "%d %d\n", u.added[0].id, len(u.added))
		for _, off := range addedOffsets {
			fmt.Fprintf(out, "%010d 00000 n\r\n", off)
		}
	}

	trailer := u.rdr.Trailer()
	rootPtr := trailer.Key("Root").GetPtr()
	if rootPtr.GetID() == 0 {
		return nil, errors.New("pdf: trailer has no root")
	}
	out.WriteString("trailer\n<<\n")
	fmt.Fprintf(out, "  /Size %d\n", u.nextID)
	fmt.Fprintf(out, "  /Root %d 0 R\n", rootPtr.GetID())
	if infoPtr := trailer.Key("Info").GetPtr(); infoPtr.GetID() != 0 {
		fmt.Fprintf(out, "  /Info %d 0 R\n", infoPtr.GetID())
	}
	fmt.Fprintf(out, "  /Prev %d\n", u.rdr.XrefInformation.StartPos)
	out.WriteString(">>\n")
	fmt.Fprintf(out, "startxref\n%d\n%%%%EOF\n", xrefStart)

	return out.Bytes(), nil
}
