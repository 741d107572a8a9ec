package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	pdflib "github.com/digitorus/pdf"
	"github.com/jung-kurt/gofpdf"
)

// CertificateRecipient is one row of the signing certificate.
type CertificateRecipient struct {
	Name      string
	Email     string
	Role      string
	Signature string
	SignedAt  *time.Time
	RequestID string
	AuthLevel string
}

// CertificateData feeds the signing certificate page appended to a
// sealed document.
type CertificateData struct {
	Title       string
	DocumentID  string
	SiteName    string
	CompletedAt time.Time
	Recipients  []CertificateRecipient
}

// CertificateRenderer produces the certificate as a standalone PDF; its
// pages are imported into the sealed document afterwards. The contract
// is plain PDF bytes so a remote renderer can satisfy it as well.
type CertificateRenderer interface {
	Render(ctx context.Context, data CertificateData) ([]byte, error)
}

// GofpdfRenderer renders the certificate natively.
type GofpdfRenderer struct{}

func NewGofpdfRenderer() *GofpdfRenderer { return &GofpdfRenderer{} }

// Render lays the certificate out as a table of recipients with their
// signature text and timestamps, paginating as needed.
func (r *GofpdfRenderer) Render(ctx context.Context, data CertificateData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(12, 16, 12)
	doc.SetAutoPageBreak(true, 18)
	doc.AddPage()

	doc.SetFont("Arial", "B", 16)
	title := data.Title
	if title == "" {
		title = "Signing Certificate"
	}
	doc.CellFormat(0, 10, title, "", 1, "C", false, 0, "")

	doc.SetFont("Arial", "", 9)
	doc.SetTextColor(90, 90, 90)
	doc.CellFormat(0, 6, fmt.Sprintf("Document ID: %s", data.DocumentID), "", 1, "C", false, 0, "")
	if !data.CompletedAt.IsZero() {
		doc.CellFormat(0, 6, fmt.Sprintf("Completed on %s", data.CompletedAt.UTC().Format("January 2, 2006 15:04 MST")), "", 1, "C", false, 0, "")
	}
	doc.Ln(4)
	doc.SetTextColor(0, 0, 0)

	headers := []string{"Signer", "Role", "Signature", "Signed At"}
	widths := []float64{58, 26, 60, 42}
	doc.SetFont("Arial", "B", 9)
	doc.SetFillColor(240, 240, 240)
	for i, h := range headers {
		doc.CellFormat(widths[i], 8, h, "1", 0, "L", true, 0, "")
	}
	doc.Ln(-1)

	for _, rcpt := range data.Recipients {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc.SetFont("Arial", "B", 9)
		signer := rcpt.Name
		if signer == "" {
			signer = rcpt.Email
		}
		doc.CellFormat(widths[0], 12, clipText(doc, signer, widths[0]-2), "LTR", 0, "L", false, 0, "")
		doc.SetFont("Arial", "", 9)
		doc.CellFormat(widths[1], 12, roleLabel(rcpt.Role), "LTR", 0, "L", false, 0, "")
		doc.SetFont("Arial", "I", 12)
		doc.CellFormat(widths[2], 12, clipText(doc, rcpt.Signature, widths[2]-2), "LTR", 0, "C", false, 0, "")
		doc.SetFont("Arial", "", 8)
		signedAt := ""
		if rcpt.SignedAt != nil {
			signedAt = rcpt.SignedAt.UTC().Format("2006-01-02 15:04:05 MST")
		}
		doc.CellFormat(widths[3], 12, signedAt, "LTR", 1, "L", false, 0, "")

		doc.SetFont("Arial", "", 7)
		doc.SetTextColor(120, 120, 120)
		detail := rcpt.Email
		if rcpt.RequestID != "" {
			detail += "  -  Request " + rcpt.RequestID
		}
		if rcpt.AuthLevel != "" {
			detail += "  -  " + rcpt.AuthLevel
		}
		doc.CellFormat(widths[0]+widths[1]+widths[2]+widths[3], 5, clipText(doc, detail, widths[0]+widths[1]+widths[2]+widths[3]-2), "LBR", 1, "L", false, 0, "")
		doc.SetTextColor(0, 0, 0)
	}

	if data.SiteName != "" {
		doc.Ln(6)
		doc.SetFont("Arial", "", 8)
		doc.SetTextColor(120, 120, 120)
		doc.CellFormat(0, 5, fmt.Sprintf("Generated by %s", data.SiteName), "", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func roleLabel(role string) string {
	role = strings.ToLower(role)
	if role == "" {
		return "Signer"
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

func clipText(doc *gofpdf.Fpdf, text string, width float64) string {
	for doc.GetStringWidth(text) > width && len(text) > 1 {
		text = text[:len(text)-1]
	}
	return text
}

// AppendPages copies every page of src onto the end of the document
// under update: content streams are concatenated and re-encoded, the
// resource graph is imported object by object, and the root page tree
// gains the new kids.
func AppendPages(u *Updater, src []byte) error {
	srcRdr, err := pdflib.NewReader(bytes.NewReader(src), int64(len(src)))
	if err != nil {
		return fmt.Errorf("parse appended document: %w", err)
	}

	root := u.Reader().Trailer().Key("Root")
	pagesNode := root.Key("Pages")
	pagesID := pagesNode.GetPtr().GetID()
	if pagesID == 0 {
		return fmt.Errorf("document has no page tree")
	}

	memo := make(map[uint32]uint32)
	var newKids []uint32
	for i := 1; i <= srcRdr.NumPage(); i++ {
		page := srcRdr.Page(i)
		if page.V.IsNull() {
			return fmt.Errorf("appended page %d not found", i)
		}

		var content bytes.Buffer
		contents := page.V.Key("Contents")
		switch contents.Kind() {
		case pdflib.Array:
			for j := 0; j < contents.Len(); j++ {
				if rd := contents.Index(j).Reader(); rd != nil {
					if _, err := io.Copy(&content, rd); err != nil {
						return fmt.Errorf("read appended page %d: %w", i, err)
					}
					content.WriteString("\n")
				}
			}
		case pdflib.Stream:
			if rd := contents.Reader(); rd != nil {
				if _, err := io.Copy(&content, rd); err != nil {
					return fmt.Errorf("read appended page %d: %w", i, err)
				}
			}
		}
		contentID := u.AddStream("", content.Bytes())

		resStr := "<< >>"
		if res := page.Resources(); !res.IsNull() {
			// Passing the dict's own id serializes it inline while its
			// children are still imported as copied objects.
			resStr, err = u.importValue(res, res.GetPtr().GetID(), memo)
			if err != nil {
				return fmt.Errorf("import resources of appended page %d: %w", i, err)
			}
		}

		box := [4]float64{0, 0, 612, 792}
		if mb, ok := floats4(inherited(page.V, "MediaBox")); ok {
			box = mb
		}

		body := fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [ %s %s %s %s ] /Resources %s /Contents %d 0 R >>",
			pagesID, fnum(box[0]), fnum(box[1]), fnum(box[2]), fnum(box[3]), resStr, contentID)
		newKids = append(newKids, u.AddObject([]byte(body)))
	}

	if len(newKids) == 0 {
		return nil
	}

	kids := pagesNode.Key("Kids")
	var kidRefs []string
	if kids.Kind() == pdflib.Array {
		for i := 0; i < kids.Len(); i++ {
			if id := kids.Index(i).GetPtr().GetID(); id != 0 {
				kidRefs = append(kidRefs, fmt.Sprintf("%d 0 R", id))
			}
		}
	}
	for _, id := range newKids {
		kidRefs = append(kidRefs, fmt.Sprintf("%d 0 R", id))
	}
	count := pagesNode.Key("Count").Int64() + int64(len(newKids))

	u.UpdateObject(pagesID, rewriteDict(pagesNode, map[string]string{
		"Kids":  "[ " + strings.Join(kidRefs, " ") + " ]",
		"Count": fmt.Sprintf("%d", count),
	}, nil))
	return nil
}
