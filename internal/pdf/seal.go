package pdf

import (
	"bytes"
	"compress/zlib"
	"context"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	pdflib "github.com/digitorus/pdf"
	"github.com/digitorus/pdfsign/sign"
	"github.com/mattetti/filebuffer"
)

// SignerInfo carries the signing identity and the metadata embedded in
// the digital signature dictionary.
type SignerInfo struct {
	Signer      crypto.Signer
	Certificate *x509.Certificate
	Name        string
	Reason      string
	Location    string
	ContactInfo string
}

// LoadSigner reads a PEM certificate and key pair from disk.
func LoadSigner(certFile, keyFile string) (crypto.Signer, *x509.Certificate, error) {
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load signing key pair: %w", err)
	}
	signer, ok := pair.PrivateKey.(crypto.Signer)
	if !ok {
		return nil, nil, fmt.Errorf("signing key of type %T cannot sign", pair.PrivateKey)
	}
	cert, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, nil, fmt.Errorf("parse signing certificate: %w", err)
	}
	return signer, cert, nil
}

// Sealer runs the full sealing pipeline over a document: flatten the
// interactive layer, append the signing certificate, insert the signed
// field values, flatten again so the inserted widgets become static
// content, and finish with a digital signature written as one more
// incremental update.
type Sealer struct {
	pack     *FontPack
	info     SignerInfo
	compress int
}

func NewSealer(pack *FontPack, info SignerInfo) *Sealer {
	return &Sealer{pack: pack, info: info, compress: zlib.DefaultCompression}
}

// SetCompression overrides the zlib level used for generated streams.
func (s *Sealer) SetCompression(level int) { s.compress = level }

// Seal produces the sealed document from the original upload bytes.
// certificate may be nil to skip the certificate page.
func (s *Sealer) Seal(ctx context.Context, src []byte, inputs []FieldInput, certificate []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := Flatten(src, s.compress)
	if err != nil {
		return nil, fmt.Errorf("flatten document: %w", err)
	}

	if len(certificate) > 0 {
		u, err := NewUpdater(out, s.compress)
		if err != nil {
			return nil, err
		}
		if err := AppendPages(u, certificate); err != nil {
			return nil, fmt.Errorf("append certificate: %w", err)
		}
		if out, err = u.Bytes(); err != nil {
			return nil, err
		}
	}

	if out, err = InsertFields(out, s.pack, inputs, s.compress); err != nil {
		return nil, fmt.Errorf("insert fields: %w", err)
	}

	if out, err = Flatten(out, s.compress); err != nil {
		return nil, fmt.Errorf("flatten inserted fields: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.signBytes(out)
}

func (s *Sealer) signBytes(data []byte) ([]byte, error) {
	input := filebuffer.New(data)
	rdr, err := pdflib.NewReader(input, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse document for signing: %w", err)
	}

	var out bytes.Buffer
	err = sign.Sign(input, &out, rdr, int64(len(data)), sign.SignData{
		Signer:          s.info.Signer,
		Certificate:     s.info.Certificate,
		DigestAlgorithm: crypto.SHA256,
		Signature: sign.SignDataSignature{
			CertType: sign.ApprovalSignature,
			Info: sign.SignDataSignatureInfo{
				Name:        s.info.Name,
				Reason:      s.info.Reason,
				Location:    s.info.Location,
				ContactInfo: s.info.ContactInfo,
				Date:        time.Now(),
			},
		},
		CompressLevel: s.compress,
	})
	if err != nil {
		return nil, fmt.Errorf("sign document: %w", err)
	}
	return out.Bytes(), nil
}
