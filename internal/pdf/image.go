package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
)

// Signature scans come in at whatever resolution the client captured.
// Anything wider than this gets resampled down before embedding.
const maxImageDimension = 1500

// AddImage decodes PNG or JPEG data and registers it as an image
// XObject. JPEG data without transparency passes through as DCTDecode;
// everything else is flattened to raw RGB with a soft mask carrying the
// alpha channel when one is present.
func (u *Updater) AddImage(data []byte) (id uint32, width, height int, err error) {
	if len(data) == 0 {
		return 0, 0, 0, fmt.Errorf("empty image data")
	}
	srcImg, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("decode image: %w", err)
	}
	srcImg, resampled := downscale(srcImg)
	if resampled {
		format = ""
	}

	bounds := srcImg.Bounds()
	width, height = bounds.Dx(), bounds.Dy()

	var rgbBuf, alphaBuf bytes.Buffer
	var rgbWriter, alphaWriter io.Writer = &rgbBuf, &alphaBuf
	useCompression := u.compress != zlib.NoCompression
	var zlibRGB, zlibAlpha *zlib.Writer
	if useCompression {
		zlibRGB, _ = zlib.NewWriterLevel(&rgbBuf, u.compress)
		zlibAlpha, _ = zlib.NewWriterLevel(&alphaBuf, u.compress)
		rgbWriter, alphaWriter = zlibRGB, zlibAlpha
	}

	hasAlpha := false
	rgbRow := make([]byte, 0, width*3)
	alphaRow := make([]byte, 0, width)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		rgbRow = rgbRow[:0]
		alphaRow = alphaRow[:0]
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := srcImg.At(x, y).RGBA()
			a8 := uint8(a >> 8)
			if a8 < 255 {
				hasAlpha = true
			}
			alphaRow = append(alphaRow, a8)
			rgbRow = append(rgbRow, uint8(r>>8), uint8(g>>8), uint8(b>>8))
		}
		rgbWriter.Write(rgbRow)
		alphaWriter.Write(alphaRow)
	}
	if useCompression {
		zlibRGB.Close()
		zlibAlpha.Close()
	}

	filter := ""
	if useCompression {
		filter = " /Filter /FlateDecode"
	}

	var smaskID uint32
	if hasAlpha {
		var smask bytes.Buffer
		fmt.Fprintf(&smask, "<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8%s /Length %d >>\nstream\n",
			width, height, filter, alphaBuf.Len())
		smask.Write(alphaBuf.Bytes())
		smask.WriteString("\nendstream")
		smaskID = u.AddObject(smask.Bytes())
	}

	var obj bytes.Buffer
	obj.WriteString("<< /Type /XObject /Subtype /Image\n")
	fmt.Fprintf(&obj, "  /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8\n", width, height)
	if smaskID != 0 {
		fmt.Fprintf(&obj, "  /SMask %d 0 R\n", smaskID)
	}
	if format == "jpeg" && !hasAlpha {
		fmt.Fprintf(&obj, "  /Filter /DCTDecode /Length %d >>\nstream\n", len(data))
		obj.Write(data)
	} else {
		fmt.Fprintf(&obj, " %s /Length %d >>\nstream\n", filter, rgbBuf.Len())
		obj.Write(rgbBuf.Bytes())
	}
	obj.WriteString("\nendstream")

	return u.AddObject(obj.Bytes()), width, height, nil
}

// downscale resamples images larger than maxImageDimension on either
// axis, preserving aspect ratio.
func downscale(src image.Image) (image.Image, bool) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxImageDimension && h <= maxImageDimension {
		return src, false
	}
	scale := float64(maxImageDimension) / float64(w)
	if h > w {
		scale = float64(maxImageDimension) / float64(h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst, true
}
