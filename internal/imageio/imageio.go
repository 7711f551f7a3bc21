// Package imageio converts between still images and RGB24 frames.
package imageio

import (
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/longplay/lpvc"
	"github.com/longplay/lpvc/pixel"
)

// Format names an output image format.
type Format string

const (
	PNG  Format = "png"
	QOI  Format = "qoi"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
)

// ErrUnknownFormat is returned for an output format that cannot be written.
var ErrUnknownFormat = errors.New("imageio: unknown image format")

// FormatFromPath picks the output format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return PNG, nil
	case ".qoi":
		return QOI, nil
	case ".bmp":
		return BMP, nil
	case ".tif", ".tiff":
		return TIFF, nil
	}
	return "", errors.Wrapf(ErrUnknownFormat, "%q", path)
}

// ToRGBA copies any image into an *image.RGBA with bounds starting at (0,0).
func ToRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// ToFrame converts img to an unpadded RGB24 frame. Alpha is dropped, which
// composites translucent pixels over black.
func ToFrame(img image.Image) *lpvc.Frame {
	rgba := ToRGBA(img)
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	f := lpvc.NewFrame(w, h)
	dst := pixel.NewLinear(f.Data)
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			dst.Set(pixel.Color{R: row[x], G: row[x+1], B: row[x+2]})
			dst.Next()
		}
	}
	return f
}

// ToImage converts a frame, padded or not, to an opaque *image.RGBA.
func ToImage(f *lpvc.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	src := pixel.NewView(f.Data, f.Width, f.Stride)
	for y := 0; y < f.Height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+f.Width*4]
		for x := 0; x < len(row); x += 4 {
			c := src.At()
			row[x], row[x+1], row[x+2], row[x+3] = c.R, c.G, c.B, 0xFF
			src.Next()
		}
	}
	return img
}

// Decode reads an image in any registered format (PNG, JPEG, GIF, BMP, TIFF
// or QOI) and returns it as a frame together with the format name.
func Decode(r io.Reader) (*lpvc.Frame, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", errors.Wrap(err, "imageio: cannot decode image")
	}
	return ToFrame(img), format, nil
}

// Encode writes f to w in the given format.
func Encode(w io.Writer, f *lpvc.Frame, format Format) error {
	img := ToImage(f)
	var err error
	switch format {
	case PNG:
		err = png.Encode(w, img)
	case QOI:
		err = qoi.Encode(w, img)
	case BMP:
		err = bmp.Encode(w, img)
	case TIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return errors.Wrapf(ErrUnknownFormat, "%q", format)
	}
	return errors.Wrapf(err, "imageio: cannot encode %s", format)
}

// Load reads the image file at path.
func Load(path string) (*lpvc.Frame, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	f, _, err := Decode(in)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return f, nil
}

// Save writes f to path in the format named by its extension.
func Save(path string, f *lpvc.Frame) (err error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	return Encode(out, f, format)
}
