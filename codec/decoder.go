package codec

import (
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/longplay/lpvc/pixel"
)

// Decoder reconstructs frames of one geometry. It keeps the previous picture
// as the reference for delta packets. It is not safe for concurrent use.
type Decoder struct {
	info BitmapInfo

	ref    []byte
	cur    []byte
	hasRef bool
	body   []byte

	zdec *zstd.Decoder
}

// NewDecoder returns a decoder for frames of the given geometry.
func NewDecoder(info BitmapInfo) (*Decoder, error) {
	if err := info.validate(); err != nil {
		return nil, err
	}

	zdec, err := newZstdDecoder(maxBodyLen(info.Pixels()))
	if err != nil {
		return nil, errors.Wrap(err, "lpvc: cannot create zstd decoder")
	}

	frameLen := info.Pixels() * pixel.Size
	return &Decoder{
		info: info,
		ref:  make([]byte, frameLen),
		cur:  make([]byte, frameLen),
		zdec: zdec,
	}, nil
}

// maxBodyLen is the largest body a well-formed packet declares.
func maxBodyLen(pixels int) int {
	return max(pixels*pixel.Size, paletteBodyLen(maxPaletteColors, pixels))
}

// Decode decompresses the packet in src and writes exactly width*height
// pixels to dst. The decoder state is left untouched when an error is
// returned, so a later key frame resynchronizes the stream.
func (d *Decoder) Decode(src []byte, dst pixel.Writer) (Result, error) {
	h, lengths, pos, err := readHeader(src)
	if err != nil {
		return Result{}, err
	}
	if h.width != d.info.Width || h.height != d.info.Height {
		return Result{}, errors.Wrapf(ErrDimensionMismatch, "packet is %dx%d, stream is %s", h.width, h.height, d.info)
	}
	if !h.keyFrame() && !d.hasRef {
		return Result{}, ErrMissingReference
	}
	if h.bodyLen > maxBodyLen(d.info.Pixels()) {
		return Result{}, errors.Wrapf(ErrCorrupt, "body of %d bytes exceeds frame bound", h.bodyLen)
	}

	body := d.body[:0]
	for i, n := range lengths {
		body, err = d.zdec.DecodeAll(src[pos:pos+n], body)
		if err != nil {
			return Result{}, errors.Wrapf(ErrCorrupt, "segment %d: %v", i, err)
		}
		pos += n
	}
	d.body = body
	if len(body) != h.bodyLen {
		return Result{}, errors.Wrapf(ErrCorrupt, "body is %d bytes, header says %d", len(body), h.bodyLen)
	}

	if h.palette() {
		if err := expandPalette(d.cur, body, d.info.Pixels()); err != nil {
			return Result{}, err
		}
	} else {
		if len(body) != len(d.cur) {
			return Result{}, errors.Wrapf(ErrCorrupt, "raw body is %d bytes, want %d", len(body), len(d.cur))
		}
		copy(d.cur, body)
	}

	if !h.keyFrame() {
		for i := range d.cur {
			d.cur[i] ^= d.ref[i]
		}
	}

	pixel.Fill(dst, d.cur)

	d.ref, d.cur = d.cur, d.ref
	d.hasRef = true

	return Result{KeyFrame: h.keyFrame()}, nil
}

// Close releases the zstd decoder. The Decoder must not be used afterwards.
func (d *Decoder) Close() error {
	if d.zdec != nil {
		d.zdec.Close()
		d.zdec = nil
	}
	return nil
}
