package codec

import (
	"github.com/pkg/errors"

	"github.com/longplay/lpvc/pixel"
)

// maxPaletteColors is the largest palette an index byte can address.
const maxPaletteColors = 256

// palette holds the distinct colors of one residual in order of first use.
// It is reused between frames.
type palette struct {
	colors []pixel.Color
	index  map[uint32]uint8
}

func newPalette() *palette {
	return &palette{
		colors: make([]pixel.Color, 0, maxPaletteColors),
		index:  make(map[uint32]uint8, maxPaletteColors),
	}
}

func colorKey(r, g, b byte) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// build collects the colors of pix. It gives up and returns false as soon as
// more than maxPaletteColors distinct colors are seen.
func (p *palette) build(pix []byte) bool {
	p.colors = p.colors[:0]
	clear(p.index)

	last := ^uint32(0)
	for i := 0; i+pixel.Size <= len(pix); i += pixel.Size {
		k := colorKey(pix[i], pix[i+1], pix[i+2])
		if k == last {
			continue
		}
		last = k
		if _, ok := p.index[k]; ok {
			continue
		}
		if len(p.colors) == maxPaletteColors {
			return false
		}
		p.index[k] = uint8(len(p.colors))
		p.colors = append(p.colors, pixel.Color{R: pix[i], G: pix[i+1], B: pix[i+2]})
	}
	return true
}

// paletteBodyLen is the size of a palette body:
// count-1 (1) | colors (3 each) | one index per pixel.
func paletteBodyLen(colors, pixels int) int {
	return 1 + colors*pixel.Size + pixels
}

// appendBody appends the palette body for pix to dst. build must have
// succeeded on the same pix.
func (p *palette) appendBody(dst, pix []byte) []byte {
	dst = append(dst, byte(len(p.colors)-1))
	for _, c := range p.colors {
		dst = append(dst, c.R, c.G, c.B)
	}

	last := ^uint32(0)
	var idx uint8
	for i := 0; i+pixel.Size <= len(pix); i += pixel.Size {
		k := colorKey(pix[i], pix[i+1], pix[i+2])
		if k != last {
			idx = p.index[k]
			last = k
		}
		dst = append(dst, idx)
	}
	return dst
}

// expandPalette decodes a palette body into dst, which holds pixels*3 bytes.
func expandPalette(dst, body []byte, pixels int) error {
	if len(body) < 1 {
		return errors.Wrap(ErrCorrupt, "empty palette body")
	}
	count := int(body[0]) + 1
	if len(body) != paletteBodyLen(count, pixels) {
		return errors.Wrapf(ErrCorrupt, "palette body is %d bytes, want %d", len(body), paletteBodyLen(count, pixels))
	}

	colors := body[1 : 1+count*pixel.Size]
	indices := body[1+count*pixel.Size:]
	for i, idx := range indices {
		if int(idx) >= count {
			return errors.Wrapf(ErrCorrupt, "palette index %d out of range %d", idx, count)
		}
		c := colors[int(idx)*pixel.Size:]
		o := i * pixel.Size
		dst[o], dst[o+1], dst[o+2] = c[0], c[1], c[2]
	}
	return nil
}
