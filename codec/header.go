package codec

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const magic = "LPVC"

const (
	flagKeyFrame = 1 << 0
	flagPalette  = 1 << 1
)

// headerSize is the fixed part of a packet:
// magic(4) version(1) flags(1) width(4) height(4) bodyLen(4) segments(2).
const headerSize = 20

// segmentEntrySize is the size of one compressed segment length.
const segmentEntrySize = 4

type header struct {
	flags    byte
	width    int
	height   int
	bodyLen  int
	segments int
}

func (h header) keyFrame() bool { return h.flags&flagKeyFrame != 0 }
func (h header) palette() bool  { return h.flags&flagPalette != 0 }

// put writes h at the start of dst, which must hold headerSize bytes.
func (h header) put(dst []byte) {
	copy(dst, magic)
	dst[4] = Version
	dst[5] = h.flags
	binary.BigEndian.PutUint32(dst[6:], uint32(h.width))
	binary.BigEndian.PutUint32(dst[10:], uint32(h.height))
	binary.BigEndian.PutUint32(dst[14:], uint32(h.bodyLen))
	binary.BigEndian.PutUint16(dst[18:], uint16(h.segments))
}

// readHeader parses the fixed header and the segment length table. It returns
// the header, the compressed segment lengths and the offset of the first
// segment payload.
func readHeader(src []byte) (header, []int, int, error) {
	if len(src) < headerSize {
		return header{}, nil, 0, errors.Wrapf(ErrCorrupt, "packet of %d bytes is shorter than the header", len(src))
	}
	if string(src[:4]) != magic {
		return header{}, nil, 0, ErrInvalidMagic
	}
	if src[4] != Version {
		return header{}, nil, 0, errors.Wrapf(ErrUnsupportedVersion, "version %d", src[4])
	}

	h := header{
		flags:    src[5],
		width:    int(binary.BigEndian.Uint32(src[6:])),
		height:   int(binary.BigEndian.Uint32(src[10:])),
		bodyLen:  int(binary.BigEndian.Uint32(src[14:])),
		segments: int(binary.BigEndian.Uint16(src[18:])),
	}
	if h.segments == 0 {
		return header{}, nil, 0, errors.Wrap(ErrCorrupt, "packet has no segments")
	}

	pos := headerSize
	if len(src)-pos < h.segments*segmentEntrySize {
		return header{}, nil, 0, errors.Wrap(ErrCorrupt, "segment table truncated")
	}
	lengths := make([]int, h.segments)
	total := 0
	for i := range lengths {
		lengths[i] = int(binary.BigEndian.Uint32(src[pos:]))
		total += lengths[i]
		pos += segmentEntrySize
	}
	if len(src)-pos < total {
		return header{}, nil, 0, errors.Wrapf(ErrCorrupt, "payload truncated: have %d, need %d", len(src)-pos, total)
	}
	return h, lengths, pos, nil
}
