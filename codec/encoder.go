package codec

import (
	"encoding/binary"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/longplay/lpvc/pixel"
)

// Encoder compresses a stream of frames of one geometry. It keeps the
// previous frame as the reference for delta frames and reuses its scratch
// buffers between calls. It is not safe for concurrent use.
type Encoder struct {
	info     BitmapInfo
	settings EncoderSettings
	workers  int
	safeSize int

	ref      []byte
	hasRef   bool
	residual []byte
	body     []byte
	comp     [][]byte
	pal      *palette

	zenc *zstd.Encoder
}

// NewEncoder returns an encoder for frames of the given geometry.
func NewEncoder(info BitmapInfo, settings EncoderSettings) (*Encoder, error) {
	if err := info.validate(); err != nil {
		return nil, err
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}

	// No packet has more segments than a full raw frame.
	frameLen := info.Pixels() * pixel.Size
	segments := segmentCount(frameLen, settings.ZstdWorkerCount)

	zenc, err := newZstdEncoder(settings.compressionLevel(), segments)
	if err != nil {
		return nil, errors.Wrap(err, "lpvc: cannot create zstd encoder")
	}

	return &Encoder{
		info:     info,
		settings: settings,
		workers:  segments,
		safeSize: worstCaseSize(frameLen, segments),
		ref:      make([]byte, frameLen),
		residual: make([]byte, frameLen),
		pal:      newPalette(),
		zenc:     zenc,
	}, nil
}

// SafeOutputBufferSize returns the largest packet Encode can produce. A
// destination of this size never makes Encode fail for lack of space.
func (e *Encoder) SafeOutputBufferSize() int {
	return e.safeSize
}

// Encode compresses the frame in src, which holds width*height pixels back to
// back, into dst. With forceKeyFrame set the packet is a key frame; otherwise
// the encoder still emits one for the first frame and on scene changes.
func (e *Encoder) Encode(src, dst []byte, forceKeyFrame bool) (Result, error) {
	frameLen := e.info.Pixels() * pixel.Size
	if len(src) < frameLen {
		return Result{}, errors.Wrapf(ErrBufferTooSmall, "source frame is %d bytes, want %d", len(src), frameLen)
	}
	src = src[:frameLen]

	key := forceKeyFrame || !e.hasRef
	if !key {
		key = e.delta(src)
	}
	if key {
		copy(e.residual, src)
	}

	h := header{width: e.info.Width, height: e.info.Height}
	if key {
		h.flags |= flagKeyFrame
	}

	body := e.residual
	if e.settings.UsePalette && e.pal.build(e.residual) &&
		paletteBodyLen(len(e.pal.colors), e.info.Pixels()) < frameLen {
		e.body = e.pal.appendBody(e.body[:0], e.residual)
		body = e.body
		h.flags |= flagPalette
	}
	h.bodyLen = len(body)

	segs := splitSegments(len(body), segmentCount(len(body), e.workers))
	h.segments = len(segs)
	if err := e.compress(body, segs); err != nil {
		return Result{}, err
	}

	total := headerSize + len(segs)*segmentEntrySize
	for _, c := range e.comp[:len(segs)] {
		total += len(c)
	}
	if total > len(dst) {
		return Result{}, errors.Wrapf(ErrBufferTooSmall, "packet needs %d bytes, destination holds %d", total, len(dst))
	}

	h.put(dst)
	pos := headerSize
	for _, c := range e.comp[:len(segs)] {
		binary.BigEndian.PutUint32(dst[pos:], uint32(len(c)))
		pos += segmentEntrySize
	}
	for _, c := range e.comp[:len(segs)] {
		pos += copy(dst[pos:], c)
	}

	copy(e.ref, src)
	e.hasRef = true

	return Result{BytesWritten: total, KeyFrame: key}, nil
}

// delta stores src XOR the reference frame in the residual buffer. It reports
// a scene change, which calls for a key frame, when at least three quarters
// of the pixels differ from the reference.
func (e *Encoder) delta(src []byte) bool {
	changed := 0
	for i := 0; i+pixel.Size <= len(src); i += pixel.Size {
		r := src[i] ^ e.ref[i]
		g := src[i+1] ^ e.ref[i+1]
		b := src[i+2] ^ e.ref[i+2]
		e.residual[i], e.residual[i+1], e.residual[i+2] = r, g, b
		if r|g|b != 0 {
			changed++
		}
	}
	return changed*4 >= e.info.Pixels()*3
}

// compress fills e.comp with one zstd frame per segment of body, using one
// goroutine per segment.
func (e *Encoder) compress(body []byte, segs []segment) error {
	for len(e.comp) < len(segs) {
		e.comp = append(e.comp, nil)
	}
	if len(segs) == 1 {
		e.comp[0] = e.zenc.EncodeAll(body, e.comp[0][:0])
		return nil
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, s := range segs {
		i, s := i, s
		g.Go(func() error {
			e.comp[i] = e.zenc.EncodeAll(body[s.start:s.end], e.comp[i][:0])
			return nil
		})
	}
	return g.Wait()
}

// Close releases the zstd encoder. The Encoder must not be used afterwards.
func (e *Encoder) Close() error {
	if e.zenc == nil {
		return nil
	}
	err := e.zenc.Close()
	e.zenc = nil
	return err
}
