package lpvc

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/longplay/lpvc/codec"
	"github.com/longplay/lpvc/pixel"
)

// EncodeResult reports the outcome of Encoder.EncodeOne.
type EncodeResult struct {
	// BytesWritten is the packet payload size.
	BytesWritten int
	// KeyFrame is the key flag the codec reported, whether forced or not.
	KeyFrame bool
	// GotPacket is set when the packet holds a new payload.
	GotPacket bool
}

// Encoder turns frames into packets through a FrameEncoder and enforces the
// key frame cadence configured by Config.GOPSize.
//
// Codec failures, including panics, are logged and reported as ErrEncode. A
// codec that reports writing more than its own worst case, or more than the
// packet buffer holds, has broken its contract; EncodeOne panics in that case
// instead of returning.
type Encoder struct {
	info  codec.BitmapInfo
	cfg   Config
	enc   FrameEncoder
	alloc Allocator
	log   logrus.FieldLogger

	// sinceKeyFrame counts frames encoded since the last forced key frame,
	// or since any key frame with GOPResetOnKeyFrame.
	sinceKeyFrame int
	compact       []byte
}

// OpenEncoder validates cfg and creates an encoder for pictures of the given
// size. An out of range compression level fails with
// ErrInvalidConfiguration before the codec is constructed.
func OpenEncoder(info codec.BitmapInfo, cfg Config, opts ...Option) (*Encoder, error) {
	o := newOptions(opts)
	log := o.logger.WithFields(logrus.Fields{
		"function": "OpenEncoder",
		"size":     info.String(),
	})

	settings, err := BuildSettings(cfg)
	if err != nil {
		log.Error(message(err))
		return nil, err
	}

	var enc FrameEncoder
	err = guard(func() error {
		var err error
		enc, err = o.newEncoder(info, settings)
		return err
	})
	if err == nil && enc == nil {
		err = errors.New("encoder factory returned no encoder")
	}
	if err != nil {
		log.Error(message(err))
		return nil, &Error{Kind: KindConstruction, Op: "open encoder", Err: err}
	}

	return &Encoder{
		info:  info,
		cfg:   cfg,
		enc:   enc,
		alloc: o.allocator,
		log:   o.logger,
	}, nil
}

// FramesSinceKeyFrame returns the GOP counter.
func (e *Encoder) FramesSinceKeyFrame() int {
	return e.sinceKeyFrame
}

// EncodeOne encodes src into pkt. The packet buffer is obtained from the
// allocator at the codec's safe output size. When the GOP counter reaches
// GOPSize-1 the codec is asked for a key frame and the counter restarts at
// zero; otherwise it advances by one. On failure the packet is left empty and
// the counter is not touched.
func (e *Encoder) EncodeOne(src *Frame, pkt *Packet) (EncodeResult, error) {
	if e == nil || e.enc == nil {
		return EncodeResult{}, ErrClosed
	}
	if src == nil || pkt == nil {
		return EncodeResult{}, &Error{Kind: KindCodecOperation, Op: "encode", Err: errors.New("nil frame or packet")}
	}

	force := e.cfg.GOPSize > 0 && e.sinceKeyFrame >= e.cfg.GOPSize-1

	var res codec.Result
	var limit int
	err := guard(func() error {
		limit = e.enc.SafeOutputBufferSize()
		if err := e.alloc.PacketBuffer(pkt, limit); err != nil {
			return errors.Wrap(err, "cannot get packet buffer")
		}
		pix, err := e.source(src)
		if err != nil {
			return err
		}
		res, err = e.enc.Encode(pix, pkt.Data, force)
		return err
	})
	if err != nil {
		pkt.Size = 0
		pkt.Flags &^= PacketFlagKey
		e.log.WithFields(logrus.Fields{
			"function": "Encoder.EncodeOne",
			"forced":   force,
		}).Error(message(err))
		return EncodeResult{}, ErrEncode
	}

	if res.BytesWritten < 0 || res.BytesWritten > min(limit, len(pkt.Data)) {
		panic(fmt.Sprintf("lpvc: codec reported %d bytes written, worst case is %d and the packet holds %d",
			res.BytesWritten, limit, len(pkt.Data)))
	}

	pkt.Size = res.BytesWritten
	if res.KeyFrame {
		pkt.Flags |= PacketFlagKey
	} else {
		pkt.Flags &^= PacketFlagKey
	}

	switch {
	case force, res.KeyFrame && e.cfg.GOPResetOnKeyFrame:
		e.sinceKeyFrame = 0
	default:
		e.sinceKeyFrame++
	}

	return EncodeResult{
		BytesWritten: res.BytesWritten,
		KeyFrame:     res.KeyFrame,
		GotPacket:    true,
	}, nil
}

// source returns the visible pixels of f packed back to back. Unpadded frames
// are passed through; padded ones are compacted into a scratch buffer.
func (e *Encoder) source(f *Frame) ([]byte, error) {
	if f.Width != e.info.Width || f.Height != e.info.Height {
		return nil, errors.Errorf("frame is %dx%d, encoder expects %s", f.Width, f.Height, e.info)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	n := pixel.RowBytes(f.Width) * f.Height
	if !f.Padded() {
		return f.Data[:n], nil
	}
	if cap(e.compact) < n {
		e.compact = make([]byte, n)
	}
	e.compact = e.compact[:n]
	pixel.Gather(e.compact, pixel.NewView(f.Data, f.Width, f.Stride))
	return e.compact, nil
}

// Close releases the codec. It is safe on a nil or already closed encoder.
func (e *Encoder) Close() error {
	if e == nil || e.enc == nil {
		return nil
	}
	if err := e.enc.Close(); err != nil {
		e.log.WithField("function", "Encoder.Close").Warn(message(err))
	}
	e.enc = nil
	return nil
}
