package lpvc

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/longplay/lpvc/codec"
	"github.com/longplay/lpvc/pixel"
)

// DecodeResult reports the outcome of Decoder.DecodeOne.
type DecodeResult struct {
	// BytesConsumed is the whole packet length on success.
	BytesConsumed int
	// KeyFrame is the key flag the codec reported for the packet.
	KeyFrame bool
	// GotFrame is set when the frame holds a new picture.
	GotFrame bool
}

// Decoder turns packets into frames through a FrameDecoder. Codec failures,
// including panics, are logged and reported as ErrDecode; the decoder stays
// usable afterwards.
type Decoder struct {
	info  codec.BitmapInfo
	dec   FrameDecoder
	alloc Allocator
	log   logrus.FieldLogger
}

// OpenDecoder creates a decoder for pictures of the given size.
func OpenDecoder(info codec.BitmapInfo, opts ...Option) (*Decoder, error) {
	o := newOptions(opts)

	var dec FrameDecoder
	err := guard(func() error {
		var err error
		dec, err = o.newDecoder(info)
		return err
	})
	if err == nil && dec == nil {
		err = errors.New("decoder factory returned no decoder")
	}
	if err != nil {
		o.logger.WithFields(logrus.Fields{
			"function": "OpenDecoder",
			"size":     info.String(),
		}).Error(message(err))
		return nil, &Error{Kind: KindConstruction, Op: "open decoder", Err: err}
	}

	return &Decoder{
		info:  info,
		dec:   dec,
		alloc: o.allocator,
		log:   o.logger,
	}, nil
}

// DecodeOne decodes one packet into frame. The frame buffer is obtained from
// the allocator, so frame may be empty or reused from a previous call.
// Decoded frames are always marked PictureIntra.
func (d *Decoder) DecodeOne(packet []byte, frame *Frame) (DecodeResult, error) {
	if d == nil || d.dec == nil {
		return DecodeResult{}, ErrClosed
	}
	if frame == nil {
		return DecodeResult{}, &Error{Kind: KindCodecOperation, Op: "decode", Err: errors.New("nil frame")}
	}

	var res codec.Result
	err := guard(func() error {
		if err := d.alloc.FrameBuffer(frame, d.info); err != nil {
			return errors.Wrap(err, "cannot get frame buffer")
		}
		if frame.Width != d.info.Width || frame.Height != d.info.Height {
			return errors.Errorf("allocator returned a %dx%d frame for %s", frame.Width, frame.Height, d.info)
		}
		if err := frame.Validate(); err != nil {
			return err
		}

		var err error
		res, err = d.dec.Decode(packet, d.target(frame))
		return err
	})
	if err != nil {
		frame.KeyFrame = false
		frame.PictureType = PictureUnknown
		d.log.WithFields(logrus.Fields{
			"function": "Decoder.DecodeOne",
			"packet":   len(packet),
		}).Error(message(err))
		return DecodeResult{}, ErrDecode
	}

	frame.PictureType = PictureIntra
	frame.KeyFrame = res.KeyFrame
	return DecodeResult{
		BytesConsumed: len(packet),
		KeyFrame:      res.KeyFrame,
		GotFrame:      true,
	}, nil
}

// target returns a writer over the frame's visible pixels.
func (d *Decoder) target(frame *Frame) pixel.Writer {
	if !frame.Padded() {
		return pixel.NewLinear(frame.Data[:frame.Stride*frame.Height])
	}
	return pixel.NewView(frame.Data, frame.Width, frame.Stride)
}

// Close releases the codec. It is safe on a nil or already closed decoder.
func (d *Decoder) Close() error {
	if d == nil || d.dec == nil {
		return nil
	}
	if err := d.dec.Close(); err != nil {
		d.log.WithField("function", "Decoder.Close").Warn(message(err))
	}
	d.dec = nil
	return nil
}
