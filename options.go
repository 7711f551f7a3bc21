package lpvc

import (
	"github.com/sirupsen/logrus"

	"github.com/longplay/lpvc/codec"
	"github.com/longplay/lpvc/pixel"
)

// FrameEncoder is the codec capability the encode orchestrator drives.
// *codec.Encoder implements it.
type FrameEncoder interface {
	Encode(src, dst []byte, forceKeyFrame bool) (codec.Result, error)
	SafeOutputBufferSize() int
	Close() error
}

// FrameDecoder is the codec capability the decode orchestrator drives.
// *codec.Decoder implements it.
type FrameDecoder interface {
	Decode(src []byte, dst pixel.Writer) (codec.Result, error)
	Close() error
}

// EncoderFactory constructs a FrameEncoder.
type EncoderFactory func(info codec.BitmapInfo, settings codec.EncoderSettings) (FrameEncoder, error)

// DecoderFactory constructs a FrameDecoder.
type DecoderFactory func(info codec.BitmapInfo) (FrameDecoder, error)

type options struct {
	logger     logrus.FieldLogger
	allocator  Allocator
	newEncoder EncoderFactory
	newDecoder DecoderFactory
}

// Option configures OpenEncoder and OpenDecoder.
type Option func(*options)

// WithLogger sets the logger failures are reported to. The default is
// logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithAllocator sets the frame and packet buffer allocator.
func WithAllocator(a Allocator) Option {
	return func(o *options) {
		if a != nil {
			o.allocator = a
		}
	}
}

// WithEncoderFactory replaces the codec encoder constructor.
func WithEncoderFactory(f EncoderFactory) Option {
	return func(o *options) {
		if f != nil {
			o.newEncoder = f
		}
	}
}

// WithDecoderFactory replaces the codec decoder constructor.
func WithDecoderFactory(f DecoderFactory) Option {
	return func(o *options) {
		if f != nil {
			o.newDecoder = f
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		logger:     logrus.StandardLogger(),
		allocator:  NewAlignedAllocator(DefaultStrideAlign),
		newEncoder: newCodecEncoder,
		newDecoder: newCodecDecoder,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func newCodecEncoder(info codec.BitmapInfo, settings codec.EncoderSettings) (FrameEncoder, error) {
	enc, err := codec.NewEncoder(info, settings)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

func newCodecDecoder(info codec.BitmapInfo) (FrameDecoder, error) {
	dec, err := codec.NewDecoder(info)
	if err != nil {
		return nil, err
	}
	return dec, nil
}

// guard runs fn, converting a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return fn()
}
