// Package codec implements LPVC, the Longplay Video Codec: a lossless RGB24
// frame codec for long screen recordings.
//
// Every packet is either a key frame, which carries the picture itself, or a
// delta frame, which carries the XOR difference to the previous picture of the
// same stream. The residual is stored either as raw samples or, when it uses
// at most 256 distinct colors, as a palette plus one index byte per pixel. The
// result is split into segments that are zstd-compressed in parallel.
//
// Encoder and Decoder own all stream state. Neither is safe for concurrent
// use; independent instances are.
package codec

import (
	"fmt"

	"github.com/pkg/errors"
)

// Version is the bitstream and library version.
const Version = 1

// DefaultCompressionLevel is the zstd level used when EncoderSettings carries
// no override.
const DefaultCompressionLevel = 3

var (
	// ErrInvalidMagic is returned for data that is not an LPVC packet.
	ErrInvalidMagic = errors.New("lpvc: invalid magic")
	// ErrUnsupportedVersion is returned for packets of an unknown bitstream version.
	ErrUnsupportedVersion = errors.New("lpvc: unsupported version")
	// ErrDimensionMismatch is returned when a packet was coded for another geometry.
	ErrDimensionMismatch = errors.New("lpvc: dimension mismatch")
	// ErrMissingReference is returned for a delta packet with no previous picture.
	ErrMissingReference = errors.New("lpvc: delta frame without reference frame")
	// ErrCorrupt is returned for packets whose payload is inconsistent.
	ErrCorrupt = errors.New("lpvc: corrupt packet")
	// ErrBufferTooSmall is returned when a pixel buffer cannot hold a frame.
	ErrBufferTooSmall = errors.New("lpvc: buffer too small")
)

// BitmapInfo is the frame geometry a codec instance is bound to.
type BitmapInfo struct {
	Width  int
	Height int
}

// Pixels returns the number of pixels in a frame.
func (b BitmapInfo) Pixels() int {
	return b.Width * b.Height
}

// String returns the geometry as WxH.
func (b BitmapInfo) String() string {
	return fmt.Sprintf("%dx%d", b.Width, b.Height)
}

func (b BitmapInfo) validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return errors.Errorf("lpvc: invalid bitmap size %s", b)
	}
	if b.Width > maxDimension || b.Height > maxDimension {
		return errors.Errorf("lpvc: bitmap size %s exceeds %dx%d", b, maxDimension, maxDimension)
	}
	return nil
}

// maxDimension keeps width*height*3 well inside the 32-bit body length field.
const maxDimension = 1 << 14

// EncoderSettings tunes an Encoder. The zero value is not valid:
// ZstdWorkerCount must be at least 1.
type EncoderSettings struct {
	// UsePalette enables palette coding of frames with few colors.
	UsePalette bool
	// ZstdWorkerCount bounds the number of segments compressed concurrently.
	ZstdWorkerCount int
	// ZstdCompressionLevel overrides DefaultCompressionLevel when not nil.
	// It must lie in [1, MaxCompressionLevel()].
	ZstdCompressionLevel *int
}

func (s EncoderSettings) validate() error {
	if s.ZstdWorkerCount < 1 {
		return errors.Errorf("lpvc: worker count must be at least 1, got %d", s.ZstdWorkerCount)
	}
	if l := s.ZstdCompressionLevel; l != nil && (*l < 1 || *l > MaxCompressionLevel()) {
		return errors.Errorf("lpvc: compression level must be in range 1-%d", MaxCompressionLevel())
	}
	return nil
}

// compressionLevel returns the effective zstd level.
func (s EncoderSettings) compressionLevel() int {
	if s.ZstdCompressionLevel == nil {
		return DefaultCompressionLevel
	}
	return *s.ZstdCompressionLevel
}

// MaxCompressionLevel returns the highest accepted compression level.
func MaxCompressionLevel() int {
	return 22
}

// Result reports the outcome of one Encode or Decode call.
type Result struct {
	// BytesWritten is the packet size produced by Encode. Decode leaves it 0.
	BytesWritten int
	// KeyFrame is set when the packet is independently decodable.
	KeyFrame bool
}
