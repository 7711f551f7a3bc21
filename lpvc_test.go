package lpvc

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/longplay/lpvc/codec"
	"github.com/longplay/lpvc/pixel"
)

// fakeEncoder records the force flags it is called with. keyFrame decides the
// reported key flag for the n-th call (1-indexed); by default it echoes the
// force flag.
type fakeEncoder struct {
	safe     int
	written  int
	keyFrame func(n int, force bool) bool
	err      error
	panicV   any
	closeErr error

	forced []bool
	closed int
}

func (f *fakeEncoder) Encode(src, dst []byte, force bool) (codec.Result, error) {
	f.forced = append(f.forced, force)
	if f.panicV != nil {
		panic(f.panicV)
	}
	if f.err != nil {
		return codec.Result{}, f.err
	}
	key := force
	if f.keyFrame != nil {
		key = f.keyFrame(len(f.forced), force)
	}
	n := f.written
	if n == 0 {
		n = 1
	}
	return codec.Result{BytesWritten: n, KeyFrame: key}, nil
}

func (f *fakeEncoder) SafeOutputBufferSize() int {
	if f.safe == 0 {
		return 64
	}
	return f.safe
}

func (f *fakeEncoder) Close() error {
	f.closed++
	return f.closeErr
}

// forcedAt returns the 1-indexed calls that asked for a key frame.
func (f *fakeEncoder) forcedAt() []int {
	var at []int
	for i, force := range f.forced {
		if force {
			at = append(at, i+1)
		}
	}
	return at
}

type fakeDecoder struct {
	keyFrame bool
	err      error
	panicV   any
	closed   int
}

func (f *fakeDecoder) Decode(src []byte, dst pixel.Writer) (codec.Result, error) {
	if f.panicV != nil {
		panic(f.panicV)
	}
	if f.err != nil {
		return codec.Result{}, f.err
	}
	return codec.Result{BytesWritten: len(src), KeyFrame: f.keyFrame}, nil
}

func (f *fakeDecoder) Close() error {
	f.closed++
	return nil
}

func withFakeEncoder(f *fakeEncoder) Option {
	return WithEncoderFactory(func(codec.BitmapInfo, codec.EncoderSettings) (FrameEncoder, error) {
		return f, nil
	})
}

func withFakeDecoder(f *fakeDecoder) Option {
	return WithDecoderFactory(func(codec.BitmapInfo) (FrameDecoder, error) {
		return f, nil
	})
}

func newTestLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

// fillFrame paints the visible pixels of f with a gradient, leaving padding
// alone.
func fillFrame(f *Frame, seed int) {
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			f.Set(x, y, pixel.Color{
				R: uint8((x*17)^(y*31) + seed),
				G: uint8(x*43 + y*13 + seed),
				B: uint8((x * 7) ^ (y * 11)),
			})
		}
	}
}

func requireSamePixels(t *testing.T, want, got *Frame) {
	t.Helper()
	require.Equal(t, want.Width, got.Width)
	require.Equal(t, want.Height, got.Height)
	for y := 0; y < want.Height; y++ {
		for x := 0; x < want.Width; x++ {
			require.Equal(t, want.At(x, y), got.At(x, y), "pixel %d,%d", x, y)
		}
	}
}

// paddingUntouched reports whether every padding byte of f still holds b.
func paddingUntouched(f *Frame, b byte) bool {
	row := pixel.RowBytes(f.Width)
	for y := 0; y < f.Height; y++ {
		for _, v := range f.Data[y*f.Stride+row : (y+1)*f.Stride] {
			if v != b {
				return false
			}
		}
	}
	return true
}
