package lpvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longplay/lpvc/codec"
	"github.com/longplay/lpvc/pixel"
)

var testInfo = codec.BitmapInfo{Width: 4, Height: 4}

func openFakeEncoder(t *testing.T, cfg Config, f *fakeEncoder, opts ...Option) *Encoder {
	t.Helper()
	logger, _ := newTestLogger()
	opts = append([]Option{WithLogger(logger), withFakeEncoder(f)}, opts...)
	enc, err := OpenEncoder(testInfo, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, enc.Close()) })
	return enc
}

func encodeN(t *testing.T, enc *Encoder, n int) []EncodeResult {
	t.Helper()
	src := NewFrame(testInfo.Width, testInfo.Height)
	var pkt Packet
	out := make([]EncodeResult, 0, n)
	for i := 0; i < n; i++ {
		res, err := enc.EncodeOne(src, &pkt)
		require.NoError(t, err)
		out = append(out, res)
	}
	return out
}

func TestEncodeOne_GOPCadence(t *testing.T) {
	for _, tc := range []struct {
		name     string
		gop      int
		frames   int
		forcedAt []int
	}{
		{name: "gop_3", gop: 3, frames: 9, forcedAt: []int{3, 6, 9}},
		{name: "gop_1", gop: 1, frames: 4, forcedAt: []int{1, 2, 3, 4}},
		{name: "gop_5", gop: 5, frames: 12, forcedAt: []int{5, 10}},
		{name: "disabled", gop: 0, frames: 10},
		{name: "negative", gop: -4, frames: 10},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.GOPSize = tc.gop
			f := &fakeEncoder{}
			enc := openFakeEncoder(t, cfg, f)

			encodeN(t, enc, tc.frames)
			assert.Equal(t, tc.forcedAt, f.forcedAt())
		})
	}
}

func TestEncodeOne_CounterCycles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GOPSize = 3
	enc := openFakeEncoder(t, cfg, &fakeEncoder{})

	src := NewFrame(testInfo.Width, testInfo.Height)
	var pkt Packet
	var seen []int
	for i := 0; i < 6; i++ {
		_, err := enc.EncodeOne(src, &pkt)
		require.NoError(t, err)
		seen = append(seen, enc.FramesSinceKeyFrame())
	}
	assert.Equal(t, []int{1, 2, 0, 1, 2, 0}, seen)
}

func TestEncodeOne_TrustsCodecKeyFlag(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GOPSize = 2
	// The codec declines the forced key frame on call 2 and volunteers one on
	// call 3.
	f := &fakeEncoder{keyFrame: func(n int, force bool) bool { return n == 3 }}
	enc := openFakeEncoder(t, cfg, f)

	src := NewFrame(testInfo.Width, testInfo.Height)
	var pkt Packet

	res, err := enc.EncodeOne(src, &pkt)
	require.NoError(t, err)
	assert.False(t, res.KeyFrame)

	res, err = enc.EncodeOne(src, &pkt)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, f.forced)
	assert.False(t, res.KeyFrame)
	assert.False(t, pkt.KeyFrame())
	assert.Equal(t, 0, enc.FramesSinceKeyFrame())

	res, err = enc.EncodeOne(src, &pkt)
	require.NoError(t, err)
	assert.True(t, res.KeyFrame)
	assert.True(t, pkt.KeyFrame())
	assert.Equal(t, 1, enc.FramesSinceKeyFrame())
}

func TestEncodeOne_ResetOnAnyKeyFrame(t *testing.T) {
	// The codec reports a key frame on the first call, as a real encoder
	// does.
	firstIsKey := func(n int, force bool) bool { return force || n == 1 }

	cfg := DefaultConfig()
	cfg.GOPSize = 3

	f := &fakeEncoder{keyFrame: firstIsKey}
	encodeN(t, openFakeEncoder(t, cfg, f), 7)
	assert.Equal(t, []int{3, 6}, f.forcedAt())

	cfg.GOPResetOnKeyFrame = true
	f = &fakeEncoder{keyFrame: firstIsKey}
	encodeN(t, openFakeEncoder(t, cfg, f), 7)
	assert.Equal(t, []int{4, 7}, f.forcedAt())
}

func TestEncodeOne_PacketSize(t *testing.T) {
	f := &fakeEncoder{safe: 100, written: 37}
	enc := openFakeEncoder(t, DefaultConfig(), f)

	pkt := Packet{Flags: PacketFlagKey}
	res, err := enc.EncodeOne(NewFrame(testInfo.Width, testInfo.Height), &pkt)
	require.NoError(t, err)
	assert.True(t, res.GotPacket)
	assert.Equal(t, 37, res.BytesWritten)
	assert.Equal(t, 37, pkt.Size)
	assert.Len(t, pkt.Data, 100)
	assert.Len(t, pkt.Bytes(), 37)
	assert.False(t, pkt.KeyFrame())
}

func TestEncodeOne_CodecFailure(t *testing.T) {
	for _, tc := range []struct {
		name    string
		f       *fakeEncoder
		message string
	}{
		{name: "error", f: &fakeEncoder{err: errors.New("out of memory")}, message: "out of memory"},
		{name: "empty_error", f: &fakeEncoder{err: errors.New("")}, message: unknownError},
		{name: "panic_string", f: &fakeEncoder{panicV: "boom"}, message: "boom"},
		{name: "panic_error", f: &fakeEncoder{panicV: errors.New("bad state")}, message: "bad state"},
		{name: "panic_value", f: &fakeEncoder{panicV: 42}, message: "42"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			logger, hook := newTestLogger()
			cfg := DefaultConfig()
			cfg.GOPSize = 2
			enc, err := OpenEncoder(testInfo, cfg, WithLogger(logger), withFakeEncoder(tc.f))
			require.NoError(t, err)
			defer enc.Close()

			pkt := Packet{Flags: PacketFlagKey}
			res, err := enc.EncodeOne(NewFrame(testInfo.Width, testInfo.Height), &pkt)
			assert.Equal(t, ErrEncode, err)
			assert.ErrorIs(t, err, ErrCodecOperation)
			assert.Equal(t, EncodeResult{}, res)
			assert.Zero(t, pkt.Size)
			assert.False(t, pkt.KeyFrame())
			assert.Zero(t, enc.FramesSinceKeyFrame())

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, logrus.ErrorLevel, entry.Level)
			assert.Equal(t, tc.message, entry.Message)
			assert.Equal(t, "Encoder.EncodeOne", entry.Data["function"])

			// The encoder stays usable.
			tc.f.err, tc.f.panicV = nil, nil
			_, err = enc.EncodeOne(NewFrame(testInfo.Width, testInfo.Height), &pkt)
			require.NoError(t, err)
			assert.Equal(t, 1, enc.FramesSinceKeyFrame())
		})
	}
}

func TestEncodeOne_FailedForcedFrameIsRetried(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GOPSize = 2
	f := &fakeEncoder{}
	enc := openFakeEncoder(t, cfg, f)

	src := NewFrame(testInfo.Width, testInfo.Height)
	var pkt Packet
	_, err := enc.EncodeOne(src, &pkt)
	require.NoError(t, err)

	f.err = errors.New("transient")
	_, err = enc.EncodeOne(src, &pkt)
	require.ErrorIs(t, err, ErrEncode)

	f.err = nil
	_, err = enc.EncodeOne(src, &pkt)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, true}, f.forced)
}

func TestEncodeOne_OverflowPanics(t *testing.T) {
	f := &fakeEncoder{safe: 16, written: 17}
	enc := openFakeEncoder(t, DefaultConfig(), f)

	var pkt Packet
	assert.Panics(t, func() {
		_, _ = enc.EncodeOne(NewFrame(testInfo.Width, testInfo.Height), &pkt)
	})
}

// generousAllocator hands out packet buffers larger than requested.
type generousAllocator struct {
	AlignedAllocator
}

func (a *generousAllocator) PacketBuffer(p *Packet, size int) error {
	return a.AlignedAllocator.PacketBuffer(p, size*2)
}

func TestEncodeOne_OverflowPanicsWithLargerBuffer(t *testing.T) {
	f := &fakeEncoder{safe: 16, written: 17}
	enc := openFakeEncoder(t, DefaultConfig(), f, WithAllocator(&generousAllocator{}))

	var pkt Packet
	assert.Panics(t, func() {
		_, _ = enc.EncodeOne(NewFrame(testInfo.Width, testInfo.Height), &pkt)
	})
	assert.Len(t, pkt.Data, 32)

	f.written = 16
	res, err := enc.EncodeOne(NewFrame(testInfo.Width, testInfo.Height), &pkt)
	require.NoError(t, err)
	assert.Equal(t, 16, res.BytesWritten)
}

func TestEncodeOne_WrongFrameSize(t *testing.T) {
	enc := openFakeEncoder(t, DefaultConfig(), &fakeEncoder{})
	var pkt Packet
	_, err := enc.EncodeOne(NewFrame(8, 8), &pkt)
	assert.ErrorIs(t, err, ErrEncode)
}

func TestEncodeOne_PaddedSource(t *testing.T) {
	info := codec.BitmapInfo{Width: 5, Height: 3}
	var captured []byte
	factory := WithEncoderFactory(func(codec.BitmapInfo, codec.EncoderSettings) (FrameEncoder, error) {
		return &capturingEncoder{fakeEncoder: &fakeEncoder{}, got: &captured}, nil
	})
	logger, _ := newTestLogger()
	enc, err := OpenEncoder(info, DefaultConfig(), WithLogger(logger), factory)
	require.NoError(t, err)
	defer enc.Close()

	var src Frame
	require.NoError(t, NewAlignedAllocator(32).FrameBuffer(&src, info))
	require.True(t, src.Padded())
	for i := range src.Data {
		src.Data[i] = 0xEE
	}
	fillFrame(&src, 0)

	var pkt Packet
	_, err = enc.EncodeOne(&src, &pkt)
	require.NoError(t, err)

	want := NewFrame(info.Width, info.Height)
	fillFrame(want, 0)
	assert.Equal(t, want.Data, captured)
}

type capturingEncoder struct {
	*fakeEncoder
	got *[]byte
}

func (c *capturingEncoder) Encode(src, dst []byte, force bool) (codec.Result, error) {
	*c.got = append((*c.got)[:0], src...)
	return c.fakeEncoder.Encode(src, dst, force)
}

func TestOpenEncoder_Errors(t *testing.T) {
	t.Run("invalid_level", func(t *testing.T) {
		logger, hook := newTestLogger()
		cfg := DefaultConfig()
		cfg.CompressionLevel = -5
		called := false
		enc, err := OpenEncoder(testInfo, cfg, WithLogger(logger),
			WithEncoderFactory(func(codec.BitmapInfo, codec.EncoderSettings) (FrameEncoder, error) {
				called = true
				return &fakeEncoder{}, nil
			}))
		assert.Nil(t, enc)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.False(t, called)
		require.NotNil(t, hook.LastEntry())
		assert.Contains(t, hook.LastEntry().Message, "1-22")
	})

	t.Run("factory_error", func(t *testing.T) {
		logger, _ := newTestLogger()
		enc, err := OpenEncoder(testInfo, DefaultConfig(), WithLogger(logger),
			WithEncoderFactory(func(codec.BitmapInfo, codec.EncoderSettings) (FrameEncoder, error) {
				return nil, errors.New("no memory")
			}))
		assert.Nil(t, enc)
		assert.ErrorIs(t, err, ErrConstruction)
	})

	t.Run("factory_panic", func(t *testing.T) {
		logger, hook := newTestLogger()
		enc, err := OpenEncoder(testInfo, DefaultConfig(), WithLogger(logger),
			WithEncoderFactory(func(codec.BitmapInfo, codec.EncoderSettings) (FrameEncoder, error) {
				panic("init failed")
			}))
		assert.Nil(t, enc)
		assert.ErrorIs(t, err, ErrConstruction)
		assert.Equal(t, "init failed", hook.LastEntry().Message)
	})

	t.Run("invalid_size", func(t *testing.T) {
		logger, _ := newTestLogger()
		_, err := OpenEncoder(codec.BitmapInfo{}, DefaultConfig(), WithLogger(logger))
		assert.ErrorIs(t, err, ErrConstruction)
	})
}

func TestEncoder_Close(t *testing.T) {
	var nilEnc *Encoder
	assert.NoError(t, nilEnc.Close())

	logger, hook := newTestLogger()
	f := &fakeEncoder{closeErr: errors.New("flush failed")}
	enc, err := OpenEncoder(testInfo, DefaultConfig(), WithLogger(logger), withFakeEncoder(f))
	require.NoError(t, err)

	assert.NoError(t, enc.Close())
	assert.NoError(t, enc.Close())
	assert.Equal(t, 1, f.closed)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	var pkt Packet
	_, err = enc.EncodeOne(NewFrame(testInfo.Width, testInfo.Height), &pkt)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRoundTrip_SolidFrame(t *testing.T) {
	logger, _ := newTestLogger()
	cfg := DefaultConfig()
	cfg.GOPSize = 1

	enc, err := OpenEncoder(testInfo, cfg, WithLogger(logger))
	require.NoError(t, err)
	defer enc.Close()
	dec, err := OpenDecoder(testInfo, WithLogger(logger))
	require.NoError(t, err)
	defer dec.Close()

	src := NewFrame(testInfo.Width, testInfo.Height)
	for y := 0; y < testInfo.Height; y++ {
		for x := 0; x < testInfo.Width; x++ {
			src.Set(x, y, pixel.Color{R: 10, G: 20, B: 30})
		}
	}

	var pkt Packet
	var out Frame
	for i := 0; i < 3; i++ {
		eres, err := enc.EncodeOne(src, &pkt)
		require.NoError(t, err)
		assert.True(t, eres.KeyFrame)
		assert.True(t, pkt.KeyFrame())
		assert.Zero(t, enc.FramesSinceKeyFrame())

		dres, err := dec.DecodeOne(pkt.Bytes(), &out)
		require.NoError(t, err)
		assert.True(t, dres.GotFrame)
		assert.True(t, dres.KeyFrame)
		assert.Equal(t, pkt.Size, dres.BytesConsumed)
		assert.True(t, out.KeyFrame)
		assert.Equal(t, PictureIntra, out.PictureType)
		requireSamePixels(t, src, &out)
	}
}

func TestRoundTrip_PaddedFrames(t *testing.T) {
	info := codec.BitmapInfo{Width: 37, Height: 11}
	logger, _ := newTestLogger()
	alloc := NewAlignedAllocator(64)

	cfg := DefaultConfig()
	cfg.GOPSize = 4
	enc, err := OpenEncoder(info, cfg, WithLogger(logger))
	require.NoError(t, err)
	defer enc.Close()
	dec, err := OpenDecoder(info, WithLogger(logger), WithAllocator(alloc))
	require.NoError(t, err)
	defer dec.Close()

	var src, out Frame
	require.NoError(t, alloc.FrameBuffer(&src, info))
	require.NoError(t, alloc.FrameBuffer(&out, info))
	for i := range out.Data {
		out.Data[i] = 0xEE
	}

	var pkt Packet
	for i := 0; i < 6; i++ {
		fillFrame(&src, i)
		_, err := enc.EncodeOne(&src, &pkt)
		require.NoError(t, err)
		_, err = dec.DecodeOne(pkt.Bytes(), &out)
		require.NoError(t, err)
		requireSamePixels(t, &src, &out)
		assert.True(t, paddingUntouched(&out, 0xEE), "frame %d", i)
	}
}
