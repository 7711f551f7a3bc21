package lpvc

import (
	"github.com/pkg/errors"

	"github.com/longplay/lpvc/codec"
	"github.com/longplay/lpvc/pixel"
)

// PictureType classifies a decoded picture.
type PictureType int

const (
	// PictureUnknown is the type of a frame that was never decoded.
	PictureUnknown PictureType = iota
	// PictureIntra marks a picture that is complete in itself.
	PictureIntra
)

func (p PictureType) String() string {
	switch p {
	case PictureIntra:
		return "I"
	default:
		return "?"
	}
}

// Frame is a host-owned RGB24 picture. Rows start Stride bytes apart; the
// bytes between Width*pixel.Size and Stride in every row are padding.
type Frame struct {
	Width  int
	Height int
	Stride int
	Data   []byte

	// KeyFrame and PictureType are set by Decoder.DecodeOne.
	KeyFrame    bool
	PictureType PictureType
}

// NewFrame returns an unpadded frame of the given size.
func NewFrame(width, height int) *Frame {
	stride := pixel.RowBytes(width)
	return &Frame{
		Width:  width,
		Height: height,
		Stride: stride,
		Data:   make([]byte, stride*height),
	}
}

// Info returns the frame geometry.
func (f *Frame) Info() codec.BitmapInfo {
	return codec.BitmapInfo{Width: f.Width, Height: f.Height}
}

// Padded reports whether rows carry padding.
func (f *Frame) Padded() bool {
	return f.Stride != pixel.RowBytes(f.Width)
}

// Validate checks that the buffer can hold the frame.
func (f *Frame) Validate() error {
	if f.Width < 0 || f.Height < 0 {
		return errors.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if f.Stride < pixel.RowBytes(f.Width) {
		return errors.Errorf("stride %d is shorter than a row of %d pixels", f.Stride, f.Width)
	}
	if f.Height > 0 && len(f.Data) < f.Stride*(f.Height-1)+pixel.RowBytes(f.Width) {
		return errors.Errorf("frame buffer of %d bytes cannot hold %dx%d with stride %d",
			len(f.Data), f.Width, f.Height, f.Stride)
	}
	return nil
}

// At returns the pixel at (x, y).
func (f *Frame) At(x, y int) pixel.Color {
	o := y*f.Stride + x*pixel.Size
	return pixel.Color{R: f.Data[o], G: f.Data[o+1], B: f.Data[o+2]}
}

// Set stores c at (x, y).
func (f *Frame) Set(x, y int, c pixel.Color) {
	o := y*f.Stride + x*pixel.Size
	f.Data[o], f.Data[o+1], f.Data[o+2] = c.R, c.G, c.B
}

// PacketFlags describe a compressed packet.
type PacketFlags uint8

// PacketFlagKey marks a packet that starts a decodable sequence.
const PacketFlagKey PacketFlags = 1 << 0

// Packet is a host-owned compressed frame. Data is the allocated buffer;
// only its first Size bytes are payload.
type Packet struct {
	Data  []byte
	Size  int
	Flags PacketFlags
}

// Bytes returns the payload.
func (p *Packet) Bytes() []byte {
	return p.Data[:p.Size]
}

// KeyFrame reports whether the packet carries the key flag.
func (p *Packet) KeyFrame() bool {
	return p.Flags&PacketFlagKey != 0
}
