package lpvc

import (
	"github.com/pkg/errors"

	"github.com/longplay/lpvc/codec"
	"github.com/longplay/lpvc/pixel"
)

// DefaultStrideAlign is the row alignment used by the default allocator.
const DefaultStrideAlign = 32

// Allocator provides the buffers the orchestrators write into. It stands for
// the host pipeline's buffer management.
type Allocator interface {
	// FrameBuffer prepares f to receive a picture of the given geometry.
	FrameBuffer(f *Frame, info codec.BitmapInfo) error
	// PacketBuffer prepares p to receive a packet of at most size bytes.
	PacketBuffer(p *Packet, size int) error
}

// AlignedAllocator rounds frame rows up to a multiple of Align bytes and
// reuses buffers that are already large enough. Align <= 1 produces unpadded
// frames.
type AlignedAllocator struct {
	Align int
}

// NewAlignedAllocator returns an allocator aligning rows to align bytes.
func NewAlignedAllocator(align int) *AlignedAllocator {
	return &AlignedAllocator{Align: align}
}

// FrameBuffer implements Allocator.
func (a *AlignedAllocator) FrameBuffer(f *Frame, info codec.BitmapInfo) error {
	if info.Width <= 0 || info.Height <= 0 {
		return errors.Errorf("cannot allocate frame of size %s", info)
	}

	stride := pixel.RowBytes(info.Width)
	if a.Align > 1 {
		stride = (stride + a.Align - 1) / a.Align * a.Align
	}
	n := stride * info.Height
	if cap(f.Data) < n {
		f.Data = make([]byte, n)
	}
	f.Data = f.Data[:n]
	f.Width = info.Width
	f.Height = info.Height
	f.Stride = stride
	f.KeyFrame = false
	f.PictureType = PictureUnknown
	return nil
}

// PacketBuffer implements Allocator.
func (a *AlignedAllocator) PacketBuffer(p *Packet, size int) error {
	if size <= 0 {
		return errors.Errorf("cannot allocate packet of %d bytes", size)
	}
	if cap(p.Data) < size {
		p.Data = make([]byte, size)
	}
	p.Data = p.Data[:size]
	p.Size = 0
	p.Flags = 0
	return nil
}
