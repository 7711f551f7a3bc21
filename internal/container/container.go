// Package container stores a sequence of LPVC packets in a stream file.
//
// A stream starts with
//
//	magic "LPVS" | version u8 | width u32 | height u32
//
// followed by one record per packet:
//
//	flags u8 | size u32 | payload
//
// All integers are big endian.
package container

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/longplay/lpvc"
	"github.com/longplay/lpvc/codec"
)

// Version is the stream file version.
const Version = 1

const magic = "LPVS"

// maxPacketSize bounds the payload size accepted from a stream.
const maxPacketSize = 1 << 30

var (
	ErrInvalidMagic       = errors.New("container: not an LPVS stream")
	ErrUnsupportedVersion = errors.New("container: unsupported version")
	ErrCorrupt            = errors.New("container: corrupt stream")
)

type fileHeader struct {
	Magic   [4]byte
	Version uint8
	Width   uint32
	Height  uint32
}

type recordHeader struct {
	Flags uint8
	Size  uint32
}

// Writer appends packets to a stream.
type Writer struct {
	bw    *bufio.Writer
	dst   io.Writer
	info  codec.BitmapInfo
	count int
}

// NewWriter writes the stream header for pictures of the given size to w.
// If w is an io.Closer, Close closes it.
func NewWriter(w io.Writer, info codec.BitmapInfo) (*Writer, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return nil, errors.Errorf("container: invalid size %s", info)
	}

	bw := bufio.NewWriter(w)
	hdr := fileHeader{
		Version: Version,
		Width:   uint32(info.Width),
		Height:  uint32(info.Height),
	}
	copy(hdr.Magic[:], magic)
	if err := binary.Write(bw, binary.BigEndian, hdr); err != nil {
		return nil, errors.Wrap(err, "container: cannot write header")
	}
	return &Writer{bw: bw, dst: w, info: info}, nil
}

// WritePacket appends the payload and flags of p.
func (w *Writer) WritePacket(p *lpvc.Packet) error {
	rec := recordHeader{Flags: uint8(p.Flags), Size: uint32(p.Size)}
	if err := binary.Write(w.bw, binary.BigEndian, rec); err != nil {
		return errors.Wrapf(err, "container: packet %d", w.count)
	}
	if _, err := w.bw.Write(p.Bytes()); err != nil {
		return errors.Wrapf(err, "container: packet %d", w.count)
	}
	w.count++
	return nil
}

// Count returns the number of packets written.
func (w *Writer) Count() int {
	return w.count
}

// Close flushes buffered packets and closes the underlying writer if it is
// an io.Closer.
func (w *Writer) Close() error {
	err := w.bw.Flush()
	if c, ok := w.dst.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// Reader reads packets from a stream.
type Reader struct {
	br    *bufio.Reader
	info  codec.BitmapInfo
	count int
}

// NewReader reads and checks the stream header.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	var hdr fileHeader
	if err := binary.Read(br, binary.BigEndian, &hdr); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.Wrap(ErrCorrupt, "truncated header")
		}
		return nil, errors.Wrap(err, "container: cannot read header")
	}
	if string(hdr.Magic[:]) != magic {
		return nil, ErrInvalidMagic
	}
	if hdr.Version != Version {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", hdr.Version)
	}
	if hdr.Width == 0 || hdr.Height == 0 {
		return nil, errors.Wrapf(ErrCorrupt, "invalid size %dx%d", hdr.Width, hdr.Height)
	}

	return &Reader{
		br:   br,
		info: codec.BitmapInfo{Width: int(hdr.Width), Height: int(hdr.Height)},
	}, nil
}

// Info returns the picture size recorded in the header.
func (r *Reader) Info() codec.BitmapInfo {
	return r.info
}

// ReadPacket reads the next packet into p, reusing p.Data when it is large
// enough. It returns io.EOF after the last packet.
func (r *Reader) ReadPacket(p *lpvc.Packet) error {
	var rec recordHeader
	if err := binary.Read(r.br, binary.BigEndian, &rec); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return errors.Wrapf(ErrCorrupt, "packet %d: truncated record", r.count)
		}
		return errors.Wrapf(err, "container: packet %d", r.count)
	}
	if rec.Size > maxPacketSize {
		return errors.Wrapf(ErrCorrupt, "packet %d: size %d", r.count, rec.Size)
	}

	n := int(rec.Size)
	if cap(p.Data) < n {
		p.Data = make([]byte, n)
	}
	p.Data = p.Data[:n]
	if _, err := io.ReadFull(r.br, p.Data); err != nil {
		return errors.Wrapf(ErrCorrupt, "packet %d: %v", r.count, err)
	}
	p.Size = n
	p.Flags = lpvc.PacketFlags(rec.Flags)
	r.count++
	return nil
}

// Count returns the number of packets read.
func (r *Reader) Count() int {
	return r.count
}
