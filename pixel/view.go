// Package pixel describes RGB24 pixel memory the way the codec consumes it:
// interleaved 8-bit R, G, B samples in row-major order, optionally with
// opaque padding at the end of every row.
package pixel

// Size is the number of bytes per pixel.
const Size = 3

// Color is one RGB24 pixel.
type Color struct {
	R, G, B uint8
}

// RowBytes returns the number of pixel bytes in a row of the given width,
// that is the smallest legal stride.
func RowBytes(width int) int {
	return width * Size
}

// Writer receives pixels in row-major order.
type Writer interface {
	// Set stores c at the cursor.
	Set(c Color)
	// Next moves the cursor to the following pixel.
	Next()
}

// Reader yields pixels in row-major order.
type Reader interface {
	// At returns the pixel at the cursor.
	At() Color
	// Next moves the cursor to the following pixel.
	Next()
}

// View is a forward-only cursor over the width*height pixels of a row-padded
// buffer. After the last pixel of a row it jumps over the row padding, so
// padding bytes are never exposed, read or written.
//
// A View does not know how many rows it covers. The caller consumes exactly
// width*height pixels; dereferencing past that point panics with an index
// error. A View is not restartable and must not be shared between goroutines.
type View struct {
	buf     []byte
	off     int
	width   int
	x       int
	padding int
}

// NewView returns a cursor positioned on the first pixel of buf. stride is the
// distance in bytes between the starts of two rows and must be at least
// RowBytes(width); that is not checked here.
func NewView(buf []byte, width, stride int) *View {
	return &View{
		buf:     buf,
		width:   width,
		padding: stride - width*Size,
	}
}

// Next advances to the following pixel, skipping the row padding at the end
// of a row.
func (v *View) Next() {
	v.off += Size
	v.x++
	if v.x == v.width {
		v.x = 0
		v.off += v.padding
	}
}

// Pixel returns the three bytes of the pixel at the cursor. The slice aliases
// the underlying buffer.
func (v *View) Pixel() []byte {
	return v.buf[v.off : v.off+Size : v.off+Size]
}

// At returns the pixel at the cursor.
func (v *View) At() Color {
	p := v.buf[v.off : v.off+Size]
	return Color{R: p[0], G: p[1], B: p[2]}
}

// Set stores c at the cursor.
func (v *View) Set(c Color) {
	p := v.buf[v.off : v.off+Size]
	p[0], p[1], p[2] = c.R, c.G, c.B
}

// Offset returns the byte offset of the cursor within the buffer.
func (v *View) Offset() int {
	return v.off
}

// Linear is a cursor over an unpadded buffer. Besides the per-pixel interface
// it exposes the whole buffer, so bulk consumers can skip the cursor entirely.
type Linear struct {
	buf []byte
	off int
}

// NewLinear returns a cursor over buf, which holds pixels back to back.
func NewLinear(buf []byte) *Linear {
	return &Linear{buf: buf}
}

// Bytes returns the underlying buffer.
func (l *Linear) Bytes() []byte {
	return l.buf
}

// Next advances to the following pixel.
func (l *Linear) Next() {
	l.off += Size
}

// Pixel returns the three bytes of the pixel at the cursor.
func (l *Linear) Pixel() []byte {
	return l.buf[l.off : l.off+Size : l.off+Size]
}

// At returns the pixel at the cursor.
func (l *Linear) At() Color {
	p := l.buf[l.off : l.off+Size]
	return Color{R: p[0], G: p[1], B: p[2]}
}

// Set stores c at the cursor.
func (l *Linear) Set(c Color) {
	p := l.buf[l.off : l.off+Size]
	p[0], p[1], p[2] = c.R, c.G, c.B
}

// linear is implemented by targets that are a single contiguous pixel run.
type linear interface {
	Bytes() []byte
}

// Fill writes the pixels packed in src to w, len(src)/Size of them. A linear
// target is filled with one copy.
func Fill(w Writer, src []byte) {
	if l, ok := w.(linear); ok {
		copy(l.Bytes(), src)
		return
	}
	for i := 0; i+Size <= len(src); i += Size {
		w.Set(Color{R: src[i], G: src[i+1], B: src[i+2]})
		w.Next()
	}
}

// Gather reads len(dst)/Size pixels from r and packs them into dst. A linear
// source is read with one copy.
func Gather(dst []byte, r Reader) {
	if l, ok := r.(linear); ok {
		copy(dst, l.Bytes())
		return
	}
	for i := 0; i+Size <= len(dst); i += Size {
		c := r.At()
		dst[i], dst[i+1], dst[i+2] = c.R, c.G, c.B
		r.Next()
	}
}
