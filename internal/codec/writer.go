package codec

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/unicode/norm"
)

// Writer builds a snapshot payload. All multi-byte writes are little-endian.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 256)}
}

// WriteU8 writes 1 byte.
func (w *Writer) WriteU8(v byte) {
	w.buf = append(w.buf, v)
}

// WriteU16 writes 2 bytes.
func (w *Writer) WriteU16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// WriteU32 writes 4 bytes.
func (w *Writer) WriteU32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteI64 writes 8 bytes (signed via cast).
func (w *Writer) WriteI64(v int64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
}

// WriteF64 writes the IEEE-754 bits of v.
func (w *Writer) WriteF64(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// Canonical returns the NFC form of s. Strings compared against decoded
// payloads must go through it.
func Canonical(s string) string {
	return norm.NFC.String(s)
}

// WriteString writes a u32 length prefix and the NFC form of s, so equal text
// always encodes to equal bytes.
func (w *Writer) WriteString(s string) {
	b := norm.NFC.Bytes([]byte(s))
	w.WriteU32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the payload.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current length.
func (w *Writer) Len() int {
	return len(w.buf)
}
