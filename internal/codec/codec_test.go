package codec

import (
	"errors"
	"testing"
)

func TestWriterReader(t *testing.T) {
	w := NewWriter()
	w.WriteU8(7)
	w.WriteU16(0xBEEF)
	w.WriteU32(123456)
	w.WriteI64(-42)
	w.WriteF64(8.9408)
	w.WriteString("Market & 5th")
	w.WriteBytes([]byte{1, 2})

	r := NewReader(w.Bytes())
	if got := r.ReadU8(); got != 7 {
		t.Errorf("ReadU8 = %d", got)
	}
	if got := r.ReadU16(); got != 0xBEEF {
		t.Errorf("ReadU16 = %x", got)
	}
	if got := r.ReadU32(); got != 123456 {
		t.Errorf("ReadU32 = %d", got)
	}
	if got := r.ReadI64(); got != -42 {
		t.Errorf("ReadI64 = %d", got)
	}
	if got := r.ReadF64(); got != 8.9408 {
		t.Errorf("ReadF64 = %v", got)
	}
	if got := r.ReadString(); got != "Market & 5th" {
		t.Errorf("ReadString = %q", got)
	}
	if got := r.ReadBytes(2); len(got) != 2 || got[1] != 2 {
		t.Errorf("ReadBytes = %v", got)
	}
	if r.Remaining() != 0 || r.Err() != nil {
		t.Errorf("Remaining = %d, Err = %v", r.Remaining(), r.Err())
	}
}

func TestStringsAreNormalized(t *testing.T) {
	composed := "Caf\u00e9"
	decomposed := "Cafe\u0301"

	a, b := NewWriter(), NewWriter()
	a.WriteString(composed)
	b.WriteString(decomposed)
	if string(a.Bytes()) != string(b.Bytes()) {
		t.Fatal("canonically equivalent strings encoded differently")
	}
	if Digest(a.Bytes()) != Digest(b.Bytes()) {
		t.Fatal("digests differ")
	}
	if got := NewReader(b.Bytes()).ReadString(); got != Canonical(decomposed) || got != composed {
		t.Fatalf("decoded %q, want %q", got, composed)
	}
}

func TestReaderErrorIsSticky(t *testing.T) {
	r := NewReader([]byte{1, 2})
	if got := r.ReadU32(); got != 0 {
		t.Errorf("short ReadU32 = %d", got)
	}
	if !errors.Is(r.Err(), ErrShort) {
		t.Fatalf("Err = %v", r.Err())
	}
	if got := r.ReadU8(); got != 0 {
		t.Errorf("ReadU8 after failure = %d, want 0", got)
	}
	if r.Remaining() != 2 {
		t.Errorf("failed reads must not advance, Remaining = %d", r.Remaining())
	}
}

func TestDigest(t *testing.T) {
	d := Digest([]byte("snapshot"))
	if len(d) != 64 {
		t.Fatalf("digest length = %d", len(d))
	}
	if d == Digest([]byte("snapshoT")) {
		t.Fatal("different payloads share a digest")
	}
}
