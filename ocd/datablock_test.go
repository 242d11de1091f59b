package ocd

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestDataBlock_WriteReturnsPreWriteLength(t *testing.T) {
	var b DataBlock
	if off := b.Write([]byte{1, 2, 3}); off != 0 {
		t.Errorf("first Write offset = %d, want 0", off)
	}
	if off := b.Write([]byte{4, 5}); off != 3 {
		t.Errorf("second Write offset = %d, want 3", off)
	}
	if off := b.WriteUint32(7); off != 5 {
		t.Errorf("WriteUint32 offset = %d, want 5", off)
	}
	if b.Len() != 9 {
		t.Errorf("Len = %d, want 9", b.Len())
	}
}

func TestDataBlock_ZeroLengthWrite(t *testing.T) {
	var b DataBlock
	b.Write([]byte{1, 2})
	if off := b.Write(nil); off != 2 {
		t.Errorf("offset = %d, want 2", off)
	}
	if b.Len() != 2 {
		t.Errorf("Len = %d, want 2", b.Len())
	}
}

func TestDataBlock_WriteStringPadsTo8(t *testing.T) {
	tests := []struct {
		s       string
		wantLen uint64
	}{
		{"", 8},
		{"abc", 8},
		{"1234567", 8},
		{"12345678", 16},
	}
	for _, tt := range tests {
		var b DataBlock
		off := b.WriteString(tt.s)
		if off != 0 {
			t.Errorf("WriteString(%q) offset = %d", tt.s, off)
		}
		if b.Len() != tt.wantLen {
			t.Errorf("WriteString(%q) Len = %d, want %d", tt.s, b.Len(), tt.wantLen)
		}
		got, err := b.StringAt(off)
		if err != nil || got != tt.s {
			t.Errorf("StringAt = %q, %v; want %q", got, err, tt.s)
		}
	}
}

func TestDataBlock_WritePadding64(t *testing.T) {
	var b DataBlock
	b.WritePadding64()
	if b.Len() != 0 {
		t.Fatalf("padding an empty block wrote %d bytes", b.Len())
	}
	b.Write([]byte{0xff, 0xff, 0xff})
	b.WritePadding64()
	want := []byte{0xff, 0xff, 0xff, 0, 0, 0, 0, 0}
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("Bytes = %v, want %v", b.Bytes(), want)
	}
}

func TestDataBlock_Patch(t *testing.T) {
	var b DataBlock
	b.WriteUint64(10)
	b.WriteUint32(1)

	if err := b.PutUint64At(0, 42); err != nil {
		t.Fatal(err)
	}
	if err := b.addUint64At(0, 8); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Uint64At(0); v != 50 {
		t.Errorf("Uint64At(0) = %d, want 50", v)
	}
	if err := b.PutUint32At(8, 9); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Uint32At(8); v != 9 {
		t.Errorf("Uint32At(8) = %d, want 9", v)
	}

	if err := b.PutUint64At(8, 1); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("PutUint64At past end: err = %v, want ErrInvalidArgs", err)
	}
	if _, err := b.Uint32At(10); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("Uint32At past end: err = %v, want ErrInvalidArgs", err)
	}
}

func TestDataBlock_StringAtCorrupt(t *testing.T) {
	var b DataBlock
	b.Write([]byte("abc"))
	if _, err := b.StringAt(0); !errors.Is(err, ErrCorrupt) {
		t.Errorf("unterminated: err = %v, want ErrCorrupt", err)
	}
	if _, err := b.StringAt(5); !errors.Is(err, ErrCorrupt) {
		t.Errorf("past end: err = %v, want ErrCorrupt", err)
	}
}
