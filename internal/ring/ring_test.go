package ring_test

import (
	"bytes"
	"testing"

	"github.com/quimgil/overwitch/internal/ring"
)

func TestCapacityRoundsUp(t *testing.T) {
	tests := []struct {
		size, cap int
	}{
		{1, 1},
		{2, 2},
		{3, 4},
		{448, 512},
		{512, 512},
		{513, 1024},
	}
	for _, tc := range tests {
		b := ring.New(tc.size)
		if b.Capacity() != tc.cap {
			t.Errorf("New(%d).Capacity() = %d, want %d", tc.size, b.Capacity(), tc.cap)
		}
	}
}

func TestWriteReadSpaces(t *testing.T) {
	b := ring.New(16)
	if b.ReadSpace() != 0 || b.WriteSpace() != 16 {
		t.Fatalf("empty: ReadSpace=%d WriteSpace=%d", b.ReadSpace(), b.WriteSpace())
	}

	if n := b.Write([]byte{1, 2, 3, 4, 5}); n != 5 {
		t.Fatalf("Write = %d, want 5", n)
	}
	if b.ReadSpace() != 5 || b.WriteSpace() != 11 {
		t.Fatalf("after write: ReadSpace=%d WriteSpace=%d", b.ReadSpace(), b.WriteSpace())
	}

	dst := make([]byte, 5)
	if n := b.Read(dst, 5); n != 5 {
		t.Fatalf("Read = %d, want 5", n)
	}
	if !bytes.Equal(dst, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("Read returned %v", dst)
	}
	if b.ReadSpace() != 0 || b.WriteSpace() != 16 {
		t.Fatalf("after read: ReadSpace=%d WriteSpace=%d", b.ReadSpace(), b.WriteSpace())
	}
}

func TestWritePartialWhenFull(t *testing.T) {
	b := ring.New(8)
	if n := b.Write(make([]byte, 6)); n != 6 {
		t.Fatalf("Write = %d, want 6", n)
	}
	if n := b.Write(make([]byte, 6)); n != 2 {
		t.Errorf("Write into nearly-full ring = %d, want 2", n)
	}
	if n := b.Write([]byte{1}); n != 0 {
		t.Errorf("Write into full ring = %d, want 0", n)
	}
}

func TestReadDiscard(t *testing.T) {
	b := ring.New(16)
	b.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	if n := b.Read(nil, 6); n != 6 {
		t.Fatalf("discard Read = %d, want 6", n)
	}
	dst := make([]byte, 2)
	b.Read(dst, 2)
	if !bytes.Equal(dst, []byte{7, 8}) {
		t.Errorf("after discard, Read returned %v, want [7 8]", dst)
	}
}

func TestWrapAround(t *testing.T) {
	b := ring.New(8)
	dst := make([]byte, 8)
	for i := 0; i < 100; i++ {
		src := []byte{byte(i), byte(i + 1), byte(i + 2)}
		if n := b.Write(src); n != 3 {
			t.Fatalf("iteration %d: Write = %d", i, n)
		}
		if n := b.Read(dst[:3], 3); n != 3 {
			t.Fatalf("iteration %d: Read = %d", i, n)
		}
		if !bytes.Equal(dst[:3], src) {
			t.Fatalf("iteration %d: got %v, want %v", i, dst[:3], src)
		}
	}
}

func TestReadMoreThanAvailable(t *testing.T) {
	b := ring.New(8)
	b.Write([]byte{9, 9})
	dst := make([]byte, 8)
	if n := b.Read(dst, 8); n != 2 {
		t.Errorf("Read = %d, want 2", n)
	}
}
