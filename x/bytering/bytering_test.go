package bytering

import (
	"bytes"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	r := New(16)
	if got := r.TryWrite([]byte("hello")); got != 5 {
		t.Fatalf("TryWrite = %d, want 5", got)
	}
	if r.Available() != 5 || r.Space() != 11 {
		t.Fatalf("available/space = %d/%d", r.Available(), r.Space())
	}

	buf := make([]byte, 8)
	n := r.TryRead(buf)
	if n != 5 || !bytes.Equal(buf[:n], []byte("hello")) {
		t.Fatalf("TryRead = %d %q", n, buf[:n])
	}
	if r.Available() != 0 {
		t.Fatalf("available = %d after drain", r.Available())
	}
}

func TestPartialWriteWhenNearlyFull(t *testing.T) {
	r := New(8)
	if got := r.TryWrite([]byte("abcdef")); got != 6 {
		t.Fatalf("TryWrite = %d", got)
	}
	// Only two bytes of space remain; the write truncates.
	if got := r.TryWrite([]byte("wxyz")); got != 2 {
		t.Fatalf("TryWrite = %d, want 2", got)
	}
	if got := r.TryWrite([]byte("!")); got != 0 {
		t.Fatalf("TryWrite on full ring = %d, want 0", got)
	}

	buf := make([]byte, 8)
	n := r.TryRead(buf)
	if !bytes.Equal(buf[:n], []byte("abcdefwx")) {
		t.Fatalf("contents = %q", buf[:n])
	}
}

func TestWrapAround(t *testing.T) {
	r := New(8)
	buf := make([]byte, 8)

	// Push the indices toward the wrap point, then write across it.
	r.TryWrite([]byte("12345"))
	r.TryRead(buf[:5])
	if got := r.TryWrite([]byte("abcdefgh")); got != 8 {
		t.Fatalf("TryWrite across wrap = %d, want 8", got)
	}
	n := r.TryRead(buf)
	if n != 8 || !bytes.Equal(buf, []byte("abcdefgh")) {
		t.Fatalf("read across wrap = %d %q", n, buf[:n])
	}
}

func TestEmptyReads(t *testing.T) {
	r := New(4)
	if n := r.TryRead(make([]byte, 4)); n != 0 {
		t.Fatalf("TryRead on empty = %d", n)
	}
	if n := r.TryWrite(nil); n != 0 {
		t.Fatalf("TryWrite(nil) = %d", n)
	}
	if n := r.TryRead(nil); n != 0 {
		t.Fatalf("TryRead(nil) = %d", n)
	}
}

func TestSizeValidation(t *testing.T) {
	for _, bad := range []int{0, 1, 3, 12} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("New(%d) did not panic", bad)
				}
			}()
			New(bad)
		}()
	}
}
