package sandbox

import (
	"strings"
	"testing"
)

func TestBoundedBufferCapsRetainedBytes(t *testing.T) {
	t.Parallel()

	buf := &boundedBuffer{max: 10}

	n, err := buf.Write([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 16 {
		t.Fatalf("n = %d, want full write length so the copy never stalls", n)
	}
	if got := buf.String(); got != "0123456789" {
		t.Fatalf("retained = %q, want first 10 bytes", got)
	}

	if _, err := buf.Write([]byte("more")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := buf.String(); got != "0123456789" {
		t.Fatalf("buffer grew past cap: %q", got)
	}
}

func TestBoundedBufferUnderCap(t *testing.T) {
	t.Parallel()

	buf := &boundedBuffer{max: 1 << 10}
	for i := 0; i < 4; i++ {
		if _, err := buf.Write([]byte("chunk ")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := buf.String(); got != strings.Repeat("chunk ", 4) {
		t.Fatalf("retained = %q", got)
	}
}
