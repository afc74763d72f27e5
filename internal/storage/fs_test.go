package storage

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

// pngBytes returns data that sniffs as image/png.
func pngBytes(size int) []byte {
	b := make([]byte, size)
	copy(b, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	return b
}

func newTestStore(t *testing.T, maxBytes int64) *FSStore {
	t.Helper()
	s, err := NewFSStore(t.TempDir(), maxBytes)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestPutAndOpen(t *testing.T) {
	s := newTestStore(t, 1<<20)
	data := pngBytes(2048)

	key, err := s.Put(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasSuffix(key, ".png") {
		t.Fatalf("key = %q, want .png suffix", key)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		t.Fatalf("unsafe key %q", key)
	}

	rc, ctype, err := s.Open(key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	if ctype != "image/png" {
		t.Fatalf("content type = %q", ctype)
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("read %d bytes, want %d", len(got), len(data))
	}
}

func TestPutSmallUpload(t *testing.T) {
	// Shorter than the sniff window.
	s := newTestStore(t, 1<<20)
	data := pngBytes(64)
	key, err := s.Put(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, _, err := s.Open(key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if len(got) != 64 {
		t.Fatalf("stored %d bytes, want 64", len(got))
	}
}

func TestPutRejectsNonImage(t *testing.T) {
	s := newTestStore(t, 1<<20)
	if _, err := s.Put(strings.NewReader("just some text, definitely not an image")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestPutEnforcesCap(t *testing.T) {
	s := newTestStore(t, 1024)
	if _, err := s.Put(bytes.NewReader(pngBytes(1025))); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	// Exactly at the cap is fine.
	if _, err := s.Put(bytes.NewReader(pngBytes(1024))); err != nil {
		t.Fatalf("put at cap: %v", err)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	s := newTestStore(t, 1<<20)
	for _, key := range []string{"", "../etc/passwd", "/abs/path", "a\\b"} {
		if _, _, err := s.Open(key); !errors.Is(err, ErrBadKey) {
			t.Errorf("Open(%q) err = %v, want ErrBadKey", key, err)
		}
	}
}
