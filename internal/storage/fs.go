package storage

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// extByType maps the accepted image types to their stored extension.
var extByType = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// FSStore writes assets under a base directory, sharded by the first two
// characters of the generated id.
type FSStore struct {
	base     string
	maxBytes int64
}

func NewFSStore(base string, maxBytes int64) (*FSStore, error) {
	if base == "" {
		base = "./data/assets"
	}
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base, maxBytes: maxBytes}, nil
}

func (s *FSStore) Put(r io.Reader) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	head = head[:n]
	ext, ok := extByType[http.DetectContentType(head)]
	if !ok {
		return "", ErrUnsupportedType
	}

	id := uuid.NewString()
	key := path.Join(id[:2], id+ext)
	dst := filepath.Join(s.base, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.Write(head); err != nil {
		os.Remove(dst)
		return "", err
	}
	// One byte past the cap distinguishes "at the limit" from "over it".
	written, err := io.Copy(f, io.LimitReader(r, s.maxBytes-int64(n)+1))
	if err != nil {
		os.Remove(dst)
		return "", err
	}
	if int64(n)+written > s.maxBytes {
		os.Remove(dst)
		return "", ErrTooLarge
	}
	return key, nil
}

func (s *FSStore) Open(key string) (io.ReadCloser, string, error) {
	if err := validKey(key); err != nil {
		return nil, "", err
	}
	f, err := os.Open(filepath.Join(s.base, filepath.FromSlash(key)))
	if err != nil {
		return nil, "", err
	}
	ctype := "application/octet-stream"
	for t, ext := range extByType {
		if strings.HasSuffix(key, ext) {
			ctype = t
			break
		}
	}
	return f, ctype, nil
}

func validKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	return nil
}
