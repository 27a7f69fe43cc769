package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// jpegMagic is the SOI marker an image upload begins with. Fixture content
// past the marker is filler.
var jpegMagic = []byte{0xff, 0xd8, 0xff, 0xe0}

// WriteImageFixture creates a JPEG-flavored file of exactly size bytes at
// path, creating parent directories as needed. A size <= 0 writes a single
// byte.
func WriteImageFixture(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	header := jpegMagic
	if size < int64(len(header)) {
		header = header[:size]
	}
	if _, err := f.Write(header); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}

	chunk := bytes.Repeat([]byte{0x42}, 32*1024)
	for remaining := size - int64(len(header)); remaining > 0; {
		n := int64(len(chunk))
		if remaining < n {
			n = remaining
		}
		if _, err := f.Write(chunk[:n]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= n
	}
}
