package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// AuthorLine builds an author dump line with the tab separated prefix the
// Open Library dumps put in front of each record.
func AuthorLine(json string) string {
	return "/type/author\t/authors/OL1A\t1\t2008-04-01T03:28:50.625462\t" + json
}

// WorkLine builds a work dump line with the Open Library prefix.
func WorkLine(json string) string {
	return "/type/work\t/works/OL1W\t3\t2010-04-28T06:54:19.472104\t" + json
}

// WriteDump writes lines into name inside a fresh temp dir and returns the path.
// A .gz or .zst suffix selects the matching compression.
func WriteDump(t testing.TB, name string, lines ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	body := strings.Join(lines, "\n")
	if len(lines) > 0 {
		body += "\n"
	}

	switch {
	case strings.HasSuffix(name, ".gz"):
		zw := gzip.NewWriter(f)
		if _, err := zw.Write([]byte(body)); err != nil {
			t.Fatalf("gzip %s: %v", path, err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("gzip close %s: %v", path, err)
		}
	case strings.HasSuffix(name, ".zst"):
		zw, err := zstd.NewWriter(f)
		if err != nil {
			t.Fatalf("zstd %s: %v", path, err)
		}
		if _, err := zw.Write([]byte(body)); err != nil {
			t.Fatalf("zstd %s: %v", path, err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("zstd close %s: %v", path, err)
		}
	default:
		if _, err := f.WriteString(body); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return path
}
