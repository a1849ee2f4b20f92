// Package dump reads Open Library style dump files one line at a time.
package dump

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// DefaultMaxLineBytes bounds a single dump line. Work records with long
// descriptions run to a few hundred KiB.
const DefaultMaxLineBytes = 16 << 20

// FileAccessError means the dump could not be opened or read. It ends the pass.
type FileAccessError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error {
	return e.Err
}

// Line is one physical line of the dump. Number starts at 1.
type Line struct {
	Number int
	Text   string
}

// Source is a forward-only line iterator over a dump file. It is not safe for
// concurrent use. Re-reading requires opening a new Source.
type Source struct {
	path    string
	file    *os.File
	closers []io.Closer
	scanner *bufio.Scanner
	line    Line
	err     error
}

// Open opens path for reading. Files ending in .gz or .zst are decompressed on the fly.
func Open(path string, maxLineBytes int) (*Source, error) {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &FileAccessError{Path: path, Op: "open", Err: err}
	}

	s := &Source{path: path, file: f}
	r, err := s.decompress(f)
	if err != nil {
		_ = f.Close()
		return nil, &FileAccessError{Path: path, Op: "open", Err: err}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(64*1024, maxLineBytes)), maxLineBytes)
	s.scanner = sc
	return s, nil
}

func (s *Source) decompress(f *os.File) (io.Reader, error) {
	switch {
	case strings.HasSuffix(s.path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		s.closers = append(s.closers, zr)
		return zr, nil
	case strings.HasSuffix(s.path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		s.closers = append(s.closers, zr.IOReadCloser())
		return zr, nil
	default:
		return f, nil
	}
}

// Next advances to the next line. It returns false at end of file or on a read error;
// Err tells the two apart.
func (s *Source) Next() bool {
	if s.err != nil || s.scanner == nil {
		return false
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				err = fmt.Errorf("line %d: %w", s.line.Number+1, err)
			}
			s.err = &FileAccessError{Path: s.path, Op: "read", Err: err}
		}
		return false
	}
	s.line = Line{Number: s.line.Number + 1, Text: s.scanner.Text()}
	return true
}

// Line returns the line produced by the last successful Next.
func (s *Source) Line() Line {
	return s.line
}

// Err returns the read error that stopped iteration, or nil at a clean end of file.
func (s *Source) Err() error {
	return s.err
}

func (s *Source) Path() string {
	return s.path
}

// Close releases the file handle. It is safe to call more than once.
func (s *Source) Close() error {
	if s.file == nil {
		return nil
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i].Close()
	}
	err := s.file.Close()
	s.file = nil
	s.closers = nil
	s.scanner = nil
	return err
}
