// Package gzio opens input files that may or may not be gzip-compressed.
package gzio

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
)

// reader closes both the gzip stream and the underlying file.
type reader struct {
	io.Reader
	closers []io.Closer
}

func (r *reader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens path for reading. Gzip input is detected by its magic bytes
// (0x1f 0x8b), not by the file extension.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return wrap(f, f)
}

// NewReader wraps r, decompressing it when it starts with the gzip magic.
func NewReader(r io.Reader) (io.ReadCloser, error) {
	return wrap(r, nil)
}

func wrap(r io.Reader, c io.Closer) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	out := &reader{Reader: br}
	if c != nil {
		out.closers = append(out.closers, c)
	}

	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		out.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		out.Reader = gz
		out.closers = append([]io.Closer{gz}, out.closers...)
	}
	return out, nil
}
