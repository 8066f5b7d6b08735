package file

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Reader loads newline-delimited records from a local file.
type Reader struct {
	path string
}

// NewReader creates a file reader.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Load reads every line of the file. Blank lines are dropped. A missing or
// unreadable file is an error; the caller must not produce output.
func (r *Reader) Load(ctx context.Context) ([][]byte, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", r.path, err)
	}
	defer f.Close()

	return readLines(ctx, f)
}

// Source describes the reader in logs.
func (r *Reader) Source() string {
	return r.path
}

func readLines(ctx context.Context, src io.Reader) ([][]byte, error) {
	br := bufio.NewReaderSize(src, 64*1024)
	lines := make([][]byte, 0, 1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := br.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			lines = append(lines, trimmed)
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
	}
}
