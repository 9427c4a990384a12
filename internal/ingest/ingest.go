// Package ingest turns uploaded files into datasets.
//
// The format is chosen from the file name suffix through a small registry
// (.csv and .json out of the box). Every source is streamed through the reader
// chain in streaming.go, so a leading BOM is dropped, invalid UTF-8 is
// replaced, and byte progress is reported while parsing.
package ingest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/explorer/internal/dataset"
)

// Options tunes a single Parse call.
type Options struct {
	// Size is the source length in bytes, or 0 when unknown.
	Size int64

	// ApproxSize is an upper estimate of the length, such as a multipart
	// request length that includes framing. It drives progress when Size is
	// 0 and is never checked against MaxFileSize.
	ApproxSize int64

	// MaxFileSize rejects sources larger than this many bytes. 0 disables
	// the check.
	MaxFileSize int64

	// OnProgress receives increasing percentages (1-100). It is called from
	// the parsing goroutine and must not block.
	OnProgress func(percent int)
}

// Ext returns the lowercase suffix of fileName, including the dot.
func Ext(fileName string) string {
	return strings.ToLower(filepath.Ext(fileName))
}

// Parse reads r as the format named by fileName's suffix.
//
// The suffix is checked before any byte is read. Unsupported suffixes and
// malformed content yield a *FormatError, source failures a *ReadError, and
// cancellation returns ctx.Err().
func Parse(ctx context.Context, fileName string, r io.Reader, opts Options) (*dataset.Dataset, error) {
	ext := Ext(fileName)
	format, ok := Lookup(ext)
	if !ok {
		return nil, unsupportedExtension(ext)
	}

	if opts.MaxFileSize > 0 && opts.Size > opts.MaxFileSize {
		return nil, &ReadError{Err: fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, opts.Size, opts.MaxFileSize)}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := opts.Size
	if total <= 0 {
		total = opts.ApproxSize
	}

	src := &guardedReader{ctx: ctx, r: r, limit: opts.MaxFileSize}
	ds, err := format.Parse(WrapForStreaming(src, total, opts.OnProgress))
	if err != nil {
		return nil, err
	}

	if opts.OnProgress != nil {
		opts.OnProgress(100)
	}
	return ds, nil
}

// guardedReader sits directly on the caller's reader. It stops on context
// cancellation, enforces the size cap, and tags source failures as ReadError
// so parsers can tell them apart from malformed content.
type guardedReader struct {
	ctx   context.Context
	r     io.Reader
	limit int64
	read  int64
}

func (g *guardedReader) Read(p []byte) (int, error) {
	if err := g.ctx.Err(); err != nil {
		return 0, err
	}

	n, err := g.r.Read(p)
	g.read += int64(n)

	if g.limit > 0 && g.read > g.limit {
		return n, &ReadError{Err: fmt.Errorf("%w: exceeds limit of %d bytes", ErrFileTooLarge, g.limit)}
	}
	if err != nil && err != io.EOF {
		return n, &ReadError{Err: err}
	}
	return n, err
}
