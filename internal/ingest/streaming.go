package ingest

// streaming.go holds the reader chain every upload passes through:
//
//   - CountingReader: tracks raw bytes read and reports percent progress
//   - BOMSkippingReader: drops a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - UTF8Sanitizer: replaces invalid UTF-8 bytes with U+FFFD
//
// Use WrapForStreaming to build the chain in the correct order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: bufio.NewReader(r)}
}

// Read implements io.Reader. The first call discards a BOM if one is present.
func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		if head, _ := b.r.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
			_, _ = b.r.Discard(len(utf8BOM))
		}
	}
	return b.r.Read(p)
}

// UTF8Sanitizer replaces invalid UTF-8 sequences with the replacement
// character while streaming. Multi-byte sequences split across reads of the
// underlying reader are held back until complete.
type UTF8Sanitizer struct {
	r       io.Reader
	buf     [4096]byte
	pending []byte
	out     []byte
	err     error
}

// NewUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{r: r}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}

		n, err := s.r.Read(s.buf[:])
		data := append(s.pending, s.buf[:n]...)
		s.pending = nil
		s.err = err

		if err == nil {
			if t := incompleteTrailingBytes(data); t > 0 {
				s.pending = append([]byte(nil), data[len(data)-t:]...)
				data = data[:len(data)-t]
			}
		}
		s.out = sanitizeUTF8(data)
	}

	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// sanitizeUTF8 returns data with every invalid byte replaced by U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data) + 8)

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
		} else {
			buf.Write(data[:size])
		}
		data = data[size:]
	}
	return buf.Bytes()
}

// incompleteTrailingBytes returns the number of bytes at the end of data that
// start a multi-byte UTF-8 sequence whose remaining bytes have not arrived.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		// Anything other than a continuation byte ends the search.
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the expected length of a UTF-8 sequence starting with b.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// CountingReader tracks bytes read and reports progress as they arrive.
type CountingReader struct {
	r          io.Reader
	read       int64
	total      int64
	last       int
	onProgress func(percent int)
}

// NewCountingReader creates a counting reader. total may be 0 when the size
// is unknown, in which case no progress is reported. onProgress may be nil.
func NewCountingReader(r io.Reader, total int64, onProgress func(percent int)) *CountingReader {
	return &CountingReader{r: r, total: total, onProgress: onProgress}
}

// Read implements io.Reader.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)

	if c.onProgress != nil && c.total > 0 {
		if pct := c.Progress(); pct > c.last {
			c.last = pct
			c.onProgress(pct)
		}
	}
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (c *CountingReader) Progress() int {
	if c.total <= 0 {
		return 0
	}
	pct := int(c.read * 100 / c.total)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// WrapForStreaming builds the full reader chain over r.
//
// Counting sits next to the source so percentages reflect raw bytes; the BOM
// is stripped before sanitising so it is never mistaken for content.
func WrapForStreaming(r io.Reader, total int64, onProgress func(percent int)) io.Reader {
	counting := NewCountingReader(r, total, onProgress)
	return NewUTF8Sanitizer(NewBOMSkippingReader(counting))
}
