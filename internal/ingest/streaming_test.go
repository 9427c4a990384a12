package ingest

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("Symbol,Price")...),
			expected: "Symbol,Price",
		},
		{
			name:     "file without BOM",
			input:    []byte("Symbol,Price"),
			expected: "Symbol,Price",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM kept",
			input:    []byte{0xEF, 0xBB, 'a'},
			expected: string([]byte{0xEF, 0xBB, 'a'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(NewBOMSkippingReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"valid ASCII", []byte("AAA,10"), "AAA,10"},
		{"valid multibyte", []byte("Zürich,€"), "Zürich,€"},
		{"invalid byte replaced", []byte{'h', 'e', 0x80, 'l', 'o'}, "he�lo"},
		{"truncated sequence at end", []byte{'a', 0xE2, 0x82}, "a��"},
		{"empty input", []byte{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(NewUTF8Sanitizer(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestUTF8Sanitizer_SplitSequences(t *testing.T) {
	input := "naïve,€42,日本"
	r := NewUTF8Sanitizer(iotest.OneByteReader(strings.NewReader(input)))

	result, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != input {
		t.Errorf("got %q, want %q", string(result), input)
	}
}

func TestCountingReader(t *testing.T) {
	data := strings.Repeat("x", 1000)

	var reported []int
	cr := NewCountingReader(iotest.HalfReader(strings.NewReader(data)), int64(len(data)), func(pct int) {
		reported = append(reported, pct)
	})

	if _, err := io.ReadAll(cr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cr.Progress() != 100 {
		t.Errorf("Progress() = %d, want 100", cr.Progress())
	}
	if len(reported) == 0 || reported[len(reported)-1] != 100 {
		t.Fatalf("reported = %v, want last value 100", reported)
	}
	for i := 1; i < len(reported); i++ {
		if reported[i] <= reported[i-1] {
			t.Errorf("progress not increasing: %v", reported)
			break
		}
	}
}

func TestCountingReader_UnknownTotal(t *testing.T) {
	called := false
	cr := NewCountingReader(strings.NewReader("abc"), 0, func(int) { called = true })

	if _, err := io.ReadAll(cr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cr.Progress() != 0 {
		t.Errorf("Progress() = %d, want 0", cr.Progress())
	}
	if called {
		t.Error("progress reported without a known total")
	}
}

func TestWrapForStreaming(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a,b\n1,\x802\n")...)

	result, err := io.ReadAll(WrapForStreaming(bytes.NewReader(input), int64(len(input)), nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "a,b\n1,�2\n"
	if string(result) != want {
		t.Errorf("got %q, want %q", string(result), want)
	}
}
