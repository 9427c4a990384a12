package ingest

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/explorer/internal/dataset"
)

// ParseFunc turns a byte stream into a Dataset.
type ParseFunc func(r io.Reader) (*dataset.Dataset, error)

// Format describes a supported source format.
type Format struct {
	Ext   string // lowercase file suffix including the dot, e.g. ".csv"
	Name  string // short name used in error messages, e.g. "csv"
	Parse ParseFunc
}

var (
	registry   = make(map[string]Format)
	registryMu sync.RWMutex
)

func init() {
	Register(Format{Ext: ".csv", Name: "csv", Parse: ParseDelimited})
	Register(Format{Ext: ".json", Name: "json", Parse: ParseStructured})
}

// Register adds a format to the registry.
// Panics if a format with the same extension is already registered.
func Register(f Format) {
	registryMu.Lock()
	defer registryMu.Unlock()

	ext := strings.ToLower(f.Ext)
	if _, exists := registry[ext]; exists {
		panic(fmt.Sprintf("format already registered: %s", ext))
	}
	f.Ext = ext
	registry[ext] = f
}

// Lookup returns the format registered for ext (case-insensitive).
func Lookup(ext string) (Format, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	f, ok := registry[strings.ToLower(ext)]
	return f, ok
}

// Extensions returns all registered extensions, sorted.
func Extensions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
