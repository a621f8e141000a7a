package ingest

import (
	"sync"

	"github.com/hyperjump/vecsync/internal/extract"
	"github.com/hyperjump/vecsync/internal/identity"
	"github.com/hyperjump/vecsync/internal/models"
)

// Dispatcher maps file extensions to engines, with an optional default for unregistered extensions.
type Dispatcher struct {
	mu       sync.RWMutex
	engines  map[string]Engine
	fallback Engine
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{engines: make(map[string]Engine)}
}

// NewDefaultDispatcher registers the built-in engines: PDF pages, record formats, word processor
// documents, and plain text as the default.
func NewDefaultDispatcher(assigner *identity.Assigner, recordTextField string) *Dispatcher {
	d := NewDispatcher()
	d.Register(".pdf", NewPDFEngine(assigner))
	records := NewRecordEngine(assigner, recordTextField)
	for _, ext := range extract.RecordExtensions {
		d.Register(ext, records)
	}
	text := NewTextEngine(assigner)
	for _, ext := range extract.DocumentExtensions {
		d.Register(ext, text)
	}
	d.SetDefault(text)
	return d
}

// Register binds ext (case-insensitive, leading dot optional) to engine.
func (d *Dispatcher) Register(ext string, engine Engine) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.engines[normalizeExt(ext)] = engine
}

// SetDefault sets the engine used for extensions without a registration.
func (d *Dispatcher) SetDefault(engine Engine) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = engine
}

// Resolve returns the engine for path's extension.
func (d *Dispatcher) Resolve(path string) (Engine, error) {
	return d.ResolveExtension(identity.Extension(path))
}

// ResolveExtension returns the engine for ext, or the default. It returns a *models.ConfigurationError
// when neither exists.
func (d *Dispatcher) ResolveExtension(ext string) (Engine, error) {
	ext = normalizeExt(ext)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if e, ok := d.engines[ext]; ok {
		return e, nil
	}
	if d.fallback != nil {
		return d.fallback, nil
	}
	return nil, models.NewConfigurationError("dispatcher", "no engine registered for extension %q and no default", ext)
}

// Partition is the sources of one extension in input order.
type Partition struct {
	Extension string
	Paths     []string
}

// PartitionByExtension groups paths by lower-cased extension. Groups appear in order of each extension's
// first occurrence.
func PartitionByExtension(paths []string) []Partition {
	var parts []Partition
	index := make(map[string]int)
	for _, p := range paths {
		ext := identity.Extension(p)
		i, ok := index[ext]
		if !ok {
			i = len(parts)
			index[ext] = i
			parts = append(parts, Partition{Extension: ext})
		}
		parts[i].Paths = append(parts[i].Paths, p)
	}
	return parts
}
