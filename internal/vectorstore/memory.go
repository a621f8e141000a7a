package vectorstore

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/vecsync/internal/models"
)

const memoryFileMagic = "VSC1"

type memoryEntry struct {
	vector   []float32
	metadata models.Metadata
}

// MemoryStore keeps the collection in a map. When path is set the collection is loaded from that file
// on open and written back on Flush and Close.
type MemoryStore struct {
	path       string
	dimensions int
	entries    map[string]memoryEntry
	dirty      bool
	mu         sync.RWMutex
}

// NewMemoryStore creates a memory store. dimensions <= 0 disables the vector length check; path "" disables persistence.
func NewMemoryStore(path string, dimensions int) (*MemoryStore, error) {
	m := &MemoryStore{
		path:       path,
		dimensions: dimensions,
		entries:    make(map[string]memoryEntry),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MemoryStore) Upsert(ctx context.Context, id string, vector []float32, metadata models.Metadata) error {
	if err := checkDimensions(m.dimensions, vector); err != nil {
		return err
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = memoryEntry{vector: vec, metadata: metadata.Clone()}
	m.dirty = true
	return nil
}

func (m *MemoryStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if err := checkDimensions(m.dimensions, vector); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	top := newTopK(k)
	for id, e := range m.entries {
		top.offer(id, CosineSimilarity(vector, e.vector), e.metadata.Clone())
	}
	return top.result(), nil
}

func (m *MemoryStore) DropCollection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	m.dirty = false
	if m.path == "" {
		return nil
	}
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove collection file: %w", err)
	}
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[id]
	return ok, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}

func (m *MemoryStore) ListIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedIDs(), nil
}

func (m *MemoryStore) sortedIDs() []string {
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *MemoryStore) Delete(ctx context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if _, ok := m.entries[id]; ok {
			delete(m.entries, id)
			m.dirty = true
		}
	}
	return nil
}

func (m *MemoryStore) GetMetadata(ctx context.Context, id string) (models.Metadata, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, false, nil
	}
	return e.metadata.Clone(), true, nil
}

func (m *MemoryStore) GetAllMetadata(ctx context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.sortedIDs()
	out := make([]Record, len(ids))
	for i, id := range ids {
		out[i] = Record{ID: id, Metadata: m.entries[id].metadata.Clone()}
	}
	return out, nil
}

// Flush writes the collection file if anything changed since the last write.
func (m *MemoryStore) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.path == "" || !m.dirty {
		return nil
	}
	if err := m.save(); err != nil {
		return err
	}
	m.dirty = false
	return nil
}

// Close flushes pending changes.
func (m *MemoryStore) Close() error {
	return m.Flush()
}

// save writes magic (4), count (4), then per record: idLen (4), id, entryLen (4), entry.
// The file is written to a temp name and renamed into place.
func (m *MemoryStore) save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create collection dir: %w", err)
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create collection file: %w", err)
	}
	w := bufio.NewWriter(f)
	writeErr := func() error {
		if _, err := w.WriteString(memoryFileMagic); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(m.entries))); err != nil {
			return err
		}
		for _, id := range m.sortedIDs() {
			e := m.entries[id]
			data, err := encodeEntry(e.vector, e.metadata)
			if err != nil {
				return err
			}
			if err := writeChunk(w, []byte(id)); err != nil {
				return err
			}
			if err := writeChunk(w, data); err != nil {
				return err
			}
		}
		return w.Flush()
	}()
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write collection file: %w", writeErr)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace collection file: %w", err)
	}
	return nil
}

func (m *MemoryStore) load() error {
	if m.path == "" {
		return nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open collection file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic := make([]byte, len(memoryFileMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if string(magic) != memoryFileMagic {
		return fmt.Errorf("%s is not a collection file", m.path)
	}
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	for i := uint32(0); i < n; i++ {
		id, err := readChunk(r)
		if err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		data, err := readChunk(r)
		if err != nil {
			return fmt.Errorf("read entry %s: %w", id, err)
		}
		vec, md, err := decodeEntry(data)
		if err != nil {
			return fmt.Errorf("decode entry %s: %w", id, err)
		}
		if err := checkDimensions(m.dimensions, vec); err != nil {
			return fmt.Errorf("entry %s: %w", id, err)
		}
		m.entries[string(id)] = memoryEntry{vector: vec, metadata: md}
	}
	return nil
}

func writeChunk(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readChunk(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func checkDimensions(want int, vector []float32) error {
	if want > 0 && len(vector) != want {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vector), want)
	}
	return nil
}
