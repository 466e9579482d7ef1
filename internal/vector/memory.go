package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// MemoryIndex is an in-memory brute-force vector index. Sorting by distance is
// stable in insertion order, so equal-distance candidates keep a deterministic
// tie-break.
type MemoryIndex struct {
	dimensions int
	paths      []string
	vectors    [][]float32
	byPath     map[string]int
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		byPath:     make(map[string]int),
	}, nil
}

// Add appends vectors keyed by frame path.
func (m *MemoryIndex) Add(ctx context.Context, paths []string, vectors [][]float32) error {
	if len(paths) != len(vectors) {
		return fmt.Errorf("paths and vectors length mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range paths {
		if len(vectors[i]) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), m.dimensions)
		}
		if _, exists := m.byPath[p]; exists {
			return fmt.Errorf("path already indexed: %s", p)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		m.byPath[p] = len(m.paths)
		m.paths = append(m.paths, p)
		m.vectors = append(m.vectors, vec)
	}
	return nil
}

// Search returns the top-k entries by cosine distance, ascending. Distance is
// computed as 1 - inner product, which equals cosine distance for normalized
// vectors.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.paths) == 0 {
		return nil, nil
	}
	results := make([]*Result, len(m.paths))
	for i, vec := range m.vectors {
		var dot float64
		for j := 0; j < m.dimensions; j++ {
			dot += float64(query[j] * vec[j])
		}
		results[i] = &Result{Path: m.paths[i], Distance: 1 - dot}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Remove removes entries by path. Unknown paths are ignored.
func (m *MemoryIndex) Remove(ctx context.Context, paths []string) error {
	removeSet := make(map[string]bool, len(paths))
	for _, p := range paths {
		removeSet[p] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	newPaths := make([]string, 0, len(m.paths))
	newVectors := make([][]float32, 0, len(m.vectors))
	for i, p := range m.paths {
		if !removeSet[p] {
			newPaths = append(newPaths, p)
			newVectors = append(newVectors, m.vectors[i])
		}
	}
	m.paths = newPaths
	m.vectors = newVectors
	m.byPath = make(map[string]int, len(newPaths))
	for i, p := range newPaths {
		m.byPath[p] = i
	}
	return nil
}

// Vector returns the stored embedding for a path.
func (m *MemoryIndex) Vector(path string) ([]float32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byPath[path]
	if !ok {
		return nil, false
	}
	vec := make([]float32, m.dimensions)
	copy(vec, m.vectors[i])
	return vec, true
}

// Save persists the index to path. Directory is created if needed. Format:
// dimension (4), n (4), then per entry: pathLen (4), path bytes, vector
// (dimension*4 bytes).
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(m.paths))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, p := range m.paths {
		pathBytes := []byte(p)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(pathBytes))); err != nil {
			return fmt.Errorf("write path len: %w", err)
		}
		if _, err := f.Write(pathBytes); err != nil {
			return fmt.Errorf("write path: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(m.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents.
// Dimensions must match. A missing file is not an error; the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = make([]string, 0, n)
	m.vectors = make([][]float32, 0, n)
	m.byPath = make(map[string]int, n)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var pathLen uint32
		if err := binary.Read(f, binary.LittleEndian, &pathLen); err != nil {
			return fmt.Errorf("read path len: %w", err)
		}
		pathBytes := make([]byte, pathLen)
		if _, err := f.Read(pathBytes); err != nil {
			return fmt.Errorf("read path: %w", err)
		}
		if _, err := f.Read(buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		m.byPath[string(pathBytes)] = len(m.paths)
		m.paths = append(m.paths, string(pathBytes))
		m.vectors = append(m.vectors, bytesToFloat32Slice(buf))
	}
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.paths)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
