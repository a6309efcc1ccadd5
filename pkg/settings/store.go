package settings

import (
	"fmt"
	"sync"

	"github.com/peterbourgon/diskv/v3"
)

// Store loads and saves the settings blob.
type Store interface {
	Load() Settings
	Save(Settings) error
}

// DiskStore keeps the blob in a diskv directory.
type DiskStore struct {
	d *diskv.Diskv
}

// NewDiskStore opens (creating on first write) the store rooted at dir.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{d: diskv.New(diskv.Options{
		BasePath:     dir,
		CacheSizeMax: 64 * 1024,
	})}
}

// Load returns the stored settings merged over the defaults. A missing or
// unreadable blob yields the defaults.
func (s *DiskStore) Load() Settings {
	data, err := s.d.Read(Key)
	if err != nil {
		return Defaults()
	}
	return Decode(data)
}

// Save writes s.
func (s *DiskStore) Save(st Settings) error {
	data, err := st.Encode()
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := s.d.Write(Key, data); err != nil {
		return fmt.Errorf("settings: write: %w", err)
	}
	return nil
}

// MemoryStore keeps the blob in memory.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemoryStore returns a store preloaded with data, which may be nil.
func NewMemoryStore(data []byte) *MemoryStore {
	return &MemoryStore{data: data}
}

func (m *MemoryStore) Load() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Decode(m.data)
}

func (m *MemoryStore) Save(st Settings) error {
	data, err := st.Encode()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.saves++
	return nil
}

// Saves reports how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
