// Package storage persists battery RAM and save states, keyed by the
// raw cartridge header.
package storage

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/thelolagemann/gbcore/internal/cartridge"
)

var (
	// ErrNoState is returned when a cartridge has no stored save state,
	// or none with the requested index.
	ErrNoState = errors.New("storage: no save state")
	// ErrNoBattery is returned when a cartridge has no stored battery image.
	ErrNoBattery = errors.New("storage: no battery image")
)

// StateInfo describes one stored save state. Index increases by one
// with every state appended for a cartridge, starting at 1.
type StateInfo struct {
	Index   int
	Created time.Time
	Size    int // uncompressed
}

// Store persists the data of any number of cartridges. Blobs are
// returned byte for byte as they were stored.
type Store interface {
	SaveBattery(ctx context.Context, key cartridge.Key, data []byte) error
	LoadBattery(ctx context.Context, key cartridge.Key) ([]byte, error)

	AppendState(ctx context.Context, key cartridge.Key, blob []byte) (StateInfo, error)
	// LatestState returns the most recently appended state.
	LatestState(ctx context.Context, key cartridge.Key) ([]byte, error)
	// States lists the stored states, oldest first.
	States(ctx context.Context, key cartridge.Key) ([]StateInfo, error)
	LoadState(ctx context.Context, key cartridge.Key, index int) ([]byte, error)

	Close() error
}

type memoryEntry struct {
	battery []byte
	states  []StateInfo
	blobs   [][]byte
}

// MemoryStore keeps everything in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[cartridge.Key]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[cartridge.Key]*memoryEntry), now: time.Now}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) entry(key cartridge.Key) *memoryEntry {
	e, ok := m.entries[key]
	if !ok {
		e = &memoryEntry{}
		m.entries[key] = e
	}
	return e
}

func (m *MemoryStore) SaveBattery(ctx context.Context, key cartridge.Key, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(key).battery = bytes.Clone(data)
	return nil
}

func (m *MemoryStore) LoadBattery(ctx context.Context, key cartridge.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.battery == nil {
		return nil, ErrNoBattery
	}
	return bytes.Clone(e.battery), nil
}

func (m *MemoryStore) AppendState(ctx context.Context, key cartridge.Key, blob []byte) (StateInfo, error) {
	if err := ctx.Err(); err != nil {
		return StateInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(key)
	info := StateInfo{Index: 1, Created: m.now(), Size: len(blob)}
	if n := len(e.states); n > 0 {
		info.Index = e.states[n-1].Index + 1
	}
	e.states = append(e.states, info)
	e.blobs = append(e.blobs, bytes.Clone(blob))
	return info, nil
}

func (m *MemoryStore) LatestState(ctx context.Context, key cartridge.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || len(e.blobs) == 0 {
		return nil, ErrNoState
	}
	return bytes.Clone(e.blobs[len(e.blobs)-1]), nil
}

func (m *MemoryStore) States(ctx context.Context, key cartridge.Key) ([]StateInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return append([]StateInfo(nil), e.states...), nil
	}
	return nil, nil
}

func (m *MemoryStore) LoadState(ctx context.Context, key cartridge.Key, index int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		for i, s := range e.states {
			if s.Index == index {
				return bytes.Clone(e.blobs[i]), nil
			}
		}
	}
	return nil, errors.Wrapf(ErrNoState, "index %d", index)
}

func (m *MemoryStore) Close() error { return nil }
