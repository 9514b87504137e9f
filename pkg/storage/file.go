package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/thelolagemann/gbcore/internal/cartridge"
	"github.com/thelolagemann/gbcore/pkg/log"
)

const (
	manifestName = "manifest.json"
	batteryName  = "battery.sav"
	dirMode      = 0o755
	fileMode     = 0o644
)

// FileStore keeps one directory per cartridge under its root, named
// by the hash of the header:
//
//	<root>/<hash>/manifest.json
//	<root>/<hash>/battery.sav
//	<root>/<hash>/state-000001.br
//
// Every file is written to a temporary file first and renamed into
// place, so an interrupted write never corrupts a previous save.
type FileStore struct {
	mu        sync.Mutex
	root      string
	codec     Codec
	maxStates int
	now       func() time.Time
	c         *codecs
	log       log.Logger
}

// FileOpt configures a FileStore.
type FileOpt func(*FileStore)

// WithCodec sets the compression of newly appended states.
func WithCodec(c Codec) FileOpt {
	return func(s *FileStore) {
		s.codec = c
	}
}

// WithMaxStates keeps only the newest n states of each cartridge. Zero
// keeps every state.
func WithMaxStates(n int) FileOpt {
	return func(s *FileStore) {
		s.maxStates = n
	}
}

func WithLogger(l log.Logger) FileOpt {
	return func(s *FileStore) {
		s.log = l
	}
}

// NewFileStore opens a store rooted at dir, creating it if needed.
func NewFileStore(dir string, opts ...FileOpt) (*FileStore, error) {
	s := &FileStore{
		root:  dir,
		codec: CodecBrotli,
		now:   time.Now,
		log:   log.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := ParseCodec(string(s.codec)); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, errors.Wrap(err, "create store")
	}
	c, err := newCodecs()
	if err != nil {
		return nil, err
	}
	s.c = c
	return s, nil
}

var _ Store = (*FileStore)(nil)

// Dir returns the directory of a cartridge.
func (s *FileStore) Dir(key cartridge.Key) string {
	return filepath.Join(s.root, key.String())
}

func (s *FileStore) SaveBattery(ctx context.Context, key cartridge.Key, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadManifest(key)
	if err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(s.Dir(key), batteryName), data); err != nil {
		return err
	}
	s.log.Debugf("storage: saved %d byte battery image for %q", len(data), m.Title)
	return s.saveManifest(key, m)
}

func (s *FileStore) LoadBattery(ctx context.Context, key cartridge.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.Dir(key), batteryName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoBattery
	}
	return data, err
}

func (s *FileStore) AppendState(ctx context.Context, key cartridge.Key, blob []byte) (StateInfo, error) {
	if err := ctx.Err(); err != nil {
		return StateInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadManifest(key)
	if err != nil {
		return StateInfo{}, err
	}
	entry := stateEntry{Index: 1, Codec: s.codec, Size: len(blob), Created: s.now()}
	if n := len(m.States); n > 0 {
		entry.Index = m.States[n-1].Index + 1
	}
	entry.File = fmt.Sprintf("state-%06d%s", entry.Index, s.codec.extension())

	packed, err := s.c.compress(s.codec, blob)
	if err != nil {
		return StateInfo{}, errors.Wrap(err, "compress state")
	}
	if err := writeAtomic(filepath.Join(s.Dir(key), entry.File), packed); err != nil {
		return StateInfo{}, err
	}
	m.States = append(m.States, entry)

	var stale []stateEntry
	if s.maxStates > 0 && len(m.States) > s.maxStates {
		stale = m.States[:len(m.States)-s.maxStates]
		m.States = append([]stateEntry(nil), m.States[len(stale):]...)
	}
	if err := s.saveManifest(key, m); err != nil {
		return StateInfo{}, err
	}
	// the manifest no longer references them
	for _, e := range stale {
		if err := os.Remove(filepath.Join(s.Dir(key), e.File)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warnf("storage: remove %s: %v", e.File, err)
		}
	}

	s.log.Debugf("storage: stored state %d for %q, %d bytes as %d", entry.Index, m.Title, len(blob), len(packed))
	return entry.info(), nil
}

func (s *FileStore) LatestState(ctx context.Context, key cartridge.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadManifest(key)
	if err != nil {
		return nil, err
	}
	if len(m.States) == 0 {
		return nil, ErrNoState
	}
	return s.readState(key, m.States[len(m.States)-1])
}

func (s *FileStore) States(ctx context.Context, key cartridge.Key) ([]StateInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadManifest(key)
	if err != nil {
		return nil, err
	}
	infos := make([]StateInfo, len(m.States))
	for i, e := range m.States {
		infos[i] = e.info()
	}
	return infos, nil
}

func (s *FileStore) LoadState(ctx context.Context, key cartridge.Key, index int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadManifest(key)
	if err != nil {
		return nil, err
	}
	for _, e := range m.States {
		if e.Index == index {
			return s.readState(key, e)
		}
	}
	return nil, errors.Wrapf(ErrNoState, "index %d", index)
}

// Close releases the compression coders.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result error
	if err := s.c.close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "close zstd"))
	}
	return result
}

func (s *FileStore) readState(key cartridge.Key, e stateEntry) ([]byte, error) {
	packed, err := os.ReadFile(filepath.Join(s.Dir(key), e.File))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(ErrNoState, "state %d: %s missing", e.Index, e.File)
		}
		return nil, err
	}
	blob, err := s.c.decompress(e.Codec, packed)
	if err != nil {
		return nil, errors.Wrapf(err, "decompress state %d", e.Index)
	}
	if len(blob) != e.Size {
		return nil, errors.Errorf("storage: state %d is %d bytes, manifest says %d", e.Index, len(blob), e.Size)
	}
	return blob, nil
}

// loadManifest reads the manifest of key, or starts a new one.
func (s *FileStore) loadManifest(key cartridge.Key) (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(key), manifestName))
	if errors.Is(err, os.ErrNotExist) {
		m := &manifest{Key: hex.EncodeToString(key[:])}
		if h, err := cartridge.NewHeader(key[:]); err == nil {
			m.Title = h.Title
		}
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	m, err := decodeManifest(data)
	if err != nil {
		return nil, err
	}
	if want := hex.EncodeToString(key[:]); m.Key != want {
		return nil, errors.Errorf("storage: %s belongs to another cartridge", s.Dir(key))
	}
	return m, nil
}

func (s *FileStore) saveManifest(key cartridge.Key, m *manifest) error {
	return writeAtomic(filepath.Join(s.Dir(key), manifestName), m.encode())
}

// writeAtomic replaces path with data through a temporary file in the
// same directory.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(f.Name(), fileMode); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
