package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thelolagemann/gbcore/internal/cartridge"
	"github.com/thelolagemann/gbcore/internal/romtest"
)

func testKey(t *testing.T, title string) cartridge.Key {
	t.Helper()
	rom := romtest.Build(romtest.Options{Title: title})
	h, err := cartridge.NewHeader(rom[cartridge.HeaderStart:])
	require.NoError(t, err)
	return h.Key()
}

// blob returns compressible but distinct data.
func blob(seed byte, n int) []byte {
	b := bytes.Repeat([]byte{seed, 0, 0, 0}, n/4)
	b[len(b)/2] = ^seed
	return b
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	result := map[string]Store{"memory": NewMemoryStore()}
	for _, c := range []Codec{CodecNone, CodecBrotli, CodecZstd} {
		s, err := NewFileStore(t.TempDir(), WithCodec(c))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		result["file/"+string(c)] = s
	}
	return result
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			key, other := testKey(t, "POKEMON"), testKey(t, "TETRIS")

			_, err := s.LatestState(ctx, key)
			assert.ErrorIs(t, err, ErrNoState)
			_, err = s.LoadBattery(ctx, key)
			assert.ErrorIs(t, err, ErrNoBattery)
			infos, err := s.States(ctx, key)
			require.NoError(t, err)
			assert.Empty(t, infos)

			first, second := blob(1, 4096), blob(2, 8192)
			info, err := s.AppendState(ctx, key, first)
			require.NoError(t, err)
			assert.Equal(t, 1, info.Index)
			assert.Equal(t, len(first), info.Size)
			info, err = s.AppendState(ctx, key, second)
			require.NoError(t, err)
			assert.Equal(t, 2, info.Index)

			latest, err := s.LatestState(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, second, latest)
			got, err := s.LoadState(ctx, key, 1)
			require.NoError(t, err)
			assert.Equal(t, first, got)
			_, err = s.LoadState(ctx, key, 3)
			assert.ErrorIs(t, err, ErrNoState)

			infos, err = s.States(ctx, key)
			require.NoError(t, err)
			require.Len(t, infos, 2)
			assert.Equal(t, []int{1, 2}, []int{infos[0].Index, infos[1].Index})
			assert.False(t, infos[1].Created.Before(infos[0].Created))

			battery := blob(3, 0x2000)
			require.NoError(t, s.SaveBattery(ctx, key, battery))
			got, err = s.LoadBattery(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, battery, got)

			// keys never share data
			_, err = s.LatestState(ctx, other)
			assert.ErrorIs(t, err, ErrNoState)
			_, err = s.LoadBattery(ctx, other)
			assert.ErrorIs(t, err, ErrNoBattery)
		})
	}
}

func TestStore_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			key := testKey(t, "CANCEL")
			_, err := s.AppendState(ctx, key, []byte{1})
			assert.ErrorIs(t, err, context.Canceled)
			assert.ErrorIs(t, s.SaveBattery(ctx, key, []byte{1}), context.Canceled)
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewFileStore(root, WithCodec(CodecZstd))
	require.NoError(t, err)
	defer s.Close()
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	key := testKey(t, "LAYOUT")
	_, err = s.AppendState(ctx, key, blob(7, 1024))
	require.NoError(t, err)
	require.NoError(t, s.SaveBattery(ctx, key, []byte{1, 2, 3}))

	dir := filepath.Join(root, key.String())
	assert.Equal(t, dir, s.Dir(key))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"manifest.json", "battery.sav", "state-000001.zst"}, names)

	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	m, err := decodeManifest(data)
	require.NoError(t, err)
	assert.Equal(t, "LAYOUT", m.Title)
	require.Len(t, m.States, 1)
	assert.Equal(t, stateEntry{
		Index:   1,
		File:    "state-000001.zst",
		Codec:   CodecZstd,
		Size:    1024,
		Created: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}, m.States[0])
	assert.True(t, strings.Contains(string(data), `"title":"LAYOUT"`))
}

func TestFileStore_Reopen(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	key := testKey(t, "REOPEN")

	s, err := NewFileStore(root, WithCodec(CodecBrotli))
	require.NoError(t, err)
	_, err = s.AppendState(ctx, key, blob(1, 512))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// states keep the codec they were written with
	s, err = NewFileStore(root, WithCodec(CodecNone))
	require.NoError(t, err)
	defer s.Close()
	_, err = s.AppendState(ctx, key, blob(2, 512))
	require.NoError(t, err)

	got, err := s.LoadState(ctx, key, 1)
	require.NoError(t, err)
	assert.Equal(t, blob(1, 512), got)
	got, err = s.LatestState(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, blob(2, 512), got)
}

func TestFileStore_MaxStates(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir(), WithMaxStates(2))
	require.NoError(t, err)
	defer s.Close()

	key := testKey(t, "ROTATE")
	for i := 1; i <= 4; i++ {
		_, err := s.AppendState(ctx, key, blob(byte(i), 256))
		require.NoError(t, err)
	}

	infos, err := s.States(ctx, key)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, 3, infos[0].Index)
	assert.Equal(t, 4, infos[1].Index)
	_, err = s.LoadState(ctx, key, 1)
	assert.ErrorIs(t, err, ErrNoState)
	_, err = os.Stat(filepath.Join(s.Dir(key), "state-000001.br"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileStore_MissingStateFile(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	key := testKey(t, "MISSING")
	_, err = s.AppendState(ctx, key, blob(1, 64))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(s.Dir(key), "state-000001.br")))

	_, err = s.LatestState(ctx, key)
	assert.ErrorIs(t, err, ErrNoState)
}

func TestParseCodec(t *testing.T) {
	for _, name := range []string{"none", "brotli", "zstd"} {
		c, err := ParseCodec(name)
		require.NoError(t, err)
		assert.Equal(t, Codec(name), c)
	}
	_, err := ParseCodec("lzma")
	assert.ErrorIs(t, err, ErrUnknownCodec)

	_, err = NewFileStore(t.TempDir(), WithCodec("lzma"))
	assert.ErrorIs(t, err, ErrUnknownCodec)
}
