package main

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thelolagemann/gbcore/internal/ppu"
	"github.com/thelolagemann/gbcore/internal/romtest"
	"github.com/thelolagemann/gbcore/pkg/config"
	"github.com/thelolagemann/gbcore/pkg/log"
)

func testGlobals(t *testing.T) *Globals {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Dir = filepath.Join(t.TempDir(), "saves")
	return &Globals{Config: cfg, Log: log.NewNullLogger()}
}

func writeROM(t *testing.T, dir, name, title string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, romtest.Build(romtest.Options{Title: title}), 0o644))
	return path
}

func TestRunCmd(t *testing.T) {
	g := testGlobals(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	cmd := &RunCmd{
		RomPaths:   []string{writeROM(t, dir, "one.gb", "ONE"), writeROM(t, dir, "two.gb", "TWO")},
		Frames:     30,
		Screenshot: true,
		Scale:      2,
		Wav:        true,
		Out:        out,
		SaveState:  true,
	}
	require.NoError(t, cmd.Run(g))

	for _, name := range []string{"one", "two"} {
		f, err := os.Open(filepath.Join(out, name+".png"))
		require.NoError(t, err)
		img, err := png.Decode(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, ppu.ScreenWidth*2, img.Bounds().Dx())
		assert.Equal(t, ppu.ScreenHeight*2, img.Bounds().Dy())

		f, err = os.Open(filepath.Join(out, name+".wav"))
		require.NoError(t, err)
		d := wav.NewDecoder(f)
		d.ReadInfo()
		assert.True(t, d.IsValidFile())
		assert.Equal(t, uint16(2), d.NumChans)
		assert.Equal(t, uint32(g.Config.Emulation.SampleRate), d.SampleRate)
		f.Close()
	}

	store, err := g.openStore()
	require.NoError(t, err)
	for _, path := range cmd.RomPaths {
		h, err := readHeader(path)
		require.NoError(t, err)
		states, err := store.States(context.Background(), h.Key())
		require.NoError(t, err)
		assert.Len(t, states, 1)
	}
	require.NoError(t, store.Close())

	cmd = &RunCmd{RomPaths: cmd.RomPaths[:1], Frames: 1, LoadState: true, Out: out}
	assert.NoError(t, cmd.Run(g))
}

func TestRunCmd_Missing(t *testing.T) {
	cmd := &RunCmd{RomPaths: []string{filepath.Join(t.TempDir(), "missing.gb")}, Frames: 1}
	assert.Error(t, cmd.Run(testGlobals(t)))
}

func TestReadHeader(t *testing.T) {
	dir := t.TempDir()
	h, err := readHeader(writeROM(t, dir, "cli.gb", "CLI"))
	require.NoError(t, err)
	assert.Equal(t, "CLI", h.Title)

	short := filepath.Join(dir, "short.gb")
	require.NoError(t, os.WriteFile(short, make([]byte, 0x120), 0o644))
	_, err = readHeader(short)
	assert.Error(t, err)
}

func TestParseArgs(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	ctx, g := parseArgs([]string{"--config", cfgPath, "--log-level", "debug", "layout"})
	assert.Equal(t, "layout", ctx.Command())
	assert.Equal(t, "debug", g.Config.Log.Level)
}
