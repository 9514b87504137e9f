package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/thelolagemann/gbcore/internal/ppu"
	"github.com/thelolagemann/gbcore/pkg/config"
	"github.com/thelolagemann/gbcore/pkg/emulator"
	"github.com/thelolagemann/gbcore/pkg/log"
	"github.com/thelolagemann/gbcore/pkg/storage"
	"golang.org/x/sync/errgroup"
)

type RunCmd struct {
	RomPaths []string `arg:"" name:"/path/to/rom" help:"${romfile_help}" type:"existingfile"`

	Frames     uint64 `name:"frames" help:"Number of frames to run." default:"600"`
	Screenshot bool   `name:"screenshot" help:"Save the last frame as PNG."`
	Scale      int    `name:"scale" help:"Screenshot scale factor." default:"2"`
	Wav        bool   `name:"wav" help:"Save the audio produced as WAV."`
	Out        string `name:"out" help:"Directory for screenshots and audio." type:"path" default:"."`
	Cheats     string `name:"cheats" help:"Cheat file of Game Genie and GameShark codes." type:"existingfile" placeholder:"FILE"`
	LoadState  bool   `name:"load-state" help:"Restore the latest save state before running."`
	SaveState  bool   `name:"save-state" help:"Append a save state after running."`
}

func (c *RunCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if c.Screenshot || c.Wav {
		if err := os.MkdirAll(c.Out, config.DefaultFileMode); err != nil {
			return err
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, path := range c.RomPaths {
		path := path
		eg.Go(func() error {
			l := log.WithField(g.Log, "rom", filepath.Base(path))
			s, err := g.newSession(c.Cheats, emulator.WithLogger(l))
			if err != nil {
				return err
			}
			if err := c.runROM(ctx, s, path, g.Config.Emulation.SampleRate, l); err != nil {
				return errors.Wrap(err, path)
			}
			return nil
		})
	}
	return eg.Wait()
}

func (c *RunCmd) runROM(ctx context.Context, s *emulator.Session, path string, sampleRate int, l log.Logger) (err error) {
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := s.Load(ctx, path); err != nil {
		return err
	}
	if c.LoadState {
		switch err := s.LoadState(ctx, 0); {
		case errors.Is(err, storage.ErrNoState):
			l.Warnf("no save state to load")
		case err != nil:
			return err
		}
	}

	rec := recorder{pixels: make([]byte, 0, ppu.ScreenWidth*ppu.ScreenHeight*3)}
	if err := s.Run(ctx, c.Frames, rec.record(c.Wav)); err != nil {
		return err
	}
	l.Infof("ran %d frames", rec.frames)

	base := filepath.Join(c.Out, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if c.Screenshot {
		if err := saveScreenshot(rec.pixels, base, c.Scale); err != nil {
			return errors.Wrap(err, "screenshot")
		}
	}
	if c.Wav {
		if err := saveWAV(rec.audio.Bytes(), base+".wav", sampleRate); err != nil {
			return errors.Wrap(err, "wav")
		}
	}
	if c.SaveState {
		info, err := s.SaveState(ctx)
		if err != nil {
			return err
		}
		l.Infof("saved state %d", info.Index)
	}
	return nil
}
