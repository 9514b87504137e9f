package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/thelolagemann/gbcore/pkg/display/web"
	"github.com/thelolagemann/gbcore/pkg/emulator"
	"golang.org/x/sync/errgroup"
)

type ServeCmd struct {
	RomPath string `arg:"" name:"/path/to/rom" help:"${romfile_help}" type:"existingfile"`

	Addr      string `name:"addr" help:"Listen address. (default: from configuration)"`
	Cheats    string `name:"cheats" help:"Cheat file of Game Genie and GameShark codes." type:"existingfile" placeholder:"FILE"`
	LoadState bool   `name:"load-state" help:"Restore the latest save state before starting."`
}

func (c *ServeCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := g.newSession(c.Cheats, emulator.WithRealtime(), emulator.WithLogger(g.Log))
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			g.Log.Errorf("close session: %v", err)
		}
	}()

	if err := s.Load(ctx, c.RomPath); err != nil {
		return err
	}
	if c.LoadState {
		if err := s.LoadState(ctx, 0); err != nil {
			return err
		}
	}

	opts := []web.Opt{web.WithLogger(g.Log)}
	if g.Config.Web.Compress {
		opts = append(opts, web.WithCompression(g.Config.Web.Quality))
	}
	hub := web.New(s, opts...)

	addr := c.Addr
	if addr == "" {
		addr = g.Config.Web.Addr
	}
	srv := &http.Server{Addr: addr, Handler: hub, ReadHeaderTimeout: 5 * time.Second}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return hub.Run(ctx)
	})
	eg.Go(func() error {
		return s.Run(ctx, 0, hub.Publish)
	})
	eg.Go(func() error {
		g.Log.Infof("serving on ws://%s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
