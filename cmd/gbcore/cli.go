package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/go-faster/errors"
	"github.com/thelolagemann/gbcore/pkg/cheats"
	"github.com/thelolagemann/gbcore/pkg/config"
	"github.com/thelolagemann/gbcore/pkg/emulator"
	"github.com/thelolagemann/gbcore/pkg/log"
	"github.com/thelolagemann/gbcore/pkg/storage"
)

type (
	CLI struct {
		Run    RunCmd    `cmd:"" help:"Run ROMs headless for a number of frames."`
		Info   InfoCmd   `cmd:"" help:"Show the cartridge header of a ROM."`
		States StatesCmd `cmd:"" help:"List the save states stored for a ROM."`
		Layout LayoutCmd `cmd:"" help:"Print the engine memory layout."`
		Serve  ServeCmd  `cmd:"" help:"Run a ROM in real time and stream it over WebSocket."`

		Config   string `name:"config" help:"${config_help}" type:"path" placeholder:"FILE"`
		LogLevel string `name:"log-level" help:"Override the configured log level." placeholder:"LEVEL"`
	}

	// Globals is handed to every command.
	Globals struct {
		Config config.Config
		Log    log.Logger
	}
)

var vars = kong.Vars{
	"config_help":  "Configuration file. (default: " + config.Path() + ")",
	"romfile_help": "ROM file, optionally compressed (.gz, .xz, .zip, .7z).",
}

func parseArgs(args []string) (*kong.Context, *Globals) {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("gbcore"),
		kong.Description("Headless Game Boy and Game Boy Color emulator."),
		kong.UsageOnError(),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")

	cfg, err := config.LoadOrDefault(cli.Config)
	checkf(err, "invalid configuration")
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	return ctx, &Globals{Config: cfg, Log: cfg.Logger()}
}

// openStore opens the configured save store.
func (g *Globals) openStore() (*storage.FileStore, error) {
	codec, err := storage.ParseCodec(g.Config.Storage.Compression)
	if err != nil {
		return nil, err
	}
	return storage.NewFileStore(g.Config.Storage.Dir,
		storage.WithCodec(codec),
		storage.WithLogger(g.Log))
}

// newSession opens the store and creates a session using the configured
// engine options and, when cheatFile is set, its cheats.
func (g *Globals) newSession(cheatFile string, opts ...emulator.Opt) (*emulator.Session, error) {
	opts = append([]emulator.Opt{emulator.WithEngineOptions(g.Config.Options()...)}, opts...)
	if cheatFile != "" {
		list, err := cheats.LoadFile(cheatFile)
		if err != nil {
			return nil, errors.Wrap(err, "load cheats")
		}
		opts = append(opts, emulator.WithCheats(list))
	}

	store, err := g.openStore()
	if err != nil {
		return nil, err
	}
	return emulator.NewSession(store, opts...), nil
}

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
