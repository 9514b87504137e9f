package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/go-faster/errors"
	"github.com/thelolagemann/gbcore/internal/cartridge"
	"github.com/thelolagemann/gbcore/internal/memory"
	"github.com/thelolagemann/gbcore/pkg/utils"
)

type InfoCmd struct {
	RomPath string `arg:"" name:"/path/to/rom" help:"${romfile_help}" type:"existingfile"`
}

func (c *InfoCmd) Run(g *Globals) error {
	h, err := readHeader(c.RomPath)
	if err != nil {
		return err
	}
	fmt.Println(h)
	fmt.Printf("Key:         %s\n", h.Key())
	return nil
}

type StatesCmd struct {
	RomPath string `arg:"" name:"/path/to/rom" help:"${romfile_help}" type:"existingfile"`
}

func (c *StatesCmd) Run(g *Globals) error {
	h, err := readHeader(c.RomPath)
	if err != nil {
		return err
	}
	store, err := g.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	states, err := store.States(context.Background(), h.Key())
	if err != nil {
		return err
	}
	if len(states) == 0 {
		fmt.Printf("no save states for %q in %s\n", h.Title, store.Dir(h.Key()))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tCREATED\tSIZE")
	for _, s := range states {
		fmt.Fprintf(w, "%d\t%s\t%d\n", s.Index, s.Created.Local().Format(time.DateTime), s.Size)
	}
	return w.Flush()
}

type LayoutCmd struct{}

func (c *LayoutCmd) Run(g *Globals) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "REGION\tLOCATION\tSIZE\tEND\t")
	for _, r := range memory.Regions() {
		fmt.Fprintf(w, "%s\t0x%06X\t0x%06X\t0x%06X\t\n", r.Name, r.Location, r.Size, r.End())
	}
	fmt.Fprintf(w, "total\t\t0x%06X\t\t\n", memory.Size)
	return w.Flush()
}

func readHeader(path string) (*cartridge.Header, error) {
	rom, err := utils.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if len(rom) < cartridge.HeaderEnd {
		return nil, errors.Errorf("%s: %d bytes is too short for a ROM", path, len(rom))
	}
	return cartridge.NewHeader(rom[cartridge.HeaderStart:])
}
