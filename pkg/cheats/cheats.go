// Package cheats parses Game Genie and GameShark codes and applies them
// to a running game.
package cheats

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
)

// ErrInvalidCode is returned for lines that are neither a comment nor a
// code of a known format.
var ErrInvalidCode = errors.New("cheats: invalid code")

// Cheat is a named group of codes, toggled together.
type Cheat struct {
	Name    string
	Enabled bool

	Genie []GameGenieCode
	Shark []GameSharkCode
}

// Parse reads a cheat file. The format is as follows:
//
//	# Infinite lives
//	010F0BC2
//	# Level select
//	3EA-17B-FCE
//
// Each "#" line starts a new cheat and the codes below it belong to it.
// Codes before the first name are grouped under an unnamed cheat. Every
// parsed cheat is enabled; lines starting with "#!" start a disabled one.
func Parse(r io.Reader) ([]Cheat, error) {
	var (
		cheats  []Cheat
		current *Cheat
	)
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			enabled := !strings.HasPrefix(line, "#!")
			name := strings.TrimSpace(strings.TrimLeft(line, "#!"))
			cheats = append(cheats, Cheat{Name: name, Enabled: enabled})
			current = &cheats[len(cheats)-1]
			continue
		}
		if current == nil {
			cheats = append(cheats, Cheat{Enabled: true})
			current = &cheats[len(cheats)-1]
		}

		switch len(line) {
		case gameGenieLength:
			c, err := ParseGameGenie(line)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", n)
			}
			current.Genie = append(current.Genie, c)
		case gameSharkLength:
			c, err := ParseGameShark(line)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", n)
			}
			current.Shark = append(current.Shark, c)
		default:
			return nil, errors.Wrapf(ErrInvalidCode, "line %d: %q", n, line)
		}
	}
	return cheats, scanner.Err()
}

// LoadFile parses the cheat file at filename.
func LoadFile(filename string) ([]Cheat, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Write encodes cheats in the format read by Parse.
func Write(w io.Writer, cheats []Cheat) error {
	bw := bufio.NewWriter(w)
	for _, c := range cheats {
		marker := "#"
		if !c.Enabled {
			marker = "#!"
		}
		fmt.Fprintf(bw, "%s %s\n", marker, c.Name)
		for _, g := range c.Genie {
			fmt.Fprintln(bw, g)
		}
		for _, s := range c.Shark {
			fmt.Fprintln(bw, s)
		}
	}
	return bw.Flush()
}

// Set enables or disables every cheat called name and reports whether
// any matched.
func Set(cheats []Cheat, name string, enabled bool) bool {
	found := false
	for i := range cheats {
		if cheats[i].Name == name {
			cheats[i].Enabled = enabled
			found = true
		}
	}
	return found
}
