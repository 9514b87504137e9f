package types

import "github.com/go-faster/errors"

// ErrShortState is reported by State.Err when a read ran past the
// end of the underlying data.
var ErrShortState = errors.New("state: unexpected end of data")

// Resettable is an interface that allows an object to be reset.
type Resettable interface {
	Reset() // Reset the state of the object
}

// State is a little-endian byte stream used to serialize the
// internal registers of every component. Components append to it
// in Save and consume it in the same order in Load.
type State struct {
	raw          []byte
	readPosition int
	short        bool
}

// Stater is an interface that allows an object to be saved
// and loaded from a state.
type Stater interface {
	Load(*State) // Load the state of the object
	Save(*State) // Save the state of the object
}

// NewState creates a new, empty state ready to be written to.
func NewState() *State {
	return &State{raw: make([]byte, 0, 256)}
}

// StateFromBytes creates a new state reading from raw.
func StateFromBytes(raw []byte) *State {
	return &State{raw: raw}
}

func (s *State) Write8(value uint8) {
	s.raw = append(s.raw, value)
}

func (s *State) Write16(value uint16) {
	s.raw = append(s.raw, byte(value), byte(value>>8))
}

func (s *State) Write32(value uint32) {
	s.raw = append(s.raw, byte(value), byte(value>>8), byte(value>>16), byte(value>>24))
}

func (s *State) Write64(value uint64) {
	s.Write32(uint32(value))
	s.Write32(uint32(value >> 32))
}

func (s *State) WriteBool(value bool) {
	if value {
		s.raw = append(s.raw, 1)
	} else {
		s.raw = append(s.raw, 0)
	}
}

func (s *State) WriteData(data []byte) {
	s.raw = append(s.raw, data...)
}

// take returns the next n bytes, or nil once the stream is exhausted.
func (s *State) take(n int) []byte {
	if s.short || s.readPosition+n > len(s.raw) {
		s.short = true
		return nil
	}
	b := s.raw[s.readPosition : s.readPosition+n]
	s.readPosition += n
	return b
}

func (s *State) Read8() uint8 {
	b := s.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (s *State) Read16() uint16 {
	b := s.take(2)
	if b == nil {
		return 0
	}
	return uint16(b[0]) | uint16(b[1])<<8
}

func (s *State) Read32() uint32 {
	b := s.take(4)
	if b == nil {
		return 0
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (s *State) Read64() uint64 {
	return uint64(s.Read32()) | uint64(s.Read32())<<32
}

func (s *State) ReadBool() bool {
	return s.Read8() != 0
}

func (s *State) ReadData(p []byte) {
	copy(p, s.take(len(p)))
}

// Err returns ErrShortState if any read ran out of data.
func (s *State) Err() error {
	if s.short {
		return ErrShortState
	}
	return nil
}

// Len returns the number of bytes written so far.
func (s *State) Len() int {
	return len(s.raw)
}

func (s *State) Bytes() []byte {
	return s.raw
}

// Remaining returns the number of bytes left to read.
func (s *State) Remaining() int {
	if s.short {
		return 0
	}
	return len(s.raw) - s.readPosition
}

// Skip discards the next n bytes.
func (s *State) Skip(n int) {
	s.take(n)
}
