package emulator

import (
	"context"
	"encoding/binary"

	"github.com/go-faster/errors"
)

// CommandPacket is a command packet that is sent to the
// emulator to control it.
type CommandPacket struct {
	Command Command
	Data    []byte
}

// Command is a command that is sent to the emulator to
// control it.
type Command uint8

// ResponsePacket is a response packet that is sent
// from the emulator to the client.
type ResponsePacket struct {
	Command Command
	Data    []byte
	Error   error
}

// ErrUnknownCommand is returned for commands a Session does not handle.
var ErrUnknownCommand = errors.New("emulator: unknown command")

const (
	// CommandPause pauses the emulator.
	CommandPause Command = iota
	// CommandResume resumes the emulator.
	CommandResume
	// CommandSaveState appends a save state to the store. The response
	// carries the new state index as a big endian uint32.
	CommandSaveState
	// CommandLoadState restores a save state. Data optionally holds a
	// big endian uint32 index; the latest state is used otherwise.
	CommandLoadState
	// CommandSaveBattery writes the cartridge RAM to the store.
	CommandSaveBattery
	// CommandInput replaces the button state with Data[0].
	CommandInput
)

var commandNames = map[Command]string{
	CommandPause:       "pause",
	CommandResume:      "resume",
	CommandSaveState:   "save-state",
	CommandLoadState:   "load-state",
	CommandSaveBattery: "save-battery",
	CommandInput:       "input",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return "unknown"
}

// Execute runs a command against the session. It is safe to call while
// Run is in progress; commands touching the engine run between frames.
func (s *Session) Execute(ctx context.Context, p CommandPacket) ResponsePacket {
	r := ResponsePacket{Command: p.Command}
	switch p.Command {
	case CommandPause:
		s.Pause()
	case CommandResume:
		s.Resume()
	case CommandSaveState:
		info, err := s.SaveState(ctx)
		if err == nil {
			r.Data = binary.BigEndian.AppendUint32(nil, uint32(info.Index))
		}
		r.Error = err
	case CommandLoadState:
		index := 0
		if len(p.Data) >= 4 {
			index = int(binary.BigEndian.Uint32(p.Data))
		}
		r.Error = s.LoadState(ctx, index)
	case CommandSaveBattery:
		r.Error = s.SaveBattery(ctx)
	case CommandInput:
		if len(p.Data) == 0 {
			r.Error = errors.New("emulator: input command without a button mask")
			break
		}
		s.SetInput(p.Data[0])
	default:
		r.Error = errors.Wrapf(ErrUnknownCommand, "%d", p.Command)
	}
	return r
}
