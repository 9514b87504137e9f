package scheduler

// EventType identifies a recurring piece of work. Only one event of
// each type can be pending at a time.
type EventType uint8

const (
	PPUEndOAMSearch EventType = iota
	PPUEndTransfer
	PPUEndHBlank
	PPUVBlankLine
	PPUDisabledFrame
	APUFrameSequencer
	APUSample

	eventTypes
)

var eventNames = [eventTypes]string{
	"PPUEndOAMSearch",
	"PPUEndTransfer",
	"PPUEndHBlank",
	"PPUVBlankLine",
	"PPUDisabledFrame",
	"APUFrameSequencer",
	"APUSample",
}

func (e EventType) String() string {
	if e >= eventTypes {
		return "Unknown"
	}
	return eventNames[e]
}

type Event struct {
	cycle     uint64
	eventType EventType
	scheduled bool
	next      *Event
}
