// Package scheduler orders the timed work of the emulator.
package scheduler

import (
	"fmt"
	"strings"

	"github.com/thelolagemann/gbcore/internal/types"
)

// Scheduler is a simple event scheduler that can be used to schedule events
// to be executed at a specific cycle.
//
// Events are kept in a linked list sorted by the cycle they fire at. Events
// due on the same cycle fire in the order they were scheduled. Handlers
// observe Cycle() as the exact cycle their event was due, so rescheduling
// from inside a handler never drifts.
type Scheduler struct {
	cycles uint64
	root   *Event

	eventHandlers [eventTypes]func()
	events        [eventTypes]Event
}

func NewScheduler() *Scheduler {
	s := &Scheduler{}
	for i := range s.events {
		s.events[i].eventType = EventType(i)
	}
	return s
}

// Cycle returns the current cycle.
func (s *Scheduler) Cycle() uint64 {
	return s.cycles
}

// RegisterEvent registers the function invoked when an event of the
// given type fires.
func (s *Scheduler) RegisterEvent(eventType EventType, fn func()) {
	s.eventHandlers[eventType] = fn
}

// Tick advances the scheduler by c cycles, executing every event that
// falls due along the way.
func (s *Scheduler) Tick(c uint64) {
	target := s.cycles + c

	for s.root != nil && s.root.cycle <= target {
		event := s.root
		s.root = event.next
		event.next = nil
		event.scheduled = false

		s.cycles = event.cycle
		if fn := s.eventHandlers[event.eventType]; fn != nil {
			fn()
		}
	}

	s.cycles = target
}

// ScheduleEvent schedules an event to fire after the given number of cycles.
// A pending event of the same type is replaced.
func (s *Scheduler) ScheduleEvent(eventType EventType, after uint64) {
	s.insert(eventType, s.cycles+after)
}

func (s *Scheduler) insert(eventType EventType, at uint64) {
	s.DescheduleEvent(eventType)

	this := &s.events[eventType]
	this.cycle = at
	this.scheduled = true

	if s.root == nil || at < s.root.cycle {
		this.next = s.root
		s.root = this
		return
	}

	event := s.root
	for event.next != nil && event.next.cycle <= at {
		event = event.next
	}
	this.next = event.next
	event.next = this
}

// DescheduleEvent removes a pending event, if any.
func (s *Scheduler) DescheduleEvent(eventType EventType) {
	this := &s.events[eventType]
	if !this.scheduled {
		return
	}

	var prev *Event
	for event := s.root; event != nil; prev, event = event, event.next {
		if event != this {
			continue
		}
		if prev == nil {
			s.root = event.next
		} else {
			prev.next = event.next
		}
		break
	}
	this.next = nil
	this.scheduled = false
}

// Scheduled reports whether an event of the given type is pending.
func (s *Scheduler) Scheduled(eventType EventType) bool {
	return s.events[eventType].scheduled
}

// Until returns the number of cycles until the given event fires, or
// 0 when it isn't scheduled.
func (s *Scheduler) Until(eventType EventType) uint64 {
	if !s.events[eventType].scheduled {
		return 0
	}
	return s.events[eventType].cycle - s.cycles
}

// Reset clears every pending event and rewinds the cycle counter.
func (s *Scheduler) Reset() {
	for s.root != nil {
		s.DescheduleEvent(s.root.eventType)
	}
	s.cycles = 0
}

var _ types.Stater = (*Scheduler)(nil)

// Save writes the cycle counter and the pending events in firing order.
func (s *Scheduler) Save(st *types.State) {
	st.Write64(s.cycles)
	var n uint8
	for event := s.root; event != nil; event = event.next {
		n++
	}
	st.Write8(n)
	for event := s.root; event != nil; event = event.next {
		st.Write8(uint8(event.eventType))
		st.Write64(event.cycle)
	}
}

// Load replaces the queue with the saved one. Unknown event types are
// dropped rather than trusted.
func (s *Scheduler) Load(st *types.State) {
	s.Reset()
	s.cycles = st.Read64()
	n := st.Read8()
	for i := uint8(0); i < n; i++ {
		eventType, at := EventType(st.Read8()), st.Read64()
		if eventType < eventTypes {
			s.insert(eventType, at)
		}
	}
}

func (s *Scheduler) String() string {
	var b strings.Builder
	for event := s.root; event != nil; event = event.next {
		fmt.Fprintf(&b, "%s:%d->", event.eventType, event.cycle)
	}
	return b.String()
}
