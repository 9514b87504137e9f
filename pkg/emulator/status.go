package emulator

// Status represents the status of a Session. It can be one of the following:
//
//   - Idle, no ROM loaded
//   - Running
//   - Paused
//   - Crashed, the engine hit a fatal fault
type Status int

const (
	Idle Status = iota
	Running
	Paused
	Crashed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Crashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

func (s Status) IsRunning() bool {
	return s == Running
}

func (s Status) IsPaused() bool {
	return s == Paused
}

func (s Status) IsCrashed() bool {
	return s == Crashed
}
